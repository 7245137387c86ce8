// ABOUTME: Council configuration: compiled-in defaults merged with an optional YAML file.
// ABOUTME: API keys come only from the environment so they never land in config files.

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Driver selects the gateway adapter implementation.
const (
	DriverNative = "native"
	DriverSDK    = "sdk"
)

// Config holds every tunable the council reads at startup. Zero values in a
// loaded file fall back to the defaults, so partial files work.
type Config struct {
	// CouncilModels is the deliberation panel. At least two are required.
	CouncilModels []string `yaml:"council_models"`
	// ChairmanModel synthesizes the final answer.
	ChairmanModel string `yaml:"chairman_model"`
	// TitleModel names conversations; fast and cheap matters more than quality.
	TitleModel string `yaml:"title_model"`

	// BaseURL is the OpenAI-compatible endpoint the gateway talks to.
	BaseURL string `yaml:"base_url"`
	// Driver is "native" (raw net/http) or "sdk" (official openai-go client).
	Driver string `yaml:"driver"`

	DataDir        string        `yaml:"data_dir"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxToolCalls   int           `yaml:"max_tool_calls"`
	UseReact       bool          `yaml:"use_react"`
	DebateCycles   int           `yaml:"debate_cycles"`
}

// Default returns the compiled-in configuration.
func Default() Config {
	return Config{
		CouncilModels: []string{
			"openai/gpt-4o-mini",
			"x-ai/grok-3",
			"deepseek/deepseek-chat",
		},
		ChairmanModel:  "openai/gpt-4o-mini",
		TitleModel:     "google/gemini-2.5-flash",
		BaseURL:        "https://openrouter.ai/api/v1",
		Driver:         DriverNative,
		DataDir:        "data/conversations",
		RequestTimeout: 120 * time.Second,
		MaxToolCalls:   5,
		UseReact:       true,
		DebateCycles:   1,
	}
}

// Load reads path and merges it over the defaults. A missing file is not an
// error; the defaults are returned unchanged.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	var file fileConfig
	if err := yaml.Unmarshal(data, &file); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	if err := cfg.merge(file); err != nil {
		return cfg, fmt.Errorf("config %s: %w", path, err)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// fileConfig mirrors Config for YAML decoding. Booleans are pointers so an
// absent key is distinguishable from an explicit false.
type fileConfig struct {
	CouncilModels []string `yaml:"council_models"`
	ChairmanModel string   `yaml:"chairman_model"`
	TitleModel    string   `yaml:"title_model"`
	BaseURL       string   `yaml:"base_url"`
	Driver        string   `yaml:"driver"`
	DataDir       string   `yaml:"data_dir"`
	// RequestTimeout is a duration string ("60s", "2m"); yaml.v3 has no
	// native time.Duration decoding.
	RequestTimeout string `yaml:"request_timeout"`
	MaxToolCalls   int    `yaml:"max_tool_calls"`
	UseReact       *bool  `yaml:"use_react"`
	DebateCycles   int    `yaml:"debate_cycles"`
}

// merge overlays set fields from file onto cfg.
func (c *Config) merge(file fileConfig) error {
	if len(file.CouncilModels) > 0 {
		c.CouncilModels = file.CouncilModels
	}
	if file.ChairmanModel != "" {
		c.ChairmanModel = file.ChairmanModel
	}
	if file.TitleModel != "" {
		c.TitleModel = file.TitleModel
	}
	if file.BaseURL != "" {
		c.BaseURL = file.BaseURL
	}
	if file.Driver != "" {
		c.Driver = file.Driver
	}
	if file.DataDir != "" {
		c.DataDir = file.DataDir
	}
	if file.RequestTimeout != "" {
		d, err := time.ParseDuration(file.RequestTimeout)
		if err != nil {
			return fmt.Errorf("bad request_timeout: %w", err)
		}
		c.RequestTimeout = d
	}
	if file.MaxToolCalls > 0 {
		c.MaxToolCalls = file.MaxToolCalls
	}
	if file.DebateCycles > 0 {
		c.DebateCycles = file.DebateCycles
	}
	if file.UseReact != nil {
		c.UseReact = *file.UseReact
	}
	return nil
}

// Validate checks the invariants the engine depends on.
func (c Config) Validate() error {
	if len(c.CouncilModels) < 2 {
		return fmt.Errorf("config requires at least 2 council models, got %d", len(c.CouncilModels))
	}
	if c.ChairmanModel == "" {
		return fmt.Errorf("config requires a chairman model")
	}
	if c.Driver != DriverNative && c.Driver != DriverSDK {
		return fmt.Errorf("unknown driver %q (want %q or %q)", c.Driver, DriverNative, DriverSDK)
	}
	if c.DebateCycles < 1 {
		return fmt.Errorf("debate_cycles must be at least 1, got %d", c.DebateCycles)
	}
	return nil
}

// OpenRouterKey returns the gateway API key from the environment.
func OpenRouterKey() string {
	return os.Getenv("OPENROUTER_API_KEY")
}

// TavilyKey returns the search API key from the environment.
func TavilyKey() string {
	return os.Getenv("TAVILY_API_KEY")
}
