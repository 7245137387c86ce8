// ABOUTME: HTML view of a conversation with goldmark-rendered markdown answers.
// ABOUTME: Server-rendered and dependency-free on the client side.

package web

import (
	"bytes"
	"html"
	"html/template"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
	ghtml "github.com/yuin/goldmark/renderer/html"

	"github.com/2389-research/council/store"
)

var markdown = goldmark.New(
	goldmark.WithExtensions(extension.GFM),
	goldmark.WithRendererOptions(ghtml.WithHardWraps()),
)

const conversationPage = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<title>{{.Title}}</title>
<style>
body { font-family: system-ui, sans-serif; max-width: 52rem; margin: 2rem auto; padding: 0 1rem; }
.question { background: #f0f4f8; border-radius: 8px; padding: 0.75rem 1rem; margin-top: 2rem; }
.answer { padding: 0.5rem 0.25rem; }
.meta { color: #666; font-size: 0.85rem; }
</style>
</head>
<body>
<h1>{{.Title}}</h1>
{{range .Turns}}
<div class="question"><strong>Q:</strong> {{.Question}}</div>
<div class="answer">{{.AnswerHTML}}</div>
<div class="meta">{{.Mode}} · {{.When}}</div>
{{end}}
</body>
</html>
`

var conversationTmpl = template.Must(template.New("conversation").Parse(conversationPage))

type turnView struct {
	Question   string
	AnswerHTML template.HTML
	Mode       string
	When       string
}

type conversationView struct {
	Title string
	Turns []turnView
}

// RenderMarkdown converts markdown to HTML, falling back to escaped
// preformatted text when the source does not parse.
func RenderMarkdown(source string) template.HTML {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(source), &buf); err != nil {
		return template.HTML("<pre>" + html.EscapeString(source) + "</pre>")
	}
	return template.HTML(buf.String())
}

func (s *Server) handleViewConversation(w http.ResponseWriter, r *http.Request) {
	conv, err := s.conversations.Load(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "conversation not found")
		return
	}

	view := buildConversationView(conv)
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := conversationTmpl.Execute(w, view); err != nil {
		log.Printf("component=web action=render_view error=%v", err)
	}
}

func buildConversationView(conv *store.Conversation) conversationView {
	view := conversationView{Title: conv.Title}
	for _, turn := range conv.Turns {
		view.Turns = append(view.Turns, turnView{
			Question:   turn.Question,
			AnswerHTML: RenderMarkdown(turn.Answer),
			Mode:       turn.Mode,
			When:       turn.CreatedAt.Format("Jan 2, 2006 15:04"),
		})
	}
	return view
}
