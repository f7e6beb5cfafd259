// Package transcript renders ticket channel history into an HTML document
// and archives it.
package transcript

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"
	"sync"
	"time"
	"unicode"
	"unicode/utf8"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"

	"github.com/spec-kit/ticket-bot/internal/chat"
)

const emptyContent = "[No content]"

var (
	markdownOnce     sync.Once
	markdownInstance goldmark.Markdown
)

// getMarkdown returns the shared parser. Raw HTML in message content is
// omitted by goldmark's default (unsafe disabled) renderer.
func getMarkdown() goldmark.Markdown {
	markdownOnce.Do(func() {
		markdownInstance = goldmark.New(goldmark.WithExtensions(extension.GFM))
	})
	return markdownInstance
}

// Meta identifies the transcript.
type Meta struct {
	TicketID    string
	ChannelName string
	GeneratedAt time.Time
}

type renderedMessage struct {
	Initial     string
	Author      string
	Timestamp   string
	Content     template.HTML
	Attachments []chat.Attachment
}

type document struct {
	Meta      Meta
	Generated string
	Messages  []renderedMessage
}

// Render produces the HTML transcript of messages, which must be ordered
// oldest first. It has no side effects.
func Render(meta Meta, messages []chat.Message) ([]byte, error) {
	doc := document{
		Meta:      meta,
		Generated: meta.GeneratedAt.UTC().Format(time.RFC1123),
		Messages:  make([]renderedMessage, 0, len(messages)),
	}
	for _, msg := range messages {
		content, err := renderContent(msg.Content)
		if err != nil {
			return nil, fmt.Errorf("render message %s: %w", msg.ID, err)
		}
		author := msg.AuthorName
		if author == "" {
			author = msg.AuthorID
		}
		doc.Messages = append(doc.Messages, renderedMessage{
			Initial:     initial(author),
			Author:      author,
			Timestamp:   msg.CreatedAt.UTC().Format("2006-01-02 15:04:05 MST"),
			Content:     content,
			Attachments: msg.Attachments,
		})
	}

	var buf bytes.Buffer
	if err := pageTemplate.Execute(&buf, doc); err != nil {
		return nil, fmt.Errorf("execute transcript template: %w", err)
	}
	return buf.Bytes(), nil
}

func renderContent(content string) (template.HTML, error) {
	if strings.TrimSpace(content) == "" {
		return template.HTML(template.HTMLEscapeString(emptyContent)), nil
	}
	var buf bytes.Buffer
	if err := getMarkdown().Convert([]byte(content), &buf); err != nil {
		return "", err
	}
	return template.HTML(buf.String()), nil
}

func initial(name string) string {
	r, _ := utf8.DecodeRuneInString(name)
	if r == utf8.RuneError {
		return "?"
	}
	return string(unicode.ToUpper(r))
}

var pageTemplate = template.Must(template.New("transcript").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="UTF-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>Ticket Transcript - {{.Meta.ChannelName}}</title>
<style>
body { font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif; background-color: #36393f; color: #dcddde; padding: 20px; margin: 0; }
.container { max-width: 1200px; margin: 0 auto; background-color: #2f3136; border-radius: 8px; padding: 20px; }
.header { border-bottom: 2px solid #202225; padding-bottom: 15px; margin-bottom: 20px; }
.header h1 { margin: 0; color: #fff; font-size: 24px; }
.header p { margin: 5px 0 0 0; color: #b9bbbe; font-size: 14px; }
.message { margin-bottom: 20px; display: flex; align-items: flex-start; }
.avatar { width: 40px; height: 40px; border-radius: 50%; margin-right: 15px; background-color: #5865f2; display: flex; align-items: center; justify-content: center; color: white; font-weight: bold; }
.message-content { flex: 1; }
.author { font-weight: 600; color: #fff; margin-right: 10px; }
.timestamp { font-size: 12px; color: #72767d; }
.content { line-height: 1.5; word-wrap: break-word; }
.attachment { margin-top: 10px; padding: 10px; background-color: #202225; border-radius: 4px; font-size: 14px; }
.attachment a { color: #00aff4; text-decoration: none; }
</style>
</head>
<body>
<div class="container">
<div class="header">
<h1>Ticket Transcript</h1>
<p>Channel: #{{.Meta.ChannelName}} | Ticket ID: {{.Meta.TicketID}}</p>
<p>Generated: {{.Generated}}</p>
</div>
<div class="messages">
{{- range .Messages}}
<div class="message">
<div class="avatar">{{.Initial}}</div>
<div class="message-content">
<div class="message-header"><span class="author">{{.Author}}</span><span class="timestamp">{{.Timestamp}}</span></div>
<div class="content">{{.Content}}</div>
{{- range .Attachments}}
<div class="attachment">📎 <a href="{{.URL}}" target="_blank" rel="noopener">{{.Name}}</a></div>
{{- end}}
</div>
</div>
{{- end}}
</div>
</div>
</body>
</html>
`))
