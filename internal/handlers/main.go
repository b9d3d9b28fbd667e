package handlers

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strings"
	"time"

	sareechat "github.com/craftloom/saree-chat"
	"github.com/craftloom/saree-chat/internal/catalog"
	"github.com/craftloom/saree-chat/internal/models"
	"github.com/tmaxmax/go-sse"
)

const errLoggerKey = "err"

// Controller is the conversation session the HTTP layer drives. It hides the store and
// the streaming engine behind the session controller's operations.
type Controller interface {
	Messages() []models.Message
	Streaming() bool
	Submit(text string) error
	Durations() map[string]int64
	Stop()
	Reset()
}

// Main handles the core functionality of the chat widget, managing server-sent events,
// HTML templates, and interactions with the session controller.
type Main struct {
	sseSrv    *sse.Server
	templates *template.Template

	controller Controller
	products   []catalog.Product

	logger *slog.Logger
}

const transcriptSSETopic = "transcript"

var transcriptSSEType = sse.Type("transcript")

// NewMain creates a new Main instance over the given session controller and product
// cards. It initializes the SSE server and parses the HTML templates from the embedded
// filesystem.
func NewMain(controller Controller, products []catalog.Product, logger *slog.Logger) (Main, error) {
	// We parse templates from three distinct directories to separate layout, pages, and partial views
	tmpl, err := template.ParseFS(
		sareechat.TemplateFS,
		"templates/layout/*.html",
		"templates/pages/*.html",
		"templates/partials/*.html",
	)
	if err != nil {
		return Main{}, err
	}

	return Main{
		sseSrv: &sse.Server{
			OnSession: func(s *sse.Session) (sse.Subscription, bool) {
				return sse.Subscription{
					Client:      s,
					LastEventID: s.LastEventID,
					Topics:      []string{sse.DefaultTopic, transcriptSSETopic},
				}, true
			},
		},
		templates:  tmpl,
		controller: controller,
		products:   products,
		logger:     logger.With(slog.String("module", "handlers")),
	}, nil
}

// HandleSSE serves the event stream carrying transcript updates.
func (m Main) HandleSSE(w http.ResponseWriter, r *http.Request) {
	m.sseSrv.ServeHTTP(w, r)
}

// PublishTranscript renders the transcript partial and pushes it to connected clients.
// Wire it as an engine transcript-change subscriber.
func (m Main) PublishTranscript(messages []models.Message) {
	html, err := m.renderTranscript(messages)
	if err != nil {
		m.logger.Error("Failed to render transcript", slog.String(errLoggerKey, err.Error()))
		return
	}

	msg := sse.Message{
		Type: transcriptSSEType,
	}
	msg.AppendData(html)

	if err := m.sseSrv.Publish(&msg, transcriptSSETopic); err != nil {
		m.logger.Error("Failed to publish transcript", slog.String(errLoggerKey, err.Error()))
	}
}

// Shutdown gracefully terminates the SSE server. It broadcasts a close message to all
// connected clients and waits up to 5 seconds for connections to terminate.
func (m Main) Shutdown(ctx context.Context) error {
	e := &sse.Message{Type: sse.Type("closeChat")}
	// We create a close event that complies with SSE spec requiring data
	e.AppendData("bye")

	// We ignore the error here since we're shutting down anyway
	_ = m.sseSrv.Publish(e)

	ctx, cancel := context.WithTimeout(ctx, time.Second*5)
	defer cancel()

	return m.sseSrv.Shutdown(ctx)
}

// transcriptView feeds the chat_messages partial. Streaming rides along so the client
// script can derive the widget's input state from the rendered payload instead of
// guessing from request lifecycles.
type transcriptView struct {
	Messages  []messageView
	Streaming bool
}

type messageView struct {
	ID   string
	Role string

	// Text carries user text, escaped by the template engine. HTML carries rendered
	// assistant markdown.
	Text string
	HTML template.HTML

	Duration string
}

func (m Main) messageViews(messages []models.Message) ([]messageView, error) {
	durations := m.controller.Durations()

	views := make([]messageView, len(messages))
	for i, msg := range messages {
		v := messageView{
			ID:   msg.ID,
			Role: string(msg.Role),
		}
		if msg.Role == models.RoleAssistant {
			html, err := models.RenderMarkdown(msg.PlainText())
			if err != nil {
				return nil, fmt.Errorf("failed to render message %s: %w", msg.ID, err)
			}
			v.HTML = html
		} else {
			v.Text = msg.PlainText()
		}
		if ms, ok := durations[msg.ID]; ok {
			v.Duration = formatDuration(ms)
		}
		views[i] = v
	}
	return views, nil
}

func (m Main) renderTranscript(messages []models.Message) (string, error) {
	views, err := m.messageViews(messages)
	if err != nil {
		return "", err
	}

	data := transcriptView{
		Messages:  views,
		Streaming: m.controller.Streaming(),
	}

	var sb strings.Builder
	if err := m.templates.ExecuteTemplate(&sb, "chat_messages", data); err != nil {
		return "", fmt.Errorf("failed to execute chat_messages template: %w", err)
	}
	return sb.String(), nil
}

func formatDuration(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(100 * time.Millisecond).String()
}
