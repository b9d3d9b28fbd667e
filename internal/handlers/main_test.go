package handlers_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/craftloom/saree-chat/internal/catalog"
	"github.com/craftloom/saree-chat/internal/handlers"
	"github.com/craftloom/saree-chat/internal/models"
)

type mockController struct {
	messages  []models.Message
	durations map[string]int64
	streaming bool
	submitErr error

	submitted []string
	stopped   bool
	resetted  bool
}

func (m *mockController) Messages() []models.Message {
	return m.messages
}

func (m *mockController) Streaming() bool {
	return m.streaming
}

func (m *mockController) Submit(text string) error {
	if m.submitErr != nil {
		return m.submitErr
	}
	m.submitted = append(m.submitted, text)
	return nil
}

func (m *mockController) Durations() map[string]int64 {
	return m.durations
}

func (m *mockController) Stop() {
	m.stopped = true
}

func (m *mockController) Reset() {
	m.resetted = true
	m.messages = nil
	m.durations = nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testProducts(t *testing.T) []catalog.Product {
	t.Helper()
	products, err := catalog.Load()
	if err != nil {
		t.Fatal(err)
	}
	return products
}

func TestNewMain(t *testing.T) {
	main, err := handlers.NewMain(&mockController{}, testProducts(t), discardLogger())
	if err != nil {
		t.Fatalf("NewMain() error = %v", err)
	}

	if main.Shutdown(context.Background()) != nil {
		t.Error("Shutdown() should not return error")
	}
}

func TestHandleHome(t *testing.T) {
	controller := &mockController{
		messages: []models.Message{
			models.TextMessage("w1", models.RoleAssistant, "Namaste! Ask me about **sarees**."),
			models.TextMessage("u1", models.RoleUser, "Show me red sarees"),
		},
		durations: map[string]int64{"w1": 800},
	}

	main, err := handlers.NewMain(controller, testProducts(t), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	w := httptest.NewRecorder()

	main.HandleHome(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("HandleHome() status = %v, want %v", w.Code, http.StatusOK)
	}

	body := w.Body.String()
	for _, want := range []string{
		"Crimson Banarasi Silk",   // a product card
		"<strong>sarees</strong>", // assistant markdown rendered
		"Show me red sarees",      // user text
		`data-message-id="w1"`,    // message identity for the client script
	} {
		if !strings.Contains(body, want) {
			t.Errorf("HandleHome() body missing %q", want)
		}
	}
}

func TestHandleHomeStreamingMarker(t *testing.T) {
	tests := []struct {
		name      string
		streaming bool
	}{
		{name: "Streaming reply marks the transcript", streaming: true},
		{name: "Idle transcript carries no marker", streaming: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := &mockController{
				messages:  []models.Message{models.TextMessage("u1", models.RoleUser, "hi")},
				streaming: tt.streaming,
			}

			main, err := handlers.NewMain(controller, testProducts(t), discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			w := httptest.NewRecorder()

			main.HandleHome(w, req)

			// The client script derives the widget's input state from this marker.
			got := strings.Contains(w.Body.String(), "data-streaming")
			if got != tt.streaming {
				t.Errorf("transcript has streaming marker = %v, want %v", got, tt.streaming)
			}
		})
	}
}

func TestHandleChat(t *testing.T) {
	tests := []struct {
		name       string
		method     string
		message    string
		streamErr  bool
		wantStatus int
	}{
		{
			name:       "Invalid method",
			method:     http.MethodGet,
			wantStatus: http.StatusMethodNotAllowed,
		},
		{
			name:       "Empty message",
			method:     http.MethodPost,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Whitespace only",
			method:     http.MethodPost,
			message:    "   ",
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "Too long",
			method:     http.MethodPost,
			message:    strings.Repeat("a", 2001),
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "At the limit",
			method:     http.MethodPost,
			message:    strings.Repeat("a", 2000),
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Valid message",
			method:     http.MethodPost,
			message:    "Show me red sarees",
			wantStatus: http.StatusNoContent,
		},
		{
			name:       "Reply already streaming",
			method:     http.MethodPost,
			message:    "hello",
			streamErr:  true,
			wantStatus: http.StatusConflict,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controller := &mockController{}
			if tt.streamErr {
				controller.submitErr = errSubmit{}
			}

			main, err := handlers.NewMain(controller, testProducts(t), discardLogger())
			if err != nil {
				t.Fatal(err)
			}

			form := strings.NewReader("message=" + tt.message)
			req := httptest.NewRequest(tt.method, "/chat", form)
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
			w := httptest.NewRecorder()

			main.HandleChat(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("HandleChat() status = %v, want %v", w.Code, tt.wantStatus)
			}

			if tt.wantStatus == http.StatusNoContent && len(controller.submitted) != 1 {
				t.Errorf("Submit() called %d times, want 1", len(controller.submitted))
			}
		})
	}
}

func TestHandleReset(t *testing.T) {
	controller := &mockController{
		messages: []models.Message{models.TextMessage("u1", models.RoleUser, "hi")},
	}

	main, err := handlers.NewMain(controller, testProducts(t), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/reset", nil)
	w := httptest.NewRecorder()

	main.HandleReset(w, req)

	if w.Code != http.StatusOK {
		t.Errorf("HandleReset() status = %v, want %v", w.Code, http.StatusOK)
	}
	if !controller.resetted {
		t.Error("HandleReset() did not reset the controller")
	}
	if !strings.Contains(w.Body.String(), "cleared") {
		t.Errorf("HandleReset() body = %q, want confirmation", w.Body.String())
	}
}

func TestHandleStop(t *testing.T) {
	controller := &mockController{}

	main, err := handlers.NewMain(controller, testProducts(t), discardLogger())
	if err != nil {
		t.Fatal(err)
	}

	req := httptest.NewRequest(http.MethodPost, "/stop", nil)
	w := httptest.NewRecorder()

	main.HandleStop(w, req)

	if w.Code != http.StatusNoContent {
		t.Errorf("HandleStop() status = %v, want %v", w.Code, http.StatusNoContent)
	}
	if !controller.stopped {
		t.Error("HandleStop() did not stop the controller")
	}
}

type errSubmit struct{}

func (errSubmit) Error() string { return "a reply is already streaming" }
