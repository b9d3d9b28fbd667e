package handlers

import (
	"log/slog"
	"net/http"

	"github.com/craftloom/saree-chat/internal/catalog"
)

type homePageData struct {
	Products   []catalog.Product
	Transcript transcriptView
	Streaming  bool
}

// HandleHome renders the single page: the product cards and the chat widget with the
// restored transcript.
func (m Main) HandleHome(w http.ResponseWriter, r *http.Request) {
	views, err := m.messageViews(m.controller.Messages())
	if err != nil {
		m.logger.Error("Failed to render messages", slog.String(errLoggerKey, err.Error()))
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	streaming := m.controller.Streaming()
	data := homePageData{
		Products:   m.products,
		Transcript: transcriptView{Messages: views, Streaming: streaming},
		Streaming:  streaming,
	}

	if err := m.templates.ExecuteTemplate(w, "home.html", data); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
