package main

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	sareechat "github.com/craftloom/saree-chat"
	"github.com/craftloom/saree-chat/internal/catalog"
	"github.com/craftloom/saree-chat/internal/engine"
	"github.com/craftloom/saree-chat/internal/handlers"
	"github.com/craftloom/saree-chat/internal/session"
	"github.com/craftloom/saree-chat/internal/store"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultSystemPrompt = "You are the resident stylist of a small saree boutique. " +
	"Answer questions about the sarees on display, suggest drapes by fabric, color, and occasion, " +
	"and keep replies short and warm."

func main() {
	// A missing .env file is fine; API keys may come from the real environment.
	_ = godotenv.Load()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	cfgDir, err := os.UserConfigDir()
	if err != nil {
		log.Fatal(fmt.Errorf("error getting user config dir: %w", err))
	}
	cfgPath := filepath.Join(cfgDir, "/sareechat")
	if err := os.MkdirAll(cfgPath, 0755); err != nil {
		log.Fatal(fmt.Errorf("error creating config directory: %w", err))
	}

	cfgFile, err := os.Open(filepath.Join(cfgPath, "config.yaml"))
	if err != nil {
		log.Fatal(fmt.Errorf("error opening config file: %w", err))
	}
	defer cfgFile.Close()

	cfg := config{}
	if err := yaml.NewDecoder(cfgFile).Decode(&cfg); err != nil {
		log.Fatal(fmt.Errorf("error decoding config file: %w", err))
	}

	systemPrompt := cfg.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}

	llm, err := cfg.LLM.llm(systemPrompt, logger)
	if err != nil {
		log.Fatal(err)
	}

	// The conversation record survives restarts through this file; when it cannot be
	// opened the widget still works, in-memory only.
	var st session.Store
	boltStore, err := store.NewBolt(filepath.Join(cfgPath, "conversation.db"), logger)
	if err != nil {
		logger.Warn("Durable storage unavailable, conversation will not survive restarts",
			slog.String("err", err.Error()))
		st = store.NewMemory()
	} else {
		st = boltStore
		defer boltStore.Close()
	}

	products, err := catalog.Load()
	if err != nil {
		log.Fatal(err)
	}

	eng := engine.New(llm, logger)
	controller := session.NewController(st, eng, cfg.WelcomeMessage, logger)

	m, err := handlers.NewMain(controller, products, logger)
	if err != nil {
		log.Fatal(err)
	}

	eng.OnChange(controller.TranscriptChanged)
	eng.OnChange(m.PublishTranscript)
	eng.OnReplyDone(func(messageID string, elapsed time.Duration) {
		controller.RecordDuration(messageID, elapsed.Milliseconds())
	})

	// Restore before the server starts accepting submits.
	controller.Bootstrap()
	controller.EnsureWelcome()

	// Serve static files
	staticFS, err := fs.Sub(sareechat.StaticFS, "static")
	if err != nil {
		log.Fatal(err)
	}
	fileServer := http.FileServer(http.FS(staticFS))

	mux := http.NewServeMux()
	mux.Handle("/static/", http.StripPrefix("/static/", fileServer))
	mux.HandleFunc("/", m.HandleHome)
	mux.HandleFunc("/chat", m.HandleChat)
	mux.HandleFunc("/stop", m.HandleStop)
	mux.HandleFunc("/reset", m.HandleReset)
	mux.HandleFunc("/sse", m.HandleSSE)

	port := cfg.Port
	if port == "" {
		port = "8080"
	}

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	srv.RegisterOnShutdown(func() {
		if err := m.Shutdown(context.Background()); err != nil {
			log.Printf("Failed to shutdown sse server: %v", err)
		}
	})

	// Channel to listen for errors coming from the listener
	serverErrors := make(chan error, 1)

	go func() {
		log.Println("Server starting on :" + port)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt/terminate signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	// Blocking select waiting for either interrupt or server error
	select {
	case err := <-serverErrors:
		log.Printf("Server error: %v", err)

	case sig := <-shutdown:
		log.Printf("Start shutdown, signal: %v", sig)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("Graceful shutdown failed: %v", err)
			if err := srv.Close(); err != nil {
				log.Printf("Forcing server close: %v", err)
			}
		}
	}
}
