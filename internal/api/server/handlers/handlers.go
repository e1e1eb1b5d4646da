package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/bz888/chatprobe/internal/logger"
)

// ChatRequest is what the harness sends to /chat.
type ChatRequest struct {
	Message string `json:"message"`
}

// Responder produces a reply in pieces, calling fn once per piece.
type Responder interface {
	Reply(ctx context.Context, message string, fn func(chunk string) error) error
}

type Handler struct {
	responder Responder
}

func NewHandler(responder Responder) *Handler {
	return &Handler{responder: responder}
}

func (h *Handler) ChatHandler(w http.ResponseWriter, r *http.Request) {
	localLogger := logger.NewLogger("ChatHandler")
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	defer r.Body.Close()

	var clientReq ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&clientReq); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("X-Content-Type-Options", "nosniff")

	localLogger.Info("request ", r.Header.Get("X-Request-ID"), ": ", clientReq.Message)

	wrote := false
	err := h.responder.Reply(r.Context(), clientReq.Message, func(chunk string) error {
		if _, err := w.Write([]byte(chunk)); err != nil {
			return err
		}
		wrote = true
		flusher.Flush()
		return nil
	})
	if err != nil {
		localLogger.Error("reply failed: ", err)
		if !wrote {
			http.Error(w, "Failed to process request: "+err.Error(), http.StatusInternalServerError)
		}
	}
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]bool{"ok": true})
}

// Echo answers every message by repeating it back one word at a time.
type Echo struct {
	Pause time.Duration
}

func (e Echo) Reply(ctx context.Context, message string, fn func(chunk string) error) error {
	words := strings.Fields("You said: " + message)
	for i, word := range words {
		if i > 0 {
			word = " " + word
		}
		if err := fn(word); err != nil {
			return err
		}
		if e.Pause > 0 && i < len(words)-1 {
			select {
			case <-time.After(e.Pause):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return nil
}
