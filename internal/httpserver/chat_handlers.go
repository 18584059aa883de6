package httpserver

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"servicehub/internal/llm"
)

const maxChatBody = 64 << 10

type chatRequest struct {
	Messages []llm.Message `json:"messages"`
}

// @Summary      Ask the marketplace assistant
// @Description  Forwards the conversation upstream and returns the completion body unchanged
// @Tags         chat
// @Accept       json
// @Produce      json
// @Param        input body chatRequest true "Chat history"
// @Success      200  {object}  map[string]any
// @Failure      429  {object}  map[string]string
// @Failure      500  {object}  map[string]string
// @Router       /chat [post]
func handleChat(chat ChatCompleter) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		fail := func(err error) {
			log.Printf("chat: %v", err)
			writeError(w, http.StatusInternalServerError, "Failed to get response")
		}

		var req chatRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxChatBody)).Decode(&req); err != nil {
			fail(err)
			return
		}
		if chat == nil {
			fail(errors.New("assistant not configured"))
			return
		}
		body, err := chat.Complete(r.Context(), req.Messages)
		if err != nil {
			fail(err)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(body)
	}
}
