package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/vango-go/talkrelay/pkg/core"
	"github.com/vango-go/talkrelay/pkg/core/voice/tts"
	"github.com/vango-go/talkrelay/pkg/relay/config"
)

// maxSpeechInputBytes bounds the JSON body of a synthesis request.
const maxSpeechInputBytes = 1 << 20

// SpeechHandler proxies agent text to the speech provider and streams the
// synthesized audio back to the browser.
type SpeechHandler struct {
	Config config.Config
	Logger *slog.Logger
	TTS    tts.Provider
}

type speechRequest struct {
	Input string `json:"input"`
}

func (h SpeechHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxSpeechInputBytes)

	var req speechRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, &core.Error{
			Type:    core.ErrInvalidRequest,
			Message: "body must be a JSON object with a string \"input\"",
			Param:   "input",
		})
		return
	}
	if strings.TrimSpace(req.Input) == "" {
		writeError(w, r, http.StatusBadRequest, &core.Error{
			Type:    core.ErrInvalidRequest,
			Message: "input must not be empty",
			Param:   "input",
		})
		return
	}

	synthesis, err := h.TTS.Synthesize(r.Context(), req.Input)
	if err != nil {
		h.Logger.Error("speech synthesis failed", "provider", h.TTS.Name(), "error", err)
		writeError(w, r, http.StatusBadGateway, core.NewUpstreamError("speech", err))
		return
	}

	w.Header().Set("Content-Type", synthesis.ContentType)
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(synthesis.Audio)
}
