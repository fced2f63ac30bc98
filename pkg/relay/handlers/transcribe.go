package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/vango-go/talkrelay/pkg/core"
	"github.com/vango-go/talkrelay/pkg/core/voice/stt"
	"github.com/vango-go/talkrelay/pkg/relay/config"
)

// TranscribeHandler proxies captured audio to the transcription provider so
// the browser never holds an upstream API key. It accepts a multipart upload
// with the audio under the "file" field.
type TranscribeHandler struct {
	Config config.Config
	Logger *slog.Logger
	STT    stt.Provider
}

func (h TranscribeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, h.Config.MaxAudioBodyBytes)

	file, header, err := r.FormFile("file")
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, r, http.StatusRequestEntityTooLarge, &core.Error{
				Type:    core.ErrInvalidRequest,
				Message: "audio upload exceeds the size limit",
				Param:   "file",
				Code:    "body_too_large",
			})
			return
		}
		writeError(w, r, http.StatusBadRequest, &core.Error{
			Type:    core.ErrInvalidRequest,
			Message: "multipart form must carry the audio under \"file\"",
			Param:   "file",
		})
		return
	}
	defer file.Close()

	transcript, err := h.STT.Transcribe(r.Context(), file, header.Filename)
	if err != nil {
		h.Logger.Error("transcription failed", "provider", h.STT.Name(), "error", err)
		writeError(w, r, http.StatusBadGateway, core.NewUpstreamError("transcription", err))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	_ = json.NewEncoder(w).Encode(struct {
		Text string `json:"text"`
	}{Text: transcript.Text})
}
