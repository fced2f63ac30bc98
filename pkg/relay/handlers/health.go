package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vango-go/talkrelay/pkg/relay/config"
	"github.com/vango-go/talkrelay/pkg/relay/lifecycle"
)

type HealthHandler struct{}

func (h HealthHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok\n"))
}

type ReadyHandler struct {
	Config    config.Config
	Lifecycle *lifecycle.Lifecycle
}

func (h ReadyHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	type readyResp struct {
		OK       bool     `json:"ok"`
		Draining bool     `json:"draining"`
		Issues   []string `json:"issues,omitempty"`
	}

	issues := make([]string, 0, 4)
	if h.Config.OpenAIAPIKey == "" {
		issues = append(issues, "upstream api key is not configured")
	}
	if h.Config.ChatModel == "" {
		issues = append(issues, "chat model is not configured")
	}
	if h.Config.Greeting == "" {
		issues = append(issues, "greeting is not configured")
	}
	if h.Config.MaxAudioBodyBytes <= 0 {
		issues = append(issues, "max audio body bytes must be > 0")
	}
	if h.Config.WSMaxMessageBytes <= 0 {
		issues = append(issues, "ws max message bytes must be > 0")
	}
	if h.Config.WSWriteTimeout <= 0 || h.Config.WSMaxSessionDuration <= 0 {
		issues = append(issues, "ws timeouts must be > 0")
	}
	if h.Config.StreamIdleTimeout <= 0 {
		issues = append(issues, "stream idle timeout must be > 0")
	}

	draining := h.Lifecycle.IsDraining()
	resp := readyResp{
		OK:       len(issues) == 0 && !draining,
		Draining: draining,
		Issues:   issues,
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(resp)
}
