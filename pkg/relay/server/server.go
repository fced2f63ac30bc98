// Package server assembles the relay's HTTP surface: the live websocket
// endpoint, the voice proxy endpoints, health probes, and the embedded
// browser client.
package server

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/vango-go/talkrelay/pkg/core/completion"
	"github.com/vango-go/talkrelay/pkg/core/voice/stt"
	"github.com/vango-go/talkrelay/pkg/core/voice/tts"
	"github.com/vango-go/talkrelay/pkg/relay/config"
	"github.com/vango-go/talkrelay/pkg/relay/handlers"
	"github.com/vango-go/talkrelay/pkg/relay/lifecycle"
	"github.com/vango-go/talkrelay/pkg/relay/mw"
	"github.com/vango-go/talkrelay/pkg/relay/sessions"
	"github.com/vango-go/talkrelay/web"
)

type Server struct {
	cfg    config.Config
	logger *slog.Logger
	mux    *http.ServeMux

	httpClient   *http.Client
	completion   *completion.Client
	sttProvider  stt.Provider
	ttsProvider  tts.Provider
	lifecycle    *lifecycle.Lifecycle
	liveSessions *sessions.Tracker
}

func New(cfg config.Config, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.Default()
	}

	httpClient := &http.Client{
		Transport: &http.Transport{
			Proxy: http.ProxyFromEnvironment,
			DialContext: (&net.Dialer{
				Timeout: cfg.UpstreamConnectTimeout,
			}).DialContext,
			ForceAttemptHTTP2:     true,
			MaxIdleConns:          100,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: 1 * time.Second,
			ResponseHeaderTimeout: cfg.UpstreamResponseHeaderTimeout,
		},
	}

	s := &Server{
		cfg:    cfg,
		logger: logger,
		mux:    http.NewServeMux(),

		httpClient: httpClient,
		completion: completion.New(cfg.OpenAIAPIKey, cfg.ChatModel,
			completion.WithBaseURL(cfg.OpenAIBaseURL),
			completion.WithHTTPClient(httpClient),
			completion.WithIdleTimeout(cfg.StreamIdleTimeout)),
		sttProvider: stt.NewOpenAI(cfg.OpenAIAPIKey,
			stt.WithBaseURL(cfg.OpenAIBaseURL),
			stt.WithModel(cfg.STTModel),
			stt.WithHTTPClient(httpClient)),
		ttsProvider: tts.NewOpenAI(cfg.OpenAIAPIKey,
			tts.WithBaseURL(cfg.OpenAIBaseURL),
			tts.WithModel(cfg.TTSModel),
			tts.WithVoice(cfg.TTSVoice),
			tts.WithHTTPClient(httpClient)),
		lifecycle:    &lifecycle.Lifecycle{},
		liveSessions: sessions.NewTracker(),
	}

	s.routes()
	return s
}

func (s *Server) routes() {
	s.mux.Handle("/healthz", handlers.HealthHandler{})
	s.mux.Handle("/readyz", handlers.ReadyHandler{Config: s.cfg, Lifecycle: s.lifecycle})

	s.mux.Handle("/ws", handlers.WSHandler{
		Config:       s.cfg,
		Logger:       s.logger,
		Completion:   s.completion,
		Lifecycle:    s.lifecycle,
		LiveSessions: s.liveSessions,
	})

	s.mux.Handle("/v1/transcribe", handlers.TranscribeHandler{
		Config: s.cfg,
		Logger: s.logger,
		STT:    s.sttProvider,
	})
	s.mux.Handle("/v1/speech", handlers.SpeechHandler{
		Config: s.cfg,
		Logger: s.logger,
		TTS:    s.ttsProvider,
	})

	s.mux.Handle("/", web.Handler())
}

func (s *Server) Handler() http.Handler {
	var h http.Handler = s.mux
	h = mw.CORS(s.cfg, h)
	h = mw.Recover(s.logger, h)
	h = mw.AccessLog(s.logger, h)
	h = mw.RequestID(h)
	return h
}

// SetDraining flips the server into drain mode: probes report not ready and
// new websocket sessions are refused. Existing sessions keep running.
func (s *Server) SetDraining() {
	s.lifecycle.SetDraining(true)
}

func (s *Server) WarnLiveSessionsDraining() {
	if n := s.liveSessions.Count(); n > 0 {
		s.logger.Warn("draining with live sessions", "sessions", n)
	}
}

// WaitLiveSessions blocks until all live sessions end or ctx does. It
// reports whether the tracker fully drained.
func (s *Server) WaitLiveSessions(ctx context.Context) bool {
	return s.liveSessions.Wait(ctx)
}

func (s *Server) CancelLiveSessions() {
	if n := s.liveSessions.CancelAll(); n > 0 {
		s.logger.Warn("canceled live sessions at shutdown", "sessions", n)
	}
}
