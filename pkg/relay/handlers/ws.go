package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/vango-go/talkrelay/pkg/core"
	"github.com/vango-go/talkrelay/pkg/core/completion"
	"github.com/vango-go/talkrelay/pkg/core/types"
	"github.com/vango-go/talkrelay/pkg/relay/config"
	"github.com/vango-go/talkrelay/pkg/relay/lifecycle"
	"github.com/vango-go/talkrelay/pkg/relay/mw"
	"github.com/vango-go/talkrelay/pkg/relay/session"
	"github.com/vango-go/talkrelay/pkg/relay/sessions"
)

// completerAdapter narrows *completion.Client to the session's Completer.
type completerAdapter struct {
	client *completion.Client
}

func (a completerAdapter) StreamChat(ctx context.Context, messages []types.Message) (session.DeltaStream, error) {
	stream, err := a.client.StreamChat(ctx, messages)
	if err != nil {
		return nil, err
	}
	return stream, nil
}

// WSHandler upgrades /ws requests and runs one relay session per connection.
type WSHandler struct {
	Config       config.Config
	Logger       *slog.Logger
	Completion   *completion.Client
	Lifecycle    *lifecycle.Lifecycle
	LiveSessions *sessions.Tracker
}

func (h WSHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		methodNotAllowed(w, r)
		return
	}
	if h.Lifecycle.IsDraining() {
		writeError(w, r, http.StatusServiceUnavailable, &core.Error{
			Type:    core.ErrOverloaded,
			Message: "relay is draining",
			Code:    "draining",
		})
		return
	}
	if !h.originAllowed(r) {
		writeError(w, r, http.StatusForbidden, &core.Error{
			Type:    core.ErrPermission,
			Message: "origin is not allowed",
			Param:   "Origin",
		})
		return
	}

	upgrader := websocket.Upgrader{
		// Origin was checked above against the configured allowlist.
		CheckOrigin: func(*http.Request) bool { return true },
	}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	if h.Config.WSMaxMessageBytes > 0 {
		conn.SetReadLimit(h.Config.WSMaxMessageBytes)
	}

	sessionID := "s_" + uuid.NewString()
	requestID, _ := mw.RequestIDFrom(r.Context())

	s, err := session.New(session.Dependencies{
		Conn:       conn,
		Logger:     h.Logger,
		Completion: completerAdapter{client: h.Completion},
		SessionID:  sessionID,
		RequestID:  requestID,
		Config: session.Config{
			Greeting:           h.Config.Greeting,
			WriteTimeout:       h.Config.WSWriteTimeout,
			TurnTimeout:        h.Config.TurnTimeout,
			MaxSessionDuration: h.Config.WSMaxSessionDuration,
		},
	})
	if err != nil {
		h.Logger.Error("failed to create live session",
			"session_id", sessionID, "request_id", requestID, "error", err)
		return
	}

	unregister := h.LiveSessions.Register(sessionID, sessions.Handle{Cancel: s.Cancel})
	defer unregister()

	h.Logger.Info("live session started",
		"session_id", sessionID, "request_id", requestID, "remote_addr", r.RemoteAddr)
	if err := s.Run(); err != nil {
		h.Logger.Warn("live session ended with error",
			"session_id", sessionID, "request_id", requestID, "error", err)
		return
	}
	h.Logger.Info("live session ended",
		"session_id", sessionID, "request_id", requestID, "turns", s.TurnCount())
}

// originAllowed accepts same-origin requests and any origin on the allowlist.
// Requests without an Origin header (curl, native clients) pass.
func (h WSHandler) originAllowed(r *http.Request) bool {
	origin := strings.TrimSpace(r.Header.Get("Origin"))
	if origin == "" {
		return true
	}
	if _, ok := h.Config.CORSAllowedOrigins[origin]; ok {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	return strings.EqualFold(u.Host, r.Host)
}
