// Package session implements the per-connection relay state machine: one
// utterance in, one streamed agent turn out, strictly one turn at a time.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/vango-go/talkrelay/pkg/core/types"
	"github.com/vango-go/talkrelay/pkg/relay/protocol"
)

// Session states.
const (
	StateIdle      = "idle"
	StateStreaming = "streaming"
)

// Conn is the subset of *websocket.Conn the session uses.
type Conn interface {
	ReadMessage() (messageType int, data []byte, err error)
	WriteMessage(messageType int, data []byte) error
	SetWriteDeadline(t time.Time) error
	Close() error
}

// DeltaStream is a finite, forward-only sequence of agent text deltas.
// Next blocks until a delta arrives, the stream ends (io.EOF), or it fails.
type DeltaStream interface {
	Next() (string, error)
	Close() error
}

// Completer opens one streaming completion call for a conversation snapshot.
type Completer interface {
	StreamChat(ctx context.Context, messages []types.Message) (DeltaStream, error)
}

// Config carries the per-session policy knobs.
type Config struct {
	Greeting           string
	WriteTimeout       time.Duration
	TurnTimeout        time.Duration
	MaxSessionDuration time.Duration
}

// Dependencies wires a Session to its connection and collaborators.
type Dependencies struct {
	Conn       Conn
	Logger     *slog.Logger
	Completion Completer
	SessionID  string
	RequestID  string
	Config     Config
}

// Session owns exactly one client connection for its whole lifetime. All turn
// processing runs on the single Run goroutine; only Cancel may be called from
// outside it.
type Session struct {
	conn       Conn
	logger     *slog.Logger
	completion Completer
	sessionID  string
	requestID  string
	cfg        Config

	log       *conversationLog
	streaming atomic.Bool

	ctx    context.Context
	cancel context.CancelFunc
}

func New(deps Dependencies) (*Session, error) {
	if deps.Conn == nil {
		return nil, fmt.Errorf("session requires a connection")
	}
	if deps.Completion == nil {
		return nil, fmt.Errorf("session requires a completion client")
	}
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	cfg := deps.Config
	if cfg.WriteTimeout <= 0 {
		cfg.WriteTimeout = 5 * time.Second
	}

	ctx := context.Background()
	var cancel context.CancelFunc
	if cfg.MaxSessionDuration > 0 {
		ctx, cancel = context.WithTimeout(ctx, cfg.MaxSessionDuration)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}

	return &Session{
		conn:       deps.Conn,
		logger:     logger,
		completion: deps.Completion,
		sessionID:  deps.SessionID,
		requestID:  deps.RequestID,
		cfg:        cfg,
		log:        newConversationLog(),
		ctx:        ctx,
		cancel:     cancel,
	}, nil
}

// State reports the turn state, for introspection only.
func (s *Session) State() string {
	if s.streaming.Load() {
		return StateStreaming
	}
	return StateIdle
}

// Turns returns a copy of the conversation log.
func (s *Session) Turns() []types.Message {
	return s.log.snapshot()
}

// TurnCount reports the number of logged turns without copying the log.
func (s *Session) TurnCount() int {
	return s.log.len()
}

// Cancel aborts the session from outside its goroutine. Closing the
// connection unblocks any pending read or write; the context cancels the
// in-flight completion stream.
func (s *Session) Cancel() {
	s.cancel()
	_ = s.conn.Close()
}

// Run drives the session until the connection closes or the session is
// canceled. It sends the greeting turn, then serves inbound utterances one at
// a time: an utterance arriving while a turn is streaming stays queued in the
// socket until the current turn has emitted done.
func (s *Session) Run() error {
	defer s.cancel()

	// Cancellation must unblock the read the loop is parked on.
	stop := context.AfterFunc(s.ctx, func() { _ = s.conn.Close() })
	defer stop()

	if err := s.sendGreeting(); err != nil {
		return s.finish(err)
	}

	for {
		messageType, data, err := s.conn.ReadMessage()
		if err != nil {
			return s.finish(err)
		}

		text, derr := protocol.DecodeInbound(messageType, data)
		if derr != nil {
			s.logger.Warn("dropping malformed inbound frame",
				"session_id", s.sessionID, "error", derr)
			continue
		}
		if strings.TrimSpace(text) == "" {
			s.logger.Warn("dropping empty utterance", "session_id", s.sessionID)
			continue
		}

		if err := s.processTurn(text); err != nil {
			return s.finish(err)
		}
	}
}

// sendGreeting emits the fixed agent-initiated first turn: one content frame
// and a done frame, with no completion call.
func (s *Session) sendGreeting() error {
	s.log.appendAgent(s.cfg.Greeting)
	if err := s.writeContent(s.cfg.Greeting); err != nil {
		return err
	}
	return s.writeDone()
}

// processTurn relays one agent turn. Whatever happens upstream the client
// observes the turn's content frames in order followed by exactly one done,
// unless the connection itself is gone.
func (s *Session) processTurn(text string) error {
	s.log.appendUser(text)
	s.streaming.Store(true)
	defer s.streaming.Store(false)

	turnCtx := s.ctx
	cancel := context.CancelFunc(func() {})
	if s.cfg.TurnTimeout > 0 {
		turnCtx, cancel = context.WithTimeout(s.ctx, s.cfg.TurnTimeout)
	}
	defer cancel()

	stream, err := s.completion.StreamChat(turnCtx, s.log.snapshot())
	if err != nil {
		s.logger.Error("completion stream failed to open",
			"session_id", s.sessionID, "request_id", s.requestID, "error", err)
		return s.writeDone()
	}
	defer stream.Close()

	agentIdx := -1
	relayed := 0
	for {
		delta, err := stream.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if s.ctx.Err() != nil {
				// Session canceled mid-turn: the connection is gone,
				// nothing more may be sent.
				return err
			}
			s.logger.Error("completion stream failed mid-turn",
				"session_id", s.sessionID, "request_id", s.requestID,
				"deltas_relayed", relayed, "error", err)
			break
		}

		if agentIdx < 0 {
			agentIdx = s.log.appendAgent("")
		}
		s.log.appendAgentDelta(agentIdx, delta)
		if err := s.writeContent(delta); err != nil {
			return err
		}
		relayed++
	}

	return s.writeDone()
}

func (s *Session) writeContent(text string) error {
	data, err := protocol.EncodeContent(text)
	if err != nil {
		return err
	}
	return s.writeFrame(data)
}

func (s *Session) writeDone() error {
	data, err := protocol.EncodeDone()
	if err != nil {
		return err
	}
	return s.writeFrame(data)
}

func (s *Session) writeFrame(data []byte) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.cfg.WriteTimeout)); err != nil {
		return err
	}
	return s.conn.WriteMessage(websocket.TextMessage, data)
}

// finish maps teardown errors: expected closes and cancellation are a normal
// end of session, anything else propagates to the acceptor for logging.
func (s *Session) finish(err error) error {
	if err == nil {
		return nil
	}
	if s.ctx.Err() != nil {
		return nil
	}
	if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseNoStatusReceived) {
		return nil
	}
	if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
