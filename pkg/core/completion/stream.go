package completion

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"
	"sync/atomic"
	"time"
)

// Stream is a pull-based iterator over the text deltas of one completion
// response. Next is the sole blocking point: it suspends until the upstream
// delivers a delta, ends the response, or fails.
type Stream struct {
	reader *bufio.Reader
	closer io.Closer
	cancel context.CancelFunc

	idleTimeout time.Duration
	idleTimer   *time.Timer
	idleFired   atomic.Bool

	err      error
	finished bool
}

func newStream(body io.ReadCloser, cancel context.CancelFunc, idleTimeout time.Duration) *Stream {
	s := &Stream{
		reader:      bufio.NewReader(body),
		closer:      body,
		cancel:      cancel,
		idleTimeout: idleTimeout,
	}
	if idleTimeout > 0 {
		s.idleTimer = time.AfterFunc(idleTimeout, func() {
			s.idleFired.Store(true)
			cancel()
		})
	}
	return s
}

// chatChunk is the upstream SSE streaming chunk format.
type chatChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Next returns the next text delta. It returns io.EOF when the upstream
// signals end-of-response, and a *StreamError when the stream fails or stays
// idle past the configured bound. After any error the stream is spent.
func (s *Stream) Next() (string, error) {
	if s.err != nil {
		return "", s.err
	}
	if s.finished {
		return "", io.EOF
	}

	for {
		line, err := s.reader.ReadString('\n')
		if err != nil {
			if err == io.EOF {
				s.finished = true
				return "", io.EOF
			}
			s.err = s.failure(err)
			return "", s.err
		}

		line = strings.TrimSpace(line)
		if line == "" || !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimPrefix(line, "data: ")
		if data == "[DONE]" {
			s.finished = true
			return "", io.EOF
		}

		var chunk chatChunk
		if err := json.Unmarshal([]byte(data), &chunk); err != nil {
			// Skip unparseable chunks rather than killing the turn.
			continue
		}
		if len(chunk.Choices) == 0 {
			continue
		}
		if delta := chunk.Choices[0].Delta.Content; delta != "" {
			s.resetIdle()
			return delta, nil
		}
	}
}

// failure maps a read error, distinguishing cooperative cancellation from the
// idle watchdog firing and from upstream transport failures.
func (s *Stream) failure(err error) error {
	if s.idleFired.Load() {
		return &StreamError{Message: "no delta within idle timeout"}
	}
	if errors.Is(err, context.Canceled) {
		return context.Canceled
	}
	return &StreamError{Message: "read upstream stream", cause: err}
}

func (s *Stream) resetIdle() {
	if s.idleTimer != nil {
		s.idleTimer.Reset(s.idleTimeout)
	}
}

// Close stops the idle watchdog, aborts the upstream request, and releases
// the response body. Safe to call more than once.
func (s *Stream) Close() error {
	if s.idleTimer != nil {
		s.idleTimer.Stop()
	}
	if s.cancel != nil {
		s.cancel()
	}
	return s.closer.Close()
}
