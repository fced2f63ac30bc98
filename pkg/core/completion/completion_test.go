package completion

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vango-go/talkrelay/pkg/core/types"
)

func sseHandler(t *testing.T, deltas []string, tail string) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			t.Errorf("path=%q, want /chat/completions", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("auth header=%q", got)
		}
		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if !req.Stream {
			t.Errorf("expected stream:true")
		}

		w.Header().Set("Content-Type", "text/event-stream")
		flusher := w.(http.Flusher)
		for _, d := range deltas {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", d)
			flusher.Flush()
		}
		if tail != "" {
			fmt.Fprint(w, tail)
			flusher.Flush()
		}
	}
}

func newTestClient(t *testing.T, handler http.Handler, opts ...Option) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	opts = append([]Option{WithBaseURL(srv.URL), WithHTTPClient(srv.Client())}, opts...)
	return New("test-key", "test-model", opts...), srv.Close
}

func collect(t *testing.T, s *Stream) ([]string, error) {
	t.Helper()
	var out []string
	for {
		delta, err := s.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return out, err
		}
		out = append(out, delta)
	}
}

func TestStreamChat_YieldsDeltasInOrderThenEOF(t *testing.T) {
	client, done := newTestClient(t, sseHandler(t, []string{"It's ", "sunny."}, "data: [DONE]\n\n"))
	defer done()

	stream, err := client.StreamChat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "What's the weather?"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	got, err := collect(t, stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 2 || got[0] != "It's " || got[1] != "sunny." {
		t.Fatalf("deltas=%q, want [\"It's \" \"sunny.\"]", got)
	}

	// A spent stream keeps returning EOF.
	if _, err := stream.Next(); err != io.EOF {
		t.Fatalf("err=%v, want io.EOF", err)
	}
}

func TestStreamChat_EOFWithoutDoneMarkerEndsStream(t *testing.T) {
	client, done := newTestClient(t, sseHandler(t, []string{"hi"}, ""))
	defer done()

	stream, err := client.StreamChat(context.Background(), []types.Message{{Role: types.RoleUser, Content: "hi"}})
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	got, err := collect(t, stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 1 || got[0] != "hi" {
		t.Fatalf("deltas=%q", got)
	}
}

func TestStreamChat_SkipsUnparseableAndEmptyChunks(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: not-json\n\n")
		io.WriteString(w, ": comment line\n\n")
		io.WriteString(w, "data: {\"choices\":[]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"role\":\"assistant\"}}]}\n\n")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"ok\"}}]}\n\n")
		io.WriteString(w, "data: [DONE]\n\n")
	})
	client, done := newTestClient(t, handler)
	defer done()

	stream, err := client.StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	got, err := collect(t, stream)
	if err != nil {
		t.Fatalf("collect: %v", err)
	}
	if len(got) != 1 || got[0] != "ok" {
		t.Fatalf("deltas=%q, want [ok]", got)
	}
}

func TestStreamChat_UpstreamErrorStatusIsStreamError(t *testing.T) {
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		io.WriteString(w, `{"error":{"message":"rate limited","type":"rate_limit_error"}}`)
	})
	client, done := newTestClient(t, handler)
	defer done()

	_, err := client.StreamChat(context.Background(), nil)
	if err == nil {
		t.Fatalf("expected error")
	}
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err=%T, want *StreamError", err)
	}
	if se.Status != http.StatusTooManyRequests || se.Message != "rate limited" {
		t.Fatalf("got status=%d message=%q", se.Status, se.Message)
	}
}

func TestStream_IdleTimeoutFailsStream(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		io.WriteString(w, "data: {\"choices\":[{\"delta\":{\"content\":\"one\"}}]}\n\n")
		w.(http.Flusher).Flush()
		<-release
	})
	client, done := newTestClient(t, handler, WithIdleTimeout(50*time.Millisecond))
	defer done()
	defer close(release)

	stream, err := client.StreamChat(context.Background(), nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	if delta, err := stream.Next(); err != nil || delta != "one" {
		t.Fatalf("first delta=%q err=%v", delta, err)
	}

	_, err = stream.Next()
	var se *StreamError
	if !errors.As(err, &se) {
		t.Fatalf("err=%v, want *StreamError after idle timeout", err)
	}
}

func TestStream_CancelPropagatesContextCanceled(t *testing.T) {
	release := make(chan struct{})
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.(http.Flusher).Flush()
		<-release
	})
	client, done := newTestClient(t, handler)
	defer done()
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	stream, err := client.StreamChat(ctx, nil)
	if err != nil {
		t.Fatalf("StreamChat: %v", err)
	}
	defer stream.Close()

	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err = stream.Next()
	if err == nil || err == io.EOF {
		t.Fatalf("err=%v, want cancellation error", err)
	}
}
