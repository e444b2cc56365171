package planner

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestCircuitBreakerTransitions(t *testing.T) {
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, 1, time.Minute, quietLogger())
	cb.now = func() time.Time { return now }

	require.NoError(t, cb.Allow())
	cb.RecordFailure()
	assert.Equal(t, CircuitClosed, cb.State())
	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State())
	assert.ErrorIs(t, cb.Allow(), ErrCircuitOpen)

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	assert.Equal(t, CircuitHalfOpen, cb.State())

	cb.RecordFailure()
	assert.Equal(t, CircuitOpen, cb.State(), "failure while probing reopens")

	now = now.Add(2 * time.Minute)
	require.NoError(t, cb.Allow())
	cb.RecordSuccess()
	assert.Equal(t, CircuitClosed, cb.State())
}

func fastRetry() RetryConfig {
	cfg := DefaultRetryConfig()
	cfg.InitialBackoff = time.Millisecond
	cfg.MaxBackoff = 5 * time.Millisecond
	cfg.Timeout = 5 * time.Second
	return cfg
}

func TestRetrierGivesUpOnNonRetriable(t *testing.T) {
	r := newRetrier(fastRetry(), quietLogger())
	calls := 0
	err := r.do(context.Background(), "op", func(context.Context) error {
		calls++
		return errors.New("bad request")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestRetrierRetriesTimeouts(t *testing.T) {
	r := newRetrier(fastRetry(), quietLogger())
	calls := 0
	err := r.do(context.Background(), "op", func(context.Context) error {
		calls++
		if calls < 3 {
			return fmt.Errorf("attempt %d: %w", calls, context.DeadlineExceeded)
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

const messageResponse = `{
  "id": "msg_01",
  "type": "message",
  "role": "assistant",
  "model": "claude-sonnet-4-5",
  "content": [{"type": "text", "text": "` + "```json\\n{\\\"epics\\\":[{\\\"title\\\":\\\"Checkout\\\"}]}\\n```" + `"}],
  "stop_reason": "end_turn",
  "usage": {"input_tokens": 10, "output_tokens": 20}
}`

func fakeMessagesServer(t *testing.T, failures int32, status int) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/messages", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		if atomic.AddInt32(&calls, 1) <= failures {
			w.WriteHeader(status)
			fmt.Fprint(w, `{"type":"error","error":{"type":"api_error","message":"try again"}}`)
			return
		}
		fmt.Fprint(w, messageResponse)
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func testClaude(t *testing.T, baseURL string) *Claude {
	t.Helper()
	c, err := NewClaude(Config{
		APIKey:  "test-key",
		BaseURL: baseURL + "/",
		Retry:   fastRetry(),
	}, quietLogger())
	require.NoError(t, err)
	return c
}

func TestClaudePropose(t *testing.T) {
	srv, calls := fakeMessagesServer(t, 0, 0)
	c := testClaude(t, srv.URL)

	p, err := c.Propose(context.Background(), Request{Intent: "sell things", Stage: StageNarrative})
	require.NoError(t, err)
	require.Len(t, p.Epics, 1)
	assert.Equal(t, "Checkout", p.Epics[0].Title)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestClaudeRetriesServerErrors(t *testing.T) {
	srv, calls := fakeMessagesServer(t, 2, http.StatusServiceUnavailable)
	c := testClaude(t, srv.URL)

	_, err := c.Propose(context.Background(), Request{Intent: "sell things", Stage: StageNarrative})
	require.NoError(t, err)
	assert.Equal(t, int32(3), atomic.LoadInt32(calls))
}

func TestClaudeDoesNotRetryClientErrors(t *testing.T) {
	srv, calls := fakeMessagesServer(t, 10, http.StatusBadRequest)
	c := testClaude(t, srv.URL)

	_, err := c.Propose(context.Background(), Request{Intent: "sell things", Stage: StageNarrative})
	require.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestClaudeRequiresKeyAndIntent(t *testing.T) {
	_, err := NewClaude(Config{}, nil)
	assert.Error(t, err)

	srv, _ := fakeMessagesServer(t, 0, 0)
	c := testClaude(t, srv.URL)
	_, err = c.Propose(context.Background(), Request{Stage: StageNarrative})
	assert.Error(t, err)
	_, err = c.Propose(context.Background(), Request{Intent: "x", Stage: "deploy"})
	assert.Error(t, err)
}
