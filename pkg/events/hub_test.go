package events

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestHub_PublishSubscribe(t *testing.T) {
	t.Parallel()
	h := NewHub()
	a := h.Subscribe()
	b := h.Subscribe()

	Emit(h, "req-1", TypeSendProgress, map[string]int{"sent": 1})

	for _, ch := range []chan string{a, b} {
		select {
		case msg := <-ch:
			var evt Event
			if err := json.Unmarshal([]byte(msg), &evt); err != nil {
				t.Fatalf("invalid event json: %v", err)
			}
			if evt.Type != TypeSendProgress || evt.RequestID != "req-1" || evt.Version != 1 {
				t.Errorf("unexpected event %+v", evt)
			}
			if string(evt.Data) != `{"sent":1}` {
				t.Errorf("unexpected data %s", evt.Data)
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive event")
		}
	}

	h.Unsubscribe(a)
	h.Unsubscribe(a)
	if _, ok := <-a; ok {
		t.Error("expected channel to be closed after unsubscribe")
	}
}

func TestHub_DropsForSlowSubscribers(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ch := h.Subscribe()
	for i := 0; i < 100; i++ {
		h.Publish("x")
	}
	if got := len(ch); got != cap(ch) {
		t.Errorf("expected buffer to be full at %d, got %d", cap(ch), got)
	}
}

func TestEmit_NilPublisher(t *testing.T) {
	t.Parallel()
	Emit(nil, "", TypePing, nil)
}

func TestServeSSE(t *testing.T) {
	t.Parallel()
	h := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil).WithContext(ctx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeSSE(rec, req, "rid")
		close(done)
	}()

	// wait for the subscription before publishing
	deadline := time.Now().Add(time.Second)
	for {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	Emit(h, "rid", TypeSendFinished, nil)
	time.Sleep(50 * time.Millisecond)
	cancel()
	<-done

	body := rec.Body.String()
	if !strings.Contains(body, `"type":"ping"`) || !strings.Contains(body, `"type":"send.finished"`) {
		t.Errorf("unexpected stream body: %s", body)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("unexpected content type %q", ct)
	}
}

func TestHub_CloseEndsStreams(t *testing.T) {
	t.Parallel()
	h := NewHub()
	req := httptest.NewRequest(http.MethodGet, "/api/events", nil)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		h.ServeSSE(rec, req, "rid")
		close(done)
	}()

	deadline := time.Now().Add(time.Second)
	for {
		h.mu.Lock()
		n := len(h.clients)
		h.mu.Unlock()
		if n == 1 || time.Now().After(deadline) {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	h.Close()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("stream still open after Close")
	}

	// subscribing after Close yields a closed channel
	if _, ok := <-h.Subscribe(); ok {
		t.Error("expected closed channel after Close")
	}
	h.Publish("late")
}
