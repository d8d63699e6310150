package sse

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/starford/doclife/internal/models"
)

func TestSubscribeUnsubscribe(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	if b.ClientCount() != 1 {
		t.Fatalf("expected 1 client, got %d", b.ClientCount())
	}
	b.Unsubscribe(ch)
	if b.ClientCount() != 0 {
		t.Fatalf("expected 0 clients, got %d", b.ClientCount())
	}
}

func TestPublish(t *testing.T) {
	b := NewBroker(time.Second)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.Publish(Event{ID: "e1", Type: "test", Data: map[string]string{"key": "val"}})

	select {
	case msg := <-ch:
		s := string(msg)
		if !strings.Contains(s, "id: e1\n") {
			t.Errorf("missing id line: %s", s)
		}
		if !strings.Contains(s, "event: test") || !strings.Contains(s, `"key":"val"`) {
			t.Errorf("unexpected message: %s", s)
		}
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for event")
	}
}

func TestPublishDocumentEvent_ThrottlesReport(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	ch := b.Subscribe()
	defer b.Unsubscribe(ch)

	b.PublishDocumentEvent(models.Event{ID: "1", Kind: models.EventCreated, Path: "Active/a.md"})
	b.PublishDocumentEvent(models.Event{ID: "2", Kind: models.EventArchived, Path: "Archive/a.md", From: "Active/a.md"})

	var got []string
	timeout := time.After(500 * time.Millisecond)
loop:
	for {
		select {
		case msg := <-ch:
			got = append(got, string(msg))
		case <-timeout:
			break loop
		}
	}

	var types []string
	for _, m := range got {
		for _, line := range strings.Split(m, "\n") {
			if strings.HasPrefix(line, "event: ") {
				types = append(types, strings.TrimPrefix(line, "event: "))
			}
		}
	}
	want := []string{"document.created", TypeReportUpdated, "document.archived"}
	if strings.Join(types, ",") != strings.Join(want, ",") {
		t.Errorf("event types = %v, want %v", types, want)
	}
	if !strings.Contains(got[len(got)-1], `"from":"Active/a.md"`) {
		t.Errorf("archived payload missing from: %s", got[len(got)-1])
	}
}

func TestCloseClosesClients(t *testing.T) {
	b := NewBroker(time.Second)
	ch := b.Subscribe()
	b.Close()

	select {
	case _, ok := <-ch:
		if ok {
			t.Error("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("client channel not closed")
	}

	// Calls after close must not block.
	b.Publish(Event{Type: "x"})
	b.PublishDocumentEvent(models.Event{Kind: models.EventCreated})
	if n := b.ClientCount(); n != 0 {
		t.Errorf("ClientCount after close = %d", n)
	}
	b.Close()
}

func TestServeHTTP(t *testing.T) {
	b := NewBroker(time.Hour)
	defer b.Close()

	srv := httptest.NewServer(b)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Errorf("Content-Type = %q", ct)
	}

	deadline := time.Now().Add(2 * time.Second)
	for b.ClientCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	b.PublishDocumentEvent(models.Event{ID: "x1", Kind: models.EventUpdated, Path: "README.md"})

	buf := make([]byte, 512)
	n, err := resp.Body.Read(buf)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(buf[:n]), "event: document.updated") {
		t.Errorf("unexpected stream chunk: %q", buf[:n])
	}
}
