package mail

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/taskdeck/taskdeck/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestSendPostsMessage(t *testing.T) {
	var got sendPayload
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth := r.Header.Get("Authorization"); auth != "Bearer key-123" {
			t.Errorf("unexpected authorization header: %q", auth)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode payload: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-123", "Taskdeck <notify@taskdeck.app>", 0, discardLogger())
	msg := Message{To: "ada@example.com", Subject: "hello", HTML: "<p>hi</p>", Text: "hi"}
	if err := client.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if got.To != msg.To || got.Subject != msg.Subject || got.From != "Taskdeck <notify@taskdeck.app>" {
		t.Fatalf("unexpected payload: %+v", got)
	}
}

func TestSendRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-123", "notify@taskdeck.app", 3, discardLogger())
	if err := client.Send(context.Background(), Message{To: "ada@example.com", Subject: "retry"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if calls.Load() != 2 {
		t.Fatalf("expected 2 attempts, got %d", calls.Load())
	}
}

func TestSendClientErrorsAreTerminal(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "key-123", "notify@taskdeck.app", 3, discardLogger())
	err := client.Send(context.Background(), Message{To: "bad@example.com", Subject: "nope"})
	if err == nil {
		t.Fatal("expected error for rejected message")
	}
	if calls.Load() != 1 {
		t.Fatalf("expected a single attempt for client error, got %d", calls.Load())
	}
}

func TestSendWithoutAPIKeyDrops(t *testing.T) {
	client := NewClient("https://api.example.com", "", "notify@taskdeck.app", 0, discardLogger())
	if err := client.Send(context.Background(), Message{To: "ada@example.com"}); err != nil {
		t.Fatalf("expected silent drop without api key, got %v", err)
	}
}

func TestInvitationTemplate(t *testing.T) {
	expires := time.Date(2026, time.September, 1, 0, 0, 0, 0, time.UTC)
	msg, err := Invitation("new@example.com", "Olive", "Roadmap", "https://app.test/invitations/accept?token=abc", expires)
	if err != nil {
		t.Fatalf("Invitation returned error: %v", err)
	}
	if msg.To != "new@example.com" {
		t.Fatalf("unexpected recipient: %q", msg.To)
	}
	if !strings.Contains(msg.HTML, "Olive") || !strings.Contains(msg.HTML, "Roadmap") {
		t.Fatalf("expected inviter and workspace in body: %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "Sep 1, 2026") {
		t.Fatalf("expected expiry date in body: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "https://app.test/invitations/accept?token=abc") {
		t.Fatalf("expected accept link in text body: %s", msg.Text)
	}
}

func TestDigestTemplate(t *testing.T) {
	due := time.Date(2026, time.August, 25, 17, 0, 0, 0, time.UTC)
	tasks := []domain.Task{
		{Title: "Ship the release", DueDate: &due},
		{Title: "Write <b>notes</b>"},
	}
	msg, err := Digest("ada@example.com", "Ada", tasks)
	if err != nil {
		t.Fatalf("Digest returned error: %v", err)
	}
	if msg.Subject != "2 tasks due today" {
		t.Fatalf("unexpected subject: %q", msg.Subject)
	}
	if !strings.Contains(msg.HTML, "Ship the release") || !strings.Contains(msg.HTML, "Aug 25 17:00") {
		t.Fatalf("expected task and due date in body: %s", msg.HTML)
	}
	if !strings.Contains(msg.HTML, "&lt;b&gt;notes&lt;/b&gt;") {
		t.Fatalf("expected title escaped in html body: %s", msg.HTML)
	}
	if !strings.Contains(msg.Text, "- Ship the release (due Aug 25 17:00)") {
		t.Fatalf("unexpected text body: %s", msg.Text)
	}
}
