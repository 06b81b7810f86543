package client

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

	"github.com/charmbracelet/log"

	"kahaani/agent"
	"kahaani/history"
	"kahaani/pipeline"
)

func quiet() *log.Logger { return log.New(io.Discard) }

func successBody(titles ...string) []byte {
	scripts := make([]agent.ScriptRecord, len(titles))
	for i, title := range titles {
		scripts[i] = agent.ScriptRecord{Title: title, Topic: title + " topic", Script: "body", WordCount: 950}
	}
	data, _ := json.Marshal(pipeline.Response{
		Status:   pipeline.StatusSuccess,
		Product:  pipeline.ProductName,
		Params:   pipeline.Params{Mode: agent.ModeInform, Language: agent.LanguageEnglish},
		Research: pipeline.Research{Summary: "summary", Sources: pipeline.Sources, SelectedTopics: []agent.SelectedTopic{}},
		Scripts:  scripts,
		Totals:   pipeline.ComputeTotals(scripts),
	})
	return data
}

func newClient(t *testing.T, endpoint string, store *history.Store, timeout time.Duration) *Client {
	t.Helper()
	c, err := New(Options{Endpoint: endpoint, Timeout: timeout, History: store, Logger: quiet()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return c
}

func TestGenerateSendsExclusionsAndRecordsHistory(t *testing.T) {
	var received []generateRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.Header.Get("Content-Type") != "application/json" {
			t.Errorf("unexpected request %s %s", r.Method, r.Header.Get("Content-Type"))
		}
		var req generateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("bad body: %v", err)
		}
		received = append(received, req)
		w.Header().Set("Content-Type", "application/json")
		w.Write(successBody(fmt.Sprintf("Title %d", len(received))))
	}))
	defer srv.Close()

	store := history.NewStore(history.NewMemoryBackend(0), history.Options{Logger: quiet()})
	c := newClient(t, srv.URL, store, time.Second)

	resp, err := c.Generate(context.Background(), "inform", "en")
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if len(resp.Scripts) != 1 || resp.Scripts[0].Title != "Title 1" {
		t.Errorf("unexpected scripts %+v", resp.Scripts)
	}
	if received[0].ExcludeTopics == nil || len(received[0].ExcludeTopics) != 0 {
		t.Errorf("first request should send an empty exclusion list, got %v", received[0].ExcludeTopics)
	}

	if _, err := c.Generate(context.Background(), "both", "hi"); err != nil {
		t.Fatalf("Generate: %v", err)
	}
	second := received[1]
	if second.Mode != "both" || second.Language != "hi" {
		t.Errorf("unexpected params %+v", second)
	}
	want := map[string]bool{"title 1": true, "title 1 topic": true}
	if len(second.ExcludeTopics) != len(want) {
		t.Fatalf("unexpected exclusions %v", second.ExcludeTopics)
	}
	for _, e := range second.ExcludeTopics {
		if !want[e] {
			t.Errorf("unexpected exclusion %q", e)
		}
	}

	if n := len(store.List()); n != 2 {
		t.Errorf("expected 2 history entries, got %d", n)
	}
}

func TestGenerateServerError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte(`{"error":"Script generation failed. Please try again."}`))
	}))
	defer srv.Close()

	store := history.NewStore(history.NewMemoryBackend(0), history.Options{Logger: quiet()})
	c := newClient(t, srv.URL, store, time.Second)

	_, err := c.Generate(context.Background(), "both", "en")
	var serverErr *ServerError
	if !errors.As(err, &serverErr) || serverErr.StatusCode != http.StatusInternalServerError {
		t.Fatalf("expected ServerError 500, got %v", err)
	}
	if serverErr.Message != "Script generation failed. Please try again." {
		t.Errorf("unexpected message %q", serverErr.Message)
	}
	if FriendlyMessage(err) != MessageServer {
		t.Errorf("unexpected friendly message %q", FriendlyMessage(err))
	}
	if len(store.List()) != 0 {
		t.Error("failed generations must not be recorded")
	}
}

func TestGenerateUnexpectedStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"pending"}`))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, nil, time.Second)
	if _, err := c.Generate(context.Background(), "both", "en"); !errors.Is(err, ErrUnexpectedStatus) {
		t.Errorf("expected ErrUnexpectedStatus, got %v", err)
	}
}

func TestGenerateTimeout(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := newClient(t, srv.URL, nil, 50*time.Millisecond)
	_, err := c.Generate(context.Background(), "both", "en")
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("expected ErrTimedOut, got %v", err)
	}
	if FriendlyMessage(err) != MessageTimeout {
		t.Errorf("unexpected friendly message %q", FriendlyMessage(err))
	}
	if c.Busy() {
		t.Error("client should be idle after a timeout")
	}
}

func TestGenerateBusy(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		close(entered)
		<-release
		w.Write(successBody("A"))
	}))
	defer srv.Close()

	c := newClient(t, srv.URL, nil, 5*time.Second)

	done := make(chan error, 1)
	go func() {
		_, err := c.Generate(context.Background(), "both", "en")
		done <- err
	}()

	<-entered
	if _, err := c.Generate(context.Background(), "both", "en"); !errors.Is(err, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", err)
	}
	close(release)

	if err := <-done; err != nil {
		t.Errorf("first call failed: %v", err)
	}
	if c.Busy() {
		t.Error("client should be idle after completion")
	}
}

func TestGenerateUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	c := newClient(t, url, nil, time.Second)
	_, err := c.Generate(context.Background(), "both", "en")
	if !errors.Is(err, ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if FriendlyMessage(err) != MessageConnectivity {
		t.Errorf("unexpected friendly message %q", FriendlyMessage(err))
	}
}

func TestFriendlyMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"nil", nil, ""},
		{"internal", &ServerError{StatusCode: 500}, MessageServer},
		{"unavailable", &ServerError{StatusCode: 503, Message: "Service not configured"}, MessageServer},
		{"bad request", &ServerError{StatusCode: 405}, MessageGeneric},
		{"timeout", fmt.Errorf("%w after 3m0s", ErrTimedOut), MessageTimeout},
		{"deadline", context.DeadlineExceeded, MessageTimeout},
		{"network", fmt.Errorf("%w: dial tcp", ErrUnreachable), MessageConnectivity},
		{"busy", ErrBusy, MessageGeneric},
		{"other", errors.New("odd"), MessageGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FriendlyMessage(tt.err); got != tt.want {
				t.Errorf("FriendlyMessage(%v) = %q, want %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestNewRequiresEndpoint(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without endpoint")
	}
}
