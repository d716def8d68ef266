package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/history"
)

func TestServerRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start the server in a goroutine.
	started := make(chan *ServerState, 1)
	errCh := make(chan error, 1)
	go func() {
		errCh <- Run(ctx, "", NewServerState(config.Default(), nil), started)
	}()
	s := <-started

	resp, err := http.Get("http://" + s.Address + "/")
	if err != nil {
		t.Fatalf("Failed to connect to server: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("Expected status OK, got %v", resp.Status)
	}
	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("Failed to read body: %v", err)
	}
	// The go-app framework generates standard HTML, with our app name in it.
	if body := string(bodyBytes); !strings.Contains(body, "GoSlot") {
		t.Errorf("Expected body to contain 'GoSlot', got body: %s", body)
	}

	// Cancel the context to stop the server.
	cancel()
	select {
	case err := <-errCh:
		if err != nil {
			t.Errorf("Server shut down with error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Errorf("Server took too long to shut down")
	}
}

func TestStatsWithoutHistory(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan *ServerState, 1)
	go func() { _ = Run(ctx, "", NewServerState(config.Default(), nil), started) }()
	s := <-started

	resp, err := http.Get("http://" + s.Address + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.LiveSessions != 0 || stats.History != nil {
		t.Errorf("Unexpected stats without history: %+v", stats)
	}

	resp, err = http.Get("http://" + s.Address + "/api/recent")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("/api/recent without history: got %v, want 404", resp.Status)
	}
}

func TestRecentInvalidN(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	started := make(chan *ServerState, 1)
	go func() { _ = Run(ctx, "", NewServerState(config.Default(), store), started) }()
	s := <-started

	for _, n := range []string{"0", "-3", "abc"} {
		resp, err := http.Get("http://" + s.Address + "/api/recent?n=" + n)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != http.StatusBadRequest {
			t.Errorf("n=%s: got %v, want 400", n, resp.Status)
		}
	}
}

func TestRunClosesHistoryOnError(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Failed to open history: %v", err)
	}
	// The port is out of range: listening fails.
	err = Run(context.Background(), "127.0.0.1:99999", NewServerState(config.Default(), store), nil)
	if err == nil {
		t.Fatalf("Expected Run to fail on an invalid address")
	}
	if _, err := store.Stats(context.Background()); err == nil {
		t.Errorf("Expected history to be closed after Run returned")
	}
}
