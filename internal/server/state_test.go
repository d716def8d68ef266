package server

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"path/filepath"
	"testing"
	"testing/synctest"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/history"
)

// fastConfig plays quickly: no quiet period between shakes.
func fastConfig(winChance float64) config.Config {
	cfg := config.Default()
	cfg.WinChance = winChance
	cfg.TickPeriod = 5 * time.Millisecond
	cfg.Debounce = 0
	cfg.Seed = 42
	return cfg
}

// connectAndHello dials the server, says hello and answers the first ping.
func connectAndHello(t *testing.T, ctx context.Context, url string, opts *websocket.DialOptions) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.Dial(ctx, url, opts)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	helloMsg, _ := game.NewWsMessage(game.MsgTypeHello, game.HelloMessage{DeviceName: "test device"})
	if err := wsjson.Write(ctx, conn, helloMsg); err != nil {
		t.Fatalf("Failed to send hello: %v", err)
	}

	// Handle initial Ping from server.
	var pingMsg game.WsMessage
	if err := wsjson.Read(ctx, conn, &pingMsg); err != nil {
		t.Fatalf("Failed to read ping: %v", err)
	}
	if pingMsg.Type != game.MsgTypePing {
		t.Fatalf("Expected ping, got %s", pingMsg.Type)
	}
	p, err := pingMsg.Parse()
	if err != nil {
		t.Fatalf("Failed to parse ping: %v", err)
	}
	pongMsg, _ := game.NewWsMessage(game.MsgTypePong, game.PongMessage{
		ServerTime: p.(*game.PingMessage).ServerTime,
		ClientTime: time.Now().UnixNano(),
	})
	if err := wsjson.Write(ctx, conn, pongMsg); err != nil {
		t.Fatalf("Failed to send pong: %v", err)
	}
	return conn
}

func sendShake(t *testing.T, ctx context.Context, conn *websocket.Conn) {
	t.Helper()
	msg, _ := game.NewWsMessage(game.MsgTypeMotion, game.MotionMessage{Z: 3, Source: "button"})
	if err := wsjson.Write(ctx, conn, msg); err != nil {
		t.Fatalf("Failed to send motion: %v", err)
	}
}

// remote replays the server messages on a local screen.
type remote struct {
	screen game.Grid
	banner *game.BannerMessage
	state  game.RoundView
}

// readUntilState reads messages until a state message for which done is true.
func (d *remote) readUntilState(t *testing.T, ctx context.Context, conn *websocket.Conn, done func(game.RoundView) bool) {
	t.Helper()
	for {
		var msg game.WsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			t.Fatalf("Failed to read message: %v", err)
		}
		p, err := msg.Parse()
		if err != nil {
			t.Fatalf("Failed to parse %s payload: %v", msg.Type, err)
		}
		switch m := p.(type) {
		case *game.PaintMessage:
			for _, c := range m.Cells {
				d.screen[c.Col][c.Row] = c.Symbol
			}
		case *game.BannerMessage:
			d.banner = m
		case *game.StateMessage:
			d.state = m.Round
			if done(m.Round) {
				return
			}
		case *game.ErrorMessage:
			t.Fatalf("Server error: %s", m.Message)
		}
	}
}

func TestSlotWebsocket(t *testing.T) {
	for _, tc := range []struct {
		name      string
		winChance float64
		banner    string
	}{
		{"always", 1, game.WinBanner},
		{"never", 0, game.LoseBanner},
	} {
		t.Run(tc.name, func(t *testing.T) {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()

			started := make(chan *ServerState, 1)
			go Run(ctx, "", NewServerState(fastConfig(tc.winChance), nil), started)
			s := <-started
			conn := connectAndHello(t, ctx, "ws://"+s.Address+"/ws", nil)
			defer conn.CloseNow()

			var d remote
			d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Number == 1 })
			if d.state.Phase != game.PhaseSpinning || d.state.Next != 0 || d.state.SessionID == "" {
				t.Fatalf("Unexpected initial state: %s", &d.state)
			}

			for col := range game.Cols {
				sendShake(t, ctx, conn)
				d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Next == col+1 })
				if !d.state.Stopped[col] {
					t.Fatalf("Column %d not stopped: %s", col, &d.state)
				}
				if d.screen[col] != d.state.Displayed[col] {
					t.Fatalf("Column %d painted %v, state shows %v", col, d.screen[col], d.state.Displayed[col])
				}
			}

			if d.state.Phase != game.PhaseFinished || d.state.Banner != tc.banner {
				t.Fatalf("Unexpected final state: %s", &d.state)
			}
			if d.banner == nil || d.banner.Text != tc.banner || d.banner.Win != (tc.winChance == 1) {
				t.Fatalf("Banner = %+v, want %q", d.banner, tc.banner)
			}
			if got := game.Evaluate(&d.screen); got != d.state.Won {
				t.Fatalf("Screen %s evaluates to %t, state says won=%t", d.screen, got, d.state.Won)
			}

			// One more shake starts the next round and clears the banner.
			sendShake(t, ctx, conn)
			d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Number == 2 })
			if d.banner.Text != "" || d.state.Phase != game.PhaseSpinning {
				t.Fatalf("Round 2 did not reset: banner=%+v state=%s", d.banner, &d.state)
			}

			s.mu.RLock()
			n := len(s.Sessions)
			s.mu.RUnlock()
			if n != 1 {
				t.Errorf("Expected 1 live session, got %d", n)
			}
		})
	}
}

func TestHelloRequired(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	started := make(chan *ServerState, 1)
	go Run(ctx, "", NewServerState(fastConfig(0), nil), started)
	s := <-started

	conn, _, err := websocket.Dial(ctx, "ws://"+s.Address+"/ws", nil)
	if err != nil {
		t.Fatalf("Dial error: %v", err)
	}
	defer conn.CloseNow()
	sendShake(t, ctx, conn)

	var msg game.WsMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		t.Fatalf("Failed to read reply: %v", err)
	}
	if msg.Type != game.MsgTypeError {
		t.Fatalf("Expected error message, got %s", msg.Type)
	}
	if err := wsjson.Read(ctx, conn, &msg); websocket.CloseStatus(err) != websocket.StatusPolicyViolation {
		t.Fatalf("Expected policy violation close, got %v", err)
	}
}

func TestHistoryRecorded(t *testing.T) {
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	started := make(chan *ServerState, 1)
	go Run(ctx, "", NewServerState(fastConfig(1), store), started)
	s := <-started

	conn := connectAndHello(t, ctx, "ws://"+s.Address+"/ws", nil)
	defer conn.CloseNow()
	var d remote
	d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return true })
	for col := range game.Cols {
		sendShake(t, ctx, conn)
		d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Next == col+1 })
	}

	resp, err := http.Get("http://" + s.Address + "/api/stats")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var stats StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode stats: %v", err)
	}
	if stats.LiveSessions != 1 || stats.History == nil || stats.History.Rounds != 1 || stats.History.Wins != 1 {
		t.Fatalf("Unexpected stats: %+v (history %+v)", stats, stats.History)
	}

	resp, err = http.Get("http://" + s.Address + "/api/recent?n=5")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var entries []history.Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		t.Fatalf("Failed to decode recent rounds: %v", err)
	}
	if len(entries) != 1 || entries[0].SessionID != d.state.SessionID || entries[0].Final != d.state.Displayed {
		t.Fatalf("Unexpected recent rounds: %+v", entries)
	}
}

// pipeListener serves HTTP connections over net.Pipe.
type pipeListener struct {
	ch   chan net.Conn
	done chan struct{}
}

func (l *pipeListener) Accept() (net.Conn, error) {
	select {
	case c := <-l.ch:
		return c, nil
	case <-l.done:
		return nil, net.ErrClosed
	}
}

func (l *pipeListener) Close() error {
	select {
	case <-l.done:
	default:
		close(l.done)
	}
	return nil
}

func (l *pipeListener) Addr() net.Addr { return &net.TCPAddr{} }

// dialOptions connects websocket clients to l. net.Pipe is unbuffered, so a
// write only returns once the other side reads it.
func (l *pipeListener) dialOptions() *websocket.DialOptions {
	return &websocket.DialOptions{
		HTTPClient: &http.Client{
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					cli, srv := net.Pipe()
					l.ch <- srv
					return cli, nil
				},
			},
		},
	}
}

// TestHandshakeOverPipe checks that the server reads the pong of its first
// ping while it sends the initial state, over an unbuffered connection.
func TestHandshakeOverPipe(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := NewServerState(fastConfig(0.5), nil)
		srv := &http.Server{Handler: http.HandlerFunc(s.HandleWS)}
		listener := &pipeListener{ch: make(chan net.Conn, 10), done: make(chan struct{})}
		defer listener.Close()
		go srv.Serve(listener)
		defer srv.Close()

		conn := connectAndHello(t, ctx, "http://localhost/ws", listener.dialOptions())
		defer conn.CloseNow()

		var d remote
		d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return true })
		if d.state.Next != 0 || d.state.SessionID == "" {
			t.Fatalf("Unexpected initial state: %+v", d.state)
		}
		synctest.Wait()

		s.mu.RLock()
		c := s.Sessions[d.state.SessionID]
		s.mu.RUnlock()
		if c == nil {
			t.Fatalf("Session %s not registered", d.state.SessionID)
		}
		if c.Latency() < 0 {
			t.Fatalf("Negative latency %s", c.Latency())
		}
	})
}

// TestQuietPeriodOverWebsocket checks, with fake time, that shakes sent
// during the quiet period after a reveal are dropped.
func TestQuietPeriodOverWebsocket(t *testing.T) {
	synctest.Test(t, func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		cfg := config.Default()
		cfg.Seed = 7
		s := NewServerState(cfg, nil)
		srv := &http.Server{Handler: http.HandlerFunc(s.HandleWS)}
		listener := &pipeListener{ch: make(chan net.Conn, 10), done: make(chan struct{})}
		defer listener.Close()
		go srv.Serve(listener)
		defer srv.Close()

		conn := connectAndHello(t, ctx, "http://localhost/ws", listener.dialOptions())
		defer conn.CloseNow()

		var d remote
		d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return true })

		sendShake(t, ctx, conn)
		d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Next == 1 })

		// Inside the quiet period.
		time.Sleep(cfg.Debounce / 2)
		sendShake(t, ctx, conn)
		time.Sleep(cfg.Debounce)
		synctest.Wait()

		s.mu.RLock()
		c := s.Sessions[d.state.SessionID]
		s.mu.RUnlock()
		if c == nil {
			t.Fatalf("Session %s not registered", d.state.SessionID)
		}
		if got := c.Round(); got.Next != 1 {
			t.Fatalf("Shake inside the quiet period was replayed: %s", &got)
		}

		sendShake(t, ctx, conn)
		d.readUntilState(t, ctx, conn, func(v game.RoundView) bool { return v.Next == 2 })
	})
}
