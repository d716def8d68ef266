// Package frontend is the go-app page of the slot machine. It runs in the
// browser (wasm) and is prerendered by the server.
package frontend

import (
	"context"
	"fmt"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// GlobalClientState manages the connection and what the server painted.
type GlobalClientState struct {
	Conn  *websocket.Conn
	Error string

	// Screen is the slot window as painted by the server.
	Screen    game.Grid
	Banner    string
	BannerWin bool
	Round     game.RoundView
	Latency   time.Duration

	SoundEnabled bool
	MotionActive bool

	// Listeners for state updates
	Listeners map[string]func()
}

var State *GlobalClientState

func InitState() {
	if State == nil {
		klog.V(1).Infof("InitState: creating new state (was nil)")
		State = &GlobalClientState{
			Listeners:    make(map[string]func()),
			SoundEnabled: true,
		}
	} else {
		klog.V(1).Infof("InitState: state already exists")
	}
}

func (s *GlobalClientState) ToggleSound() {
	s.SoundEnabled = !s.SoundEnabled
	klog.Infof("ToggleSound: SoundEnabled is now %v", s.SoundEnabled)
	s.Notify()
}

// PlaySound plays a sound effect, if sound is enabled.
func (s *GlobalClientState) PlaySound(url string) {
	if app.IsServer || !s.SoundEnabled {
		return
	}
	audio := app.Window().Get("document").Call("createElement", "audio")
	audio.Set("src", url)

	// Play the sound (fire and forget)
	promise := audio.Call("play")
	if promise.Truthy() {
		promise.Call("catch", app.FuncOf(func(this app.Value, args []app.Value) any {
			klog.Errorf("PlaySound: Failed to play %s: %v", url, args[0])
			return nil
		}))
	}
}

func (s *GlobalClientState) Notify() {
	klog.V(2).Infof("GlobalClientState: Notifying %d listeners", len(s.Listeners))
	for _, l := range s.Listeners {
		if l != nil {
			l()
		}
	}
}

// ConnectWS connects to the server and says hello: the server then starts a
// session for this page.
func (s *GlobalClientState) ConnectWS() error {
	if s.Conn != nil {
		klog.Infof("ConnectWS: Closing existing connection")
		s.Conn.CloseNow()
	}

	scheme := "ws"
	if app.Window().URL().Scheme == "https" {
		scheme = "wss"
	}
	wsURL := fmt.Sprintf("%s://%s/ws", scheme, app.Window().URL().Host)
	klog.Infof("ConnectWS: Connecting to %s", wsURL)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second*10)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		klog.Errorf("ConnectWS: Dial failed: %v", err)
		return fmt.Errorf("dial failed: %w", err)
	}
	s.Conn = conn

	helloMsg, err := game.NewWsMessage(game.MsgTypeHello, game.HelloMessage{
		DeviceName: app.Window().Get("navigator").Get("userAgent").String(),
	})
	if err != nil {
		return fmt.Errorf("failed to create hello message: %w", err)
	}
	if err := wsjson.Write(ctx, conn, helloMsg); err != nil {
		klog.Errorf("ConnectWS: Failed to send hello: %v", err)
		return fmt.Errorf("failed to send hello: %w", err)
	}

	klog.Infof("ConnectWS: Hello sent. Starting read loop.")
	go s.readLoop(conn)
	return nil
}

func (s *GlobalClientState) readLoop(conn *websocket.Conn) {
	ctx := context.Background()
	for {
		var msg game.WsMessage
		if err := wsjson.Read(ctx, conn, &msg); err != nil {
			klog.Errorf("readLoop: WS read error: %v", err)
			s.Error = "Connection to the slot machine lost."
			s.Notify()
			return
		}
		s.handleMessage(msg)
	}
}

func (s *GlobalClientState) handleMessage(msg game.WsMessage) {
	p, err := msg.Parse()
	if err != nil {
		klog.Errorf("handleMessage: Failed to parse %s message: %v", msg.Type, err)
		return
	}
	switch m := p.(type) {
	case *game.PaintMessage:
		for _, c := range m.Cells {
			if c.Col < 0 || c.Col >= game.Cols || c.Row < 0 || c.Row >= game.Rows {
				klog.Warningf("handleMessage: paint outside the grid: %+v", c)
				continue
			}
			s.Screen[c.Col][c.Row] = c.Symbol
		}
		s.Notify()

	case *game.BannerMessage:
		s.Banner, s.BannerWin = m.Text, m.Win
		switch {
		case m.Text == "":
		case m.Win:
			s.PlaySound("/web/sounds/win.mp3")
		default:
			s.PlaySound("/web/sounds/lose.mp3")
		}
		s.Notify()

	case *game.StateMessage:
		klog.V(1).Infof("handleMessage: %s", &m.Round)
		if m.Round.Next > s.Round.Next && m.Round.Number == s.Round.Number {
			s.PlaySound("/web/sounds/stop.mp3")
		}
		s.Round = m.Round
		s.Error = ""
		s.Notify()

	case *game.ErrorMessage:
		s.Error = m.Message
		s.Notify()

	case *game.PingMessage:
		s.write(game.MsgTypePong, game.PongMessage{
			ServerTime: m.ServerTime,
			ClientTime: time.Now().UnixNano(),
		})
	}
}

func (s *GlobalClientState) write(msgType game.MessageType, payload any) {
	if s.Conn == nil {
		return
	}
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		klog.Errorf("Failed to create %s message: %v", msgType, err)
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), time.Second*2)
	defer cancel()
	if err := wsjson.Write(ctx, s.Conn, msg); err != nil {
		klog.Errorf("Failed to send %s message: %v", msgType, err)
	}
}

// SendMotion sends an acceleration sample, in g, to the server.
func (s *GlobalClientState) SendMotion(m game.MotionMessage) {
	s.write(game.MsgTypeMotion, m)
}

// SendShake sends a synthetic shake, for devices without a motion sensor.
func (s *GlobalClientState) SendShake() {
	s.SendMotion(game.MotionMessage{Z: ShakeG, Source: "button"})
}
