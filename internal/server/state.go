package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/google/uuid"
	"github.com/janpfeifer/GoSlot/internal/config"
	"github.com/janpfeifer/GoSlot/internal/device"
	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/janpfeifer/GoSlot/internal/history"
	"github.com/janpfeifer/GoSlot/internal/machine"
	"k8s.io/klog/v2"
)

const (
	// writeTimeout bounds every websocket write; a slower device is dropped.
	writeTimeout = 2 * time.Second

	// PingPeriod between latency measurements.
	PingPeriod = 10 * time.Second
)

// ServerState holds the live sessions, one per connected device.
type ServerState struct {
	Address string

	cfg     config.Config
	history *history.Store

	mu       sync.RWMutex
	Sessions map[string]*Client
	numSeeds uint64
}

// NewServerState creates the server state. history may be nil.
func NewServerState(cfg config.Config, store *history.Store) *ServerState {
	return &ServerState{
		cfg:      cfg,
		history:  store,
		Sessions: make(map[string]*Client),
	}
}

// Close closes the history store, if any.
func (s *ServerState) Close() {
	if err := s.history.Close(); err != nil {
		klog.Errorf("Failed to close history: %v", err)
	}
}

// nextSeed returns the seed of a new session: derived from the configured
// seed if there is one, so runs can be replayed, or fresh otherwise.
func (s *ServerState) nextSeed() (uint64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.numSeeds++
	if s.cfg.Seed != 0 {
		return s.cfg.Seed + s.numSeeds - 1, nil
	}
	return game.NewSeed()
}

// Client is one connected device and its game session.
type Client struct {
	ID         string
	DeviceName string

	conn    *websocket.Conn
	ctx     context.Context
	cancel  context.CancelFunc
	motion  device.Latest
	session *machine.Session

	// Paints and banner collected during a tick, sent on Flush.
	pendingMu sync.Mutex
	painted   [game.Cols][game.Rows]bool
	grid      game.Grid
	banner    *game.BannerMessage

	latencyMu sync.Mutex
	latency   time.Duration
}

// Latency returns the last measured round trip time.
func (c *Client) Latency() time.Duration {
	c.latencyMu.Lock()
	defer c.latencyMu.Unlock()
	return c.latency
}

// Round returns the view of the client's current round.
func (c *Client) Round() game.RoundView {
	return c.session.Snapshot()
}

// PaintCell implements device.Display. Paints are batched until Flush.
func (c *Client) PaintCell(col, row int, sym game.Symbol) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.grid[col][row] = sym
	c.painted[col][row] = true
}

// Banner implements device.Display. It is sent after the paints of the same tick.
func (c *Client) Banner(text string, win bool) {
	c.pendingMu.Lock()
	defer c.pendingMu.Unlock()
	c.banner = &game.BannerMessage{Text: text, Win: win}
}

// Flush implements device.Flusher: it sends the cells painted during the
// tick as one paint message, then the banner if it changed.
func (c *Client) Flush() {
	c.pendingMu.Lock()
	var paint game.PaintMessage
	for col := range game.Cols {
		for row := range game.Rows {
			if c.painted[col][row] {
				paint.Cells = append(paint.Cells, game.CellPaint{Col: col, Row: row, Symbol: c.grid[col][row]})
			}
		}
	}
	c.painted = [game.Cols][game.Rows]bool{}
	banner := c.banner
	c.banner = nil
	c.pendingMu.Unlock()

	if len(paint.Cells) > 0 {
		c.send(game.MsgTypePaint, paint)
	}
	if banner != nil {
		c.send(game.MsgTypeBanner, *banner)
	}
}

// Poll implements device.Motion with the samples sent by the device.
func (c *Client) Poll() (device.Accel, bool) {
	return c.motion.Poll()
}

// Discard implements device.Discarder.
func (c *Client) Discard() {
	c.motion.Discard()
}

// send writes one message; on failure the client is disconnected.
func (c *Client) send(msgType game.MessageType, payload any) {
	msg, err := game.NewWsMessage(msgType, payload)
	if err != nil {
		klog.Errorf("Session %s: failed to create %s message: %v", c.ID, msgType, err)
		return
	}
	ctx, cancel := context.WithTimeout(c.ctx, writeTimeout)
	defer cancel()
	if err := wsjson.Write(ctx, c.conn, msg); err != nil {
		if c.ctx.Err() == nil {
			klog.Warningf("Session %s: failed to send %s: %v", c.ID, msgType, err)
		}
		c.cancel()
	}
}

func (c *Client) sendState(v game.RoundView) {
	c.send(game.MsgTypeState, game.StateMessage{Round: v})
}

func (c *Client) sendPing() {
	c.send(game.MsgTypePing, game.PingMessage{ServerTime: time.Now().UnixNano()})
}

func (c *Client) sendError(message string) {
	c.send(game.MsgTypeError, game.ErrorMessage{Message: message})
}

// newClient creates the session of a device that said hello.
func (s *ServerState) newClient(ctx context.Context, conn *websocket.Conn, hello *game.HelloMessage) (*Client, error) {
	c := &Client{
		ID:         uuid.NewString(),
		DeviceName: hello.DeviceName,
		conn:       conn,
	}
	c.ctx, c.cancel = context.WithCancel(ctx)

	opts, err := s.cfg.SessionOptions(c.ID)
	if err != nil {
		return nil, err
	}
	opts.OnTransition = c.sendState
	seed, err := s.nextSeed()
	if err != nil {
		return nil, fmt.Errorf("failed to seed session: %w", err)
	}
	var observer machine.Observer
	if s.history != nil {
		observer = s.history.Observer()
	}
	c.session, err = machine.NewSession(opts, game.NewRand(seed), c, c, observer)
	if err != nil {
		return nil, err
	}
	return c, nil
}

// HandleWS upgrades the connection and plays one session on it. The device
// must start with a hello message.
func (s *ServerState) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true, // Allow connections from any origin for the game.
	})
	if err != nil {
		klog.Errorf("Failed to accept websocket: %v", err)
		return
	}
	defer conn.CloseNow()
	ctx := r.Context()

	var msg game.WsMessage
	if err := wsjson.Read(ctx, conn, &msg); err != nil {
		klog.V(1).Infof("Failed to read hello: %v", err)
		return
	}
	p, err := msg.Parse()
	hello, ok := p.(*game.HelloMessage)
	if err != nil || !ok {
		klog.Warningf("Expected hello message, got %q (err=%v)", msg.Type, err)
		errMsg, _ := game.NewWsMessage(game.MsgTypeError, game.ErrorMessage{Message: "expected hello message"})
		_ = wsjson.Write(ctx, conn, errMsg)
		conn.Close(websocket.StatusPolicyViolation, "expected hello")
		return
	}

	c, err := s.newClient(ctx, conn, hello)
	if err != nil {
		klog.Errorf("Failed to create session: %v", err)
		errMsg, _ := game.NewWsMessage(game.MsgTypeError, game.ErrorMessage{Message: "failed to create session"})
		_ = wsjson.Write(ctx, conn, errMsg)
		conn.Close(websocket.StatusInternalError, "session failed")
		return
	}
	defer c.cancel()

	s.mu.Lock()
	s.Sessions[c.ID] = c
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.Sessions, c.ID)
		s.mu.Unlock()
		klog.Infof("Session %s (%s) closed", c.ID, c.DeviceName)
	}()
	klog.Infof("Session %s started for device %q", c.ID, c.DeviceName)

	// The device answers the first ping right away: read before writing.
	go c.readLoop()
	go c.pingLoop()
	c.sendPing()
	c.sendState(c.Round())

	if err := c.session.Run(c.ctx); err != nil && !errors.Is(err, context.Canceled) {
		klog.Errorf("Session %s: %v", c.ID, err)
	}
	conn.Close(websocket.StatusNormalClosure, "")
}

// readLoop handles the messages of the device until the connection fails.
func (c *Client) readLoop() {
	defer c.cancel()
	for {
		var msg game.WsMessage
		if err := wsjson.Read(c.ctx, c.conn, &msg); err != nil {
			if c.ctx.Err() == nil && websocket.CloseStatus(err) != websocket.StatusNormalClosure {
				klog.V(1).Infof("Session %s: read failed: %v", c.ID, err)
			}
			return
		}
		c.handleMessage(msg)
	}
}

func (c *Client) handleMessage(msg game.WsMessage) {
	p, err := msg.Parse()
	if err != nil {
		klog.Warningf("Session %s: invalid %q message: %v", c.ID, msg.Type, err)
		c.sendError(fmt.Sprintf("invalid message: %v", err))
		return
	}
	switch m := p.(type) {
	case *game.MotionMessage:
		c.motion.Put(device.Accel{X: m.X, Y: m.Y, Z: m.Z})
	case *game.PongMessage:
		rtt := time.Duration(time.Now().UnixNano() - m.ServerTime)
		c.latencyMu.Lock()
		c.latency = rtt
		c.latencyMu.Unlock()
		klog.V(1).Infof("Session %s: latency %s", c.ID, rtt)
	default:
		c.sendError(fmt.Sprintf("unexpected %q message", msg.Type))
	}
}

func (c *Client) pingLoop() {
	ticker := time.NewTicker(PingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.sendPing()
		}
	}
}
