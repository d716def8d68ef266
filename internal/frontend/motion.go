package frontend

import (
	"math"
	"time"

	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

const (
	// StandardGravity converts the browser's m/s² to g.
	StandardGravity = 9.80665

	// ShakeG is the acceleration sent by the shake button.
	ShakeG = 3.0

	// motionFloor: samples with every axis below it are not worth sending.
	motionFloor = 1.5

	// motionInterval is the minimum time between two samples sent.
	motionInterval = 50 * time.Millisecond
)

// MotionFromEvent converts a devicemotion accelerationIncludingGravity
// reading, in m/s², to a motion message in g. ok is false when the sample is
// too weak to be worth sending.
func MotionFromEvent(x, y, z float64) (m game.MotionMessage, ok bool) {
	m = game.MotionMessage{
		X:      x / StandardGravity,
		Y:      y / StandardGravity,
		Z:      z / StandardGravity,
		Source: "devicemotion",
	}
	for _, v := range []float64{m.X, m.Y, m.Z} {
		if math.IsNaN(v) {
			return m, false
		}
	}
	ok = math.Abs(m.X) > motionFloor || math.Abs(m.Y) > motionFloor || math.Abs(m.Z) > motionFloor
	return m, ok
}

// motionListener forwards devicemotion events to the server, throttled.
type motionListener struct {
	fn   app.Func
	last time.Time
}

// startMotion listens to devicemotion events. It returns nil on the server
// or when the browser has no motion sensor.
func startMotion() *motionListener {
	if app.IsServer || !app.Window().Get("DeviceMotionEvent").Truthy() {
		return nil
	}
	l := &motionListener{}
	l.fn = app.FuncOf(func(this app.Value, args []app.Value) any {
		if len(args) == 0 {
			return nil
		}
		acc := args[0].Get("accelerationIncludingGravity")
		if !acc.Truthy() {
			return nil
		}
		now := time.Now()
		if now.Sub(l.last) < motionInterval {
			return nil
		}
		m, ok := MotionFromEvent(acc.Get("x").Float(), acc.Get("y").Float(), acc.Get("z").Float())
		if !ok {
			return nil
		}
		l.last = now
		State.SendMotion(m)
		return nil
	})
	app.Window().Call("addEventListener", "devicemotion", l.fn)
	klog.Infof("startMotion: listening to devicemotion")
	return l
}

func (l *motionListener) stop() {
	if l == nil {
		return
	}
	app.Window().Call("removeEventListener", "devicemotion", l.fn)
	l.fn.Release()
}
