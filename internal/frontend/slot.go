package frontend

import (
	"fmt"

	"github.com/janpfeifer/GoSlot/internal/game"
	"github.com/maxence-charriere/go-app/v10/pkg/app"
	"k8s.io/klog/v2"
)

// Slot is the slot machine page: the 3x3 window, the banner and a shake
// button for devices without a motion sensor.
type Slot struct {
	app.Compo
	Screen    game.Grid
	Banner    string
	BannerWin bool
	Round     game.RoundView
	Error     string

	motion *motionListener
}

func (s *Slot) OnAppUpdate(ctx app.Context) {
	klog.Infof("Slot component: App update available, not reloading not to interrupt the round...")
}

func (s *Slot) OnMount(ctx app.Context) {
	klog.Infof("Slot component: OnMount called")
	s.sync()
	State.Listeners["slot"] = func() {
		ctx.Dispatch(func(ctx app.Context) { s.sync() })
	}
	if State.Conn == nil {
		if err := State.ConnectWS(); err != nil {
			s.Error = fmt.Sprintf("Failed to connect to the slot machine: %v", err)
		}
	}
	s.motion = startMotion()
	State.MotionActive = s.motion != nil
}

func (s *Slot) OnDismount() {
	klog.Infof("Slot component: OnDismount called")
	delete(State.Listeners, "slot")
	s.motion.stop()
	s.motion = nil
}

func (s *Slot) sync() {
	s.Screen = State.Screen
	s.Banner, s.BannerWin = State.Banner, State.BannerWin
	s.Round = State.Round
	s.Error = State.Error
}

func (s *Slot) onShake(ctx app.Context, e app.Event) {
	e.PreventDefault()
	// iOS only delivers devicemotion after an explicit permission request,
	// which must come from a user gesture.
	if req := app.Window().Get("DeviceMotionEvent").Get("requestPermission"); req.Truthy() {
		app.Window().Get("DeviceMotionEvent").Call("requestPermission")
	}
	State.SendShake()
}

func cellView(sym game.Symbol, stopped bool) app.UI {
	class := "slot-cell"
	if stopped {
		class += " stopped"
	}
	return app.Div().
		Class(class).
		Style("background-color", sym.Hex()).
		Style("aspect-ratio", "1").
		Style("border-radius", "8px").
		Title(sym.Hex())
}

// statusText describes what the next shake does.
func statusText(v game.RoundView) string {
	switch {
	case v.Number == 0:
		return "Connecting..."
	case v.Phase == game.PhaseFinished:
		return "Shake to play again"
	default:
		return fmt.Sprintf("Round %d: shake to stop column %d", v.Number, v.Next+1)
	}
}

func (s *Slot) Render() app.UI {
	if s.Error != "" {
		return app.Main().Class("container").Body(
			&TopBar{},
			app.Article().Body(
				app.H2().Text("Slot machine unavailable"),
				app.P().Style("color", "red").Text(s.Error),
				app.A().Href("/").Text("Reload"),
			),
		)
	}

	// The grid is laid out row by row, while the game indexes it by column.
	var cells []app.UI
	for row := range game.Rows {
		for col := range game.Cols {
			cells = append(cells, cellView(s.Screen[col][row], s.Round.Stopped[col]))
		}
	}

	var banner app.UI = app.Div().Class("slot-banner").Style("min-height", "3rem")
	if s.Banner != "" {
		color := "red"
		if s.BannerWin {
			color = "green"
		}
		banner = app.Div().Class("slot-banner").
			Style("min-height", "3rem").
			Style("text-align", "center").
			Style("font-size", "2rem").
			Style("font-weight", "bold").
			Style("color", color).
			Text(s.Banner)
	}

	hint := "Shake your phone, or press the button."
	if !State.MotionActive {
		hint = "No motion sensor found: press the button to shake."
	}

	return app.Main().Class("container").Body(
		&TopBar{},
		app.Article().Body(
			app.Header().Text(statusText(s.Round)),
			app.Div().
				Class("slot-grid").
				Style("display", "grid").
				Style("grid-template-columns", fmt.Sprintf("repeat(%d, 1fr)", game.Cols)).
				Style("gap", "0.5rem").
				Style("max-width", "24rem").
				Style("margin", "0 auto").
				Body(cells...),
			banner,
			app.Footer().Body(
				app.P().Class("secondary").Text(hint),
				app.Button().Text("Shake").OnClick(s.onShake).Style("width", "100%"),
			),
		),
	)
}
