package frontend

import (
	"fmt"

	"github.com/maxence-charriere/go-app/v10/pkg/app"
)

type TopBar struct {
	app.Compo
}

func (t *TopBar) onToggleSound(ctx app.Context, e app.Event) {
	e.PreventDefault()
	State.ToggleSound()
}

func (t *TopBar) Render() app.UI {
	soundIcon := "🔊"
	if !State.SoundEnabled {
		soundIcon = "🔇"
	}

	var session app.UI = app.Text("")
	if id := State.Round.SessionID; len(id) >= 8 {
		session = app.Li().Body(
			app.Small().Class("secondary").Text(fmt.Sprintf("session %s", id[:8])),
		)
	}

	return app.Nav().Body(
		app.Ul().Body(
			app.Li().Body(app.Strong().Text("GoSlot")),
		),
		app.Ul().Body(
			session,
			app.Li().Body(
				app.A().
					Href("#").
					OnClick(t.onToggleSound).
					Style("text-decoration", "none").
					Body(
						app.Span().
							Class("sound-icon").
							Style("font-family", "system-ui").
							Text(soundIcon),
					),
			),
		),
	)
}
