package supervisor

import (
	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/config"
	"github.com/podiumlab/racebot/internal/eventbus"
	"github.com/podiumlab/racebot/internal/race"
	"github.com/podiumlab/racebot/internal/roster"
	"github.com/podiumlab/racebot/internal/session"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Manager, error) {
		cfg := do.MustInvoke[*config.Config](i)
		client := do.MustInvoke[race.Client](i)
		rooms := do.MustInvoke[race.RoomService](i)
		dispatcher := do.MustInvoke[*command.Dispatcher](i)
		bus := do.MustInvoke[*eventbus.Bus](i)
		rosterProvider := do.MustInvoke[roster.Provider](i)

		deps := session.Deps{
			Rooms:          rooms,
			Dispatcher:     dispatcher,
			Bus:            bus,
			Roster:         rosterProvider,
			CommandPrefix:  cfg.CommandPrefix,
			RequestTimeout: cfg.RequestTimeout,
			RejoinAttempts: cfg.RejoinMaxAttempts,
		}
		newSession := func(category string) *session.Session {
			return session.New(deps, category, command.RoomContext{})
		}
		backoff := Backoff{Base: cfg.ReconnectBaseDelay, Max: cfg.ReconnectMaxDelay}
		return NewManager(cfg.BotCredentials, client, newSession, backoff), nil
	})
}
