package announce

import (
	"github.com/podiumlab/racebot/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Announcer, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewAnnouncer(cfg.DiscordToken, cfg.DiscordAnnounceChannelID)
	})
}
