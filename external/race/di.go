package race

import (
	"github.com/podiumlab/racebot/internal/config"
	racepkg "github.com/podiumlab/racebot/internal/race"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (racepkg.Client, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewWSClient(cfg.RaceWSBaseURL, cfg.RequestTimeout), nil
	})
	do.Provide(injector, func(i do.Injector) (racepkg.RoomService, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return NewRoomAPI(cfg.RaceAPIBaseURL, cfg.RequestTimeout), nil
	})
}
