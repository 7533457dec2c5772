package eventbus

import (
	"github.com/podiumlab/racebot/internal/config"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Bus, error) {
		cfg := do.MustInvoke[*config.Config](i)
		return New(cfg.EventWorkers, cfg.EventQueueSize), nil
	})
}
