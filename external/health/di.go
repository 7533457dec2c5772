package health

import (
	"github.com/podiumlab/racebot/internal/config"
	"github.com/podiumlab/racebot/internal/supervisor"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Server, error) {
		cfg := do.MustInvoke[*config.Config](i)
		manager := do.MustInvoke[*supervisor.Manager](i)
		return NewServer(cfg.HealthListenAddr, manager), nil
	})
}
