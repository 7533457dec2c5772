package command

import (
	"github.com/podiumlab/racebot/internal/identity"
	"github.com/samber/do/v2"
)

func RegisterDI(injector do.Injector) {
	do.Provide(injector, func(i do.Injector) (*Registry, error) {
		return NewRegistry(BuiltinHandlers()), nil
	})
	do.Provide(injector, func(i do.Injector) (*Dispatcher, error) {
		definitions := do.MustInvoke[DefinitionSource](i)
		identities := do.MustInvoke[identity.Resolver](i)
		registry := do.MustInvoke[*Registry](i)
		return NewDispatcher(definitions, identities, registry), nil
	})
}
