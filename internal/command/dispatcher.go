package command

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/race"
	"github.com/samber/lo"
)

// cooldownPruneThreshold bounds the in-memory cooldown map: once it grows
// past this size, entries older than the longest plausible cooldown are
// dropped on the next dispatch. Cooldown state is in-memory only and does
// not survive a restart.
const (
	cooldownPruneThreshold = 4096
	cooldownMaxAge         = 24 * time.Hour
)

type cooldownKey struct {
	userExternalID string
	commandName    string
}

// Dispatcher resolves and executes one chat command invocation. It is safe
// for concurrent use across rooms; the cooldown map is the only shared
// mutable state and is guarded by its own mutex.
type Dispatcher struct {
	definitions DefinitionSource
	identities  identity.Resolver
	registry    *Registry
	now         func() time.Time

	mu        sync.Mutex
	cooldowns map[cooldownKey]time.Time
}

func NewDispatcher(definitions DefinitionSource, identities identity.Resolver, registry *Registry) *Dispatcher {
	return &Dispatcher{
		definitions: definitions,
		identities:  identities,
		registry:    registry,
		now:         time.Now,
		cooldowns:   make(map[cooldownKey]time.Time),
	}
}

// Dispatch returns the response text for a command invocation, or ok=false
// when nothing should be sent to the room: unknown command, cooldown still
// running, missing linked account, or a failing handler. Only the room-silent
// outcomes are distinguished in logs, never in room output.
func (d *Dispatcher) Dispatch(ctx context.Context, name, args, invokerExternalID string, roomCtx RoomContext, snapshot *race.RoomSnapshot) (string, bool) {
	defs, err := d.definitions.FindEnabled(ctx, name, roomCtx)
	if err != nil {
		slog.Error("command definition lookup failed", "command", name, "room_slug", roomCtx.RoomSlug, "error", err)
		return "", false
	}
	if len(defs) == 0 {
		return "", false
	}

	// Highest-specificity scope wins; the source already filtered to
	// definitions applicable in this room context.
	def := lo.MaxBy(defs, func(a, b Definition) bool {
		return a.Scope > b.Scope
	})

	var user *identity.User
	if def.RequiresLinkedAccount || def.ResponseType == ResponseDynamic {
		user, err = d.identities.Resolve(ctx, invokerExternalID)
		if err != nil {
			slog.Error("identity lookup failed", "command", name, "invoker", invokerExternalID, "error", err)
			return "", false
		}
	}
	if def.RequiresLinkedAccount && user == nil {
		slog.Debug("command requires linked account; invoker has none", "command", name, "invoker", invokerExternalID)
		return "", false
	}

	if !d.consumeCooldown(invokerExternalID, def) {
		return "", false
	}

	switch def.ResponseType {
	case ResponseText:
		return def.ResponseText, true
	case ResponseDynamic:
		return d.runHandler(def, args, invokerExternalID, snapshot, user)
	default:
		slog.Error("command definition has unknown response type", "command", name, "response_type", string(def.ResponseType))
		return "", false
	}
}

// consumeCooldown reports whether the invocation may proceed, and if so
// records it immediately. Recording before execution means a failing handler
// still consumes the slot, so a broken command cannot be retried in a flood.
func (d *Dispatcher) consumeCooldown(invokerExternalID string, def Definition) bool {
	if def.CooldownSeconds <= 0 {
		return true
	}
	key := cooldownKey{userExternalID: invokerExternalID, commandName: def.Name}
	now := d.now()

	d.mu.Lock()
	defer d.mu.Unlock()
	if last, ok := d.cooldowns[key]; ok {
		if now.Sub(last) < time.Duration(def.CooldownSeconds)*time.Second {
			return false
		}
	}
	d.cooldowns[key] = now
	if len(d.cooldowns) > cooldownPruneThreshold {
		d.pruneLocked(now)
	}
	return true
}

func (d *Dispatcher) pruneLocked(now time.Time) {
	for key, last := range d.cooldowns {
		if now.Sub(last) > cooldownMaxAge {
			delete(d.cooldowns, key)
		}
	}
}

func (d *Dispatcher) runHandler(def Definition, args, invokerExternalID string, snapshot *race.RoomSnapshot, user *identity.User) (string, bool) {
	fn, err := d.registry.Lookup(def.HandlerName)
	if err != nil {
		slog.Error("dynamic command references unregistered handler", "command", def.Name, "handler", def.HandlerName, "invoker", invokerExternalID)
		return "", false
	}
	response, err := safeInvoke(fn, def, args, invokerExternalID, snapshot, user)
	if err != nil {
		slog.Error("command handler failed", "command", def.Name, "handler", def.HandlerName, "invoker", invokerExternalID, "error", err)
		return "", false
	}
	return response, true
}

// safeInvoke turns a panicking handler into an ordinary error so a broken
// handler never takes the session down.
func safeInvoke(fn HandlerFunc, def Definition, args, invokerExternalID string, snapshot *race.RoomSnapshot, user *identity.User) (response string, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panicked: %v", r)
		}
	}()
	return fn(def, args, invokerExternalID, snapshot, user)
}
