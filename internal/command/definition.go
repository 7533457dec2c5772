package command

import "context"

// Scope is the specificity level a definition applies at, ordered so that a
// larger value always wins resolution.
type Scope int

const (
	ScopeBot Scope = iota
	ScopeTournament
	ScopeAsyncTournament
)

func (s Scope) String() string {
	switch s {
	case ScopeBot:
		return "bot"
	case ScopeTournament:
		return "tournament"
	case ScopeAsyncTournament:
		return "async_tournament"
	default:
		return "unknown"
	}
}

type ResponseType string

const (
	ResponseText    ResponseType = "text"
	ResponseDynamic ResponseType = "dynamic"
)

// Definition is one chat command as configured by operators. It is read-only
// to this package; the source of truth lives behind DefinitionSource.
type Definition struct {
	Name                  string
	Scope                 Scope
	ResponseType          ResponseType
	ResponseText          string
	HandlerName           string
	CooldownSeconds       int
	RequiresLinkedAccount bool
	Enabled               bool
}

// RoomContext identifies where a command was typed: which bot category the
// room belongs to and, when the room was opened for one, the tournament or
// async tournament behind it.
type RoomContext struct {
	Category          string
	TournamentID      string
	AsyncTournamentID string
	RoomSlug          string
}

// DefinitionSource returns the enabled definitions matching a name within a
// room context. Disabled definitions are never returned.
type DefinitionSource interface {
	FindEnabled(ctx context.Context, name string, roomCtx RoomContext) ([]Definition, error)
}
