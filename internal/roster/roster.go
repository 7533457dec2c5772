package roster

import "context"

// Query narrows the roster to the participants eligible for one room.
type Query struct {
	Category     string
	TournamentID string
}

// Provider lists the external ids of everyone who should be invited into a
// newly opened room.
type Provider interface {
	EligibleParticipants(ctx context.Context, q Query) ([]string, error)
}
