package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/roster"
)

// PostgresStore backs the three collaborator contracts the protocol core
// reads from: command definitions, linked accounts, and tournament rosters.
type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

func (s *PostgresStore) FindEnabled(ctx context.Context, name string, roomCtx command.RoomContext) ([]command.Definition, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, scope, response_type, response_text, handler_name,
		        cooldown_seconds, requires_linked_account, enabled
		 FROM command_definitions
		 WHERE name = $1 AND enabled AND category = $2
		   AND (scope = 'bot'
		     OR (scope = 'tournament' AND $3 <> '' AND tournament_id = $3)
		     OR (scope = 'async_tournament' AND $4 <> '' AND async_tournament_id = $4))`,
		name, roomCtx.Category, roomCtx.TournamentID, roomCtx.AsyncTournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var defs []command.Definition
	for rows.Next() {
		var def command.Definition
		var scope, responseType string
		if err := rows.Scan(&def.Name, &scope, &responseType, &def.ResponseText,
			&def.HandlerName, &def.CooldownSeconds, &def.RequiresLinkedAccount, &def.Enabled); err != nil {
			return nil, err
		}
		def.Scope, err = parseScope(scope)
		if err != nil {
			return nil, err
		}
		def.ResponseType = command.ResponseType(responseType)
		defs = append(defs, def)
	}
	return defs, rows.Err()
}

func (s *PostgresStore) Resolve(ctx context.Context, externalID string) (*identity.User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT user_id, display_name FROM linked_accounts WHERE external_id = $1`,
		externalID)
	var user identity.User
	if err := row.Scan(&user.ID, &user.DisplayName); err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (s *PostgresStore) EligibleParticipants(ctx context.Context, q roster.Query) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT p.external_id
		 FROM tournament_participants p
		 JOIN linked_accounts a ON a.external_id = p.external_id
		 WHERE p.category = $1 AND ($2 = '' OR p.tournament_id = $2)`,
		q.Category, q.TournamentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var participants []string
	for rows.Next() {
		var externalID string
		if err := rows.Scan(&externalID); err != nil {
			return nil, err
		}
		participants = append(participants, externalID)
	}
	return participants, rows.Err()
}

func parseScope(raw string) (command.Scope, error) {
	switch raw {
	case "bot":
		return command.ScopeBot, nil
	case "tournament":
		return command.ScopeTournament, nil
	case "async_tournament":
		return command.ScopeAsyncTournament, nil
	default:
		return 0, fmt.Errorf("unknown command scope %q", raw)
	}
}
