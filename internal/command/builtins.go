package command

import (
	"fmt"
	"strings"

	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/race"
	"github.com/samber/lo"
)

// BuiltinHandlers are the response generators the bot ships with. The map is
// handed to NewRegistry at the composition root; operators reference these
// names from dynamic command definitions.
func BuiltinHandlers() map[string]HandlerFunc {
	return map[string]HandlerFunc{
		"race_status":   raceStatusHandler,
		"entrant_count": entrantCountHandler,
		"my_status":     myStatusHandler,
	}
}

func raceStatusHandler(_ Definition, _, _ string, snapshot *race.RoomSnapshot, _ *identity.User) (string, error) {
	if snapshot == nil {
		return "No race state available yet.", nil
	}
	return fmt.Sprintf("Race status: %s", snapshot.RaceStatus), nil
}

func entrantCountHandler(_ Definition, _, _ string, snapshot *race.RoomSnapshot, _ *identity.User) (string, error) {
	if snapshot == nil {
		return "No race state available yet.", nil
	}
	finished := lo.CountBy(snapshot.Entrants, func(e race.EntrantSnapshot) bool {
		return e.Status == race.EntrantStatusDone
	})
	return fmt.Sprintf("%d entrants, %d finished", len(snapshot.Entrants), finished), nil
}

func myStatusHandler(_ Definition, _, invokerExternalID string, snapshot *race.RoomSnapshot, user *identity.User) (string, error) {
	if snapshot == nil {
		return "No race state available yet.", nil
	}
	entrant, found := lo.Find(snapshot.Entrants, func(e race.EntrantSnapshot) bool {
		return e.ID == invokerExternalID
	})
	if !found {
		return "You are not entered in this race.", nil
	}
	name := entrant.DisplayName
	if user != nil && user.DisplayName != "" {
		name = user.DisplayName
	}
	parts := []string{fmt.Sprintf("%s: %s", name, entrant.Status)}
	if entrant.Place != nil {
		parts = append(parts, fmt.Sprintf("place %d", *entrant.Place))
	}
	if entrant.FinishDuration != nil {
		parts = append(parts, fmt.Sprintf("time %s", entrant.FinishDuration))
	}
	return strings.Join(parts, ", "), nil
}
