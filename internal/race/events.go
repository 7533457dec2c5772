package race

import (
	"time"

	"github.com/google/uuid"
)

// Domain events emitted when a snapshot diff detects a transition. They are
// immutable records; subscribers must not modify them.

type RaceStatusChanged struct {
	ID       uuid.UUID
	RoomSlug string
	Category string
	Old      RaceStatus
	New      RaceStatus
	At       time.Time
}

func (RaceStatusChanged) EventName() string { return "race.status_changed" }

type EntrantStatusChanged struct {
	ID          uuid.UUID
	RoomSlug    string
	Category    string
	EntrantID   string
	EntrantName string
	Old         EntrantStatus
	New         EntrantStatus
	At          time.Time
}

func (EntrantStatusChanged) EventName() string { return "entrant.status_changed" }
