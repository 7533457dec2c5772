package race

import "time"

type RaceStatus string

const (
	RaceStatusOpen         RaceStatus = "open"
	RaceStatusInvitational RaceStatus = "invitational"
	RaceStatusPending      RaceStatus = "pending"
	RaceStatusInProgress   RaceStatus = "in_progress"
	RaceStatusFinished     RaceStatus = "finished"
	RaceStatusCancelled    RaceStatus = "cancelled"
)

type EntrantStatus string

const (
	EntrantStatusRequested  EntrantStatus = "requested"
	EntrantStatusInvited    EntrantStatus = "invited"
	EntrantStatusNotReady   EntrantStatus = "not_ready"
	EntrantStatusReady      EntrantStatus = "ready"
	EntrantStatusInProgress EntrantStatus = "in_progress"
	EntrantStatusDone       EntrantStatus = "done"
	EntrantStatusDNF        EntrantStatus = "dnf"
	EntrantStatusDQ         EntrantStatus = "dq"
)

type EntrantSnapshot struct {
	ID             string         `json:"id"`
	DisplayName    string         `json:"display_name"`
	Status         EntrantStatus  `json:"status"`
	FinishDuration *time.Duration `json:"finish_duration,omitempty"`
	Place          *int           `json:"place,omitempty"`
}

type RoomSnapshot struct {
	RaceStatus RaceStatus        `json:"race_status"`
	Entrants   []EntrantSnapshot `json:"entrants"`
}

type ChatMessage struct {
	SenderExternalID string `json:"sender"`
	Text             string `json:"text"`
}

type ChatFlags struct {
	AllowMidRaceChat bool `json:"allow_midrace_chat"`
	AllowNonEntrant  bool `json:"allow_non_entrant_chat"`
	AllowPreRaceChat bool `json:"allow_prerace_chat"`
}

// RoomConfig carries everything the remote service needs to open a room.
type RoomConfig struct {
	Goal         string        `json:"goal"`
	Info         string        `json:"info"`
	Invitational bool          `json:"invitational"`
	TimeLimit    time.Duration `json:"-"`
	ChatFlags    ChatFlags     `json:"chat_flags"`
	AutoStart    bool          `json:"auto_start"`
}

// Credential identifies one bot account on the remote service. It is loaded
// once at startup and never mutated at runtime; replacing a token means
// restarting the supervisor that owns it.
type Credential struct {
	Category string
	Token    string
}
