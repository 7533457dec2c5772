package race

import (
	"context"
	"errors"
)

var (
	// ErrAuthentication means the remote service rejected the bot credential.
	// It is terminal for the current supervisor run; reconnecting with the
	// same token will not succeed.
	ErrAuthentication = errors.New("race: authentication rejected")

	// ErrProtocol means a pushed frame could not be decoded. The frame is
	// dropped; the connection itself is still usable.
	ErrProtocol = errors.New("race: malformed frame")

	// ErrRoomNotFound is returned by FetchRoom for an unknown slug.
	ErrRoomNotFound = errors.New("race: room not found")
)

// Frame is one push from the remote service. Exactly one of Snapshot and
// Chat is set.
type Frame struct {
	RoomSlug string
	Snapshot *RoomSnapshot
	Chat     *ChatMessage
}

// Conn is one established push connection for a bot credential.
type Conn interface {
	// ReadFrame blocks until the next frame arrives. It returns ErrProtocol
	// for an undecodable frame (the caller should log and keep reading),
	// ErrAuthentication when the server revokes the credential mid-stream,
	// and any other error for a transient connection failure.
	ReadFrame(ctx context.Context) (Frame, error)
	Close() error
}

// Client dials push connections to the remote race-coordination service.
type Client interface {
	Dial(ctx context.Context, cred Credential) (Conn, error)
}

// RoomService covers the outbound REST operations on race rooms. Every call
// is bounded by the adapter's request timeout.
type RoomService interface {
	CreateRoom(ctx context.Context, category string, cfg RoomConfig) (slug string, err error)
	InviteParticipant(ctx context.Context, slug, participantExternalID string) error
	SendMessage(ctx context.Context, slug, text string) error
	FetchRoom(ctx context.Context, slug string) (*RoomSnapshot, error)
}
