package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/eventbus"
	"github.com/podiumlab/racebot/internal/race"
	"github.com/podiumlab/racebot/internal/roster"
	"github.com/samber/lo"
)

// Deps are the collaborators one room session needs. The same value is shared
// by every session a supervisor owns.
type Deps struct {
	Rooms      race.RoomService
	Dispatcher *command.Dispatcher
	Bus        eventbus.Emitter
	Roster     roster.Provider

	CommandPrefix  string
	RequestTimeout time.Duration
	RejoinAttempts int

	// Now and Sleep exist for tests; nil means the real clock.
	Now   func() time.Time
	Sleep func(ctx context.Context, d time.Duration) error
}

func (d Deps) now() time.Time {
	if d.Now != nil {
		return d.Now()
	}
	return time.Now()
}

func (d Deps) sleep(ctx context.Context, dur time.Duration) error {
	if d.Sleep != nil {
		return d.Sleep(ctx, dur)
	}
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Session owns the state of one race room: the previous snapshot used as the
// diff baseline, and the room context commands are resolved in. Snapshot
// processing is serialized by the session mutex; callers must deliver
// snapshots for one room in arrival order.
type Session struct {
	deps     Deps
	category string
	roomCtx  command.RoomContext

	mu           sync.Mutex
	slug         string
	attached     bool
	prevStatus   *race.RaceStatus
	prevEntrants map[string]race.EntrantSnapshot
	current      *race.RoomSnapshot
}

func New(deps Deps, category string, roomCtx command.RoomContext) *Session {
	roomCtx.Category = category
	return &Session{
		deps:     deps,
		category: category,
		roomCtx:  roomCtx,
	}
}

func (s *Session) Slug() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slug
}

// OpenRoom issues the create call, attaches the session to the returned
// slug, then invites every roster participant with a linked account.
// Participants without one are skipped; an invite failure is logged but does
// not fail the open. A create failure is returned to the caller.
func (s *Session) OpenRoom(ctx context.Context, cfg race.RoomConfig) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, s.deps.RequestTimeout)
	slug, err := s.deps.Rooms.CreateRoom(callCtx, s.category, cfg)
	cancel()
	if err != nil {
		return "", fmt.Errorf("create room for category %s: %w", s.category, err)
	}

	s.mu.Lock()
	s.slug = slug
	s.attached = true
	s.roomCtx.RoomSlug = slug
	s.mu.Unlock()
	slog.Info("race room created", "room_slug", slug, "category", s.category)

	s.inviteRoster(ctx, slug)
	return slug, nil
}

func (s *Session) inviteRoster(ctx context.Context, slug string) {
	participants, err := s.deps.Roster.EligibleParticipants(ctx, roster.Query{
		Category:     s.category,
		TournamentID: s.roomCtx.TournamentID,
	})
	if err != nil {
		slog.Error("roster lookup failed; room opened without invites", "room_slug", slug, "error", err)
		return
	}
	for _, externalID := range lo.Uniq(participants) {
		callCtx, cancel := context.WithTimeout(ctx, s.deps.RequestTimeout)
		err := s.deps.Rooms.InviteParticipant(callCtx, slug, externalID)
		cancel()
		if err != nil {
			slog.Warn("invite failed", "room_slug", slug, "participant", externalID, "error", err)
			continue
		}
		slog.Debug("participant invited", "room_slug", slug, "participant", externalID)
	}
}

// Rejoin attaches the session to an existing room. It is idempotent: when
// already attached to slug it succeeds without touching the remote service.
// Otherwise the current room state is fetched with capped exponential
// retries and installed as the diff baseline without emitting events.
func (s *Session) Rejoin(ctx context.Context, slug string) error {
	s.mu.Lock()
	if s.attached && s.slug == slug {
		s.mu.Unlock()
		return nil
	}
	s.mu.Unlock()

	var snapshot *race.RoomSnapshot
	var err error
	for attempt := 0; attempt < s.deps.RejoinAttempts; attempt++ {
		if attempt > 0 {
			delay := time.Duration(1<<uint(attempt-1)) * time.Second
			if sleepErr := s.deps.sleep(ctx, delay); sleepErr != nil {
				return fmt.Errorf("rejoin %s: %w", slug, sleepErr)
			}
		}
		callCtx, cancel := context.WithTimeout(ctx, s.deps.RequestTimeout)
		snapshot, err = s.deps.Rooms.FetchRoom(callCtx, slug)
		cancel()
		if err == nil {
			break
		}
		slog.Warn("rejoin fetch failed", "room_slug", slug, "attempt", attempt+1, "error", err)
	}
	if err != nil {
		return fmt.Errorf("rejoin %s after %d attempts: %w", slug, s.deps.RejoinAttempts, err)
	}

	s.mu.Lock()
	s.slug = slug
	s.attached = true
	s.roomCtx.RoomSlug = slug
	s.installBaselineLocked(snapshot)
	s.mu.Unlock()
	slog.Info("rejoined race room", "room_slug", slug, "category", s.category)
	return nil
}

// HandleSnapshot diffs the new snapshot against the stored baseline and
// emits transition events. The first snapshot only installs the baseline.
func (s *Session) HandleSnapshot(snapshot race.RoomSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.deps.now()
	if s.prevStatus != nil && *s.prevStatus != snapshot.RaceStatus {
		s.deps.Bus.Emit(race.RaceStatusChanged{
			ID:       uuid.New(),
			RoomSlug: s.slug,
			Category: s.category,
			Old:      *s.prevStatus,
			New:      snapshot.RaceStatus,
			At:       now,
		})
	}
	for _, entrant := range snapshot.Entrants {
		prev, seen := s.prevEntrants[entrant.ID]
		if !seen {
			// First appearance establishes the baseline silently.
			continue
		}
		if prev.Status != entrant.Status {
			s.deps.Bus.Emit(race.EntrantStatusChanged{
				ID:          uuid.New(),
				RoomSlug:    s.slug,
				Category:    s.category,
				EntrantID:   entrant.ID,
				EntrantName: entrant.DisplayName,
				Old:         prev.Status,
				New:         entrant.Status,
				At:          now,
			})
		}
	}

	s.installBaselineLocked(&snapshot)
}

// installBaselineLocked replaces the previous state wholesale, which also
// drops entrants absent from the new snapshot.
func (s *Session) installBaselineLocked(snapshot *race.RoomSnapshot) {
	status := snapshot.RaceStatus
	s.prevStatus = &status
	s.prevEntrants = lo.KeyBy(snapshot.Entrants, func(e race.EntrantSnapshot) string {
		return e.ID
	})
	s.current = snapshot
}

// HandleChat routes a chat line. Non-command chat is ignored. A resolved
// command response is sent back to the room; send failures are logged only.
func (s *Session) HandleChat(ctx context.Context, msg race.ChatMessage) {
	name, args, ok := s.parseCommand(msg.Text)
	if !ok {
		return
	}

	s.mu.Lock()
	roomCtx := s.roomCtx
	snapshot := s.current
	slug := s.slug
	s.mu.Unlock()

	response, ok := s.deps.Dispatcher.Dispatch(ctx, name, args, msg.SenderExternalID, roomCtx, snapshot)
	if !ok {
		return
	}
	callCtx, cancel := context.WithTimeout(ctx, s.deps.RequestTimeout)
	defer cancel()
	if err := s.deps.Rooms.SendMessage(callCtx, slug, response); err != nil {
		slog.Error("failed to send command response", "room_slug", slug, "command", name, "error", err)
	}
}

func (s *Session) parseCommand(text string) (name, args string, ok bool) {
	if !strings.HasPrefix(text, s.deps.CommandPrefix) {
		return "", "", false
	}
	body := text[len(s.deps.CommandPrefix):]
	if body == "" {
		return "", "", false
	}
	name, args, _ = strings.Cut(body, " ")
	if name == "" || !utf8.ValidString(name) {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}
