package supervisor

import (
	"context"
	"errors"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/podiumlab/racebot/internal/race"
	"github.com/podiumlab/racebot/internal/session"
)

type State string

const (
	StateUnknown         State = "UNKNOWN"
	StateConnecting      State = "CONNECTING"
	StateConnected       State = "CONNECTED"
	StateAuthFailed      State = "AUTH_FAILED"
	StateConnectionError State = "CONNECTION_ERROR"
	StateDisconnected    State = "DISCONNECTED"
)

// Status is the externally visible health of one bot connection. The
// supervisor is its only writer.
type Status struct {
	State           State      `json:"state"`
	Message         string     `json:"message,omitempty"`
	LastConnectedAt *time.Time `json:"last_connected_at,omitempty"`
}

// Backoff produces capped exponential delays with jitter. Attempt counting
// resets once a connection is established.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

func (b Backoff) Delay(attempt int) time.Duration {
	d := b.Base
	for i := 0; i < attempt && d < b.Max; i++ {
		d *= 2
	}
	if d > b.Max {
		d = b.Max
	}
	// Up to 25% jitter keeps reconnecting bots from synchronizing.
	jitter := time.Duration(rand.Int63n(int64(d)/4 + 1))
	return d + jitter
}

// SessionFactory builds the room session for a slug the supervisor starts
// tracking. The supervisor owns the returned session until Stop.
type SessionFactory func(category string) *session.Session

// Supervisor owns the persistent push connection for one bot credential and
// every room session attached through it. A dropped connection is retried
// with capped backoff; a rejected credential parks the supervisor in
// AUTH_FAILED until Start is called again.
type Supervisor struct {
	cred       race.Credential
	client     race.Client
	newSession SessionFactory
	backoff    Backoff

	mu       sync.Mutex
	status   Status
	sessions map[string]*session.Session
	cancel   context.CancelFunc
	done     chan struct{}
}

func New(cred race.Credential, client race.Client, newSession SessionFactory, backoff Backoff) *Supervisor {
	return &Supervisor{
		cred:       cred,
		client:     client,
		newSession: newSession,
		backoff:    backoff,
		status:     Status{State: StateUnknown},
		sessions:   make(map[string]*session.Session),
	}
}

func (s *Supervisor) Category() string {
	return s.cred.Category
}

func (s *Supervisor) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

// Start launches the connection loop. Calling Start on a running supervisor
// is a no-op; calling it after AUTH_FAILED or Stop begins a fresh run.
func (s *Supervisor) Start(ctx context.Context) {
	s.mu.Lock()
	if s.cancel != nil {
		s.mu.Unlock()
		return
	}
	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	s.setStatusLocked(StateConnecting, "")
	done := s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		s.run(runCtx)
	}()
}

// Stop tears the connection down and releases every owned session. It is
// unconditional: a supervisor already parked in AUTH_FAILED still ends up
// DISCONNECTED with no sessions retained.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.cancel = nil
	s.mu.Unlock()
	if cancel != nil {
		cancel()
		<-done
	}

	s.mu.Lock()
	s.sessions = make(map[string]*session.Session)
	s.setStatusLocked(StateDisconnected, "")
	s.mu.Unlock()
	slog.Info("supervisor stopped", "category", s.cred.Category)
}

func (s *Supervisor) run(ctx context.Context) {
	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}
		s.setStatus(StateConnecting, "")
		conn, err := s.client.Dial(ctx, s.cred)
		if err != nil {
			if errors.Is(err, race.ErrAuthentication) {
				// Terminal for this run: retrying with the same token
				// cannot succeed. An operator restarts with Start.
				s.markStopped(StateAuthFailed, err.Error())
				slog.Error("authentication rejected", "category", s.cred.Category, "error", err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			s.setStatus(StateConnectionError, err.Error())
			delay := s.backoff.Delay(attempt)
			attempt++
			slog.Warn("dial failed; backing off", "category", s.cred.Category, "attempt", attempt, "delay", delay, "error", err)
			if !sleepCtx(ctx, delay) {
				return
			}
			continue
		}

		attempt = 0
		s.markConnected()
		slog.Info("connected to race service", "category", s.cred.Category)

		err = s.readLoop(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		if errors.Is(err, race.ErrAuthentication) {
			s.markStopped(StateAuthFailed, err.Error())
			slog.Error("credential revoked mid-stream", "category", s.cred.Category, "error", err)
			return
		}
		s.setStatus(StateConnectionError, err.Error())
		delay := s.backoff.Delay(attempt)
		attempt++
		slog.Warn("connection lost; backing off", "category", s.cred.Category, "delay", delay, "error", err)
		if !sleepCtx(ctx, delay) {
			return
		}
	}
}

func (s *Supervisor) readLoop(ctx context.Context, conn race.Conn) error {
	for {
		frame, err := conn.ReadFrame(ctx)
		if err != nil {
			if errors.Is(err, race.ErrProtocol) {
				// Drop the frame, keep the connection and the last good
				// baseline.
				slog.Warn("dropping malformed frame", "category", s.cred.Category, "error", err)
				continue
			}
			return err
		}
		s.dispatchFrame(ctx, frame)
	}
}

// dispatchFrame hands one push to the owning session. Snapshots are applied
// synchronously so per-room arrival order is preserved; chat handling runs
// detached because different rooms may respond concurrently.
func (s *Supervisor) dispatchFrame(ctx context.Context, frame race.Frame) {
	sess := s.sessionFor(ctx, frame.RoomSlug)
	if sess == nil {
		return
	}
	switch {
	case frame.Snapshot != nil:
		sess.HandleSnapshot(*frame.Snapshot)
	case frame.Chat != nil:
		go sess.HandleChat(ctx, *frame.Chat)
	}
}

// sessionFor returns the session tracking slug, attaching a new one when the
// remote pushes a room this process has not seen (rejoin after restart).
func (s *Supervisor) sessionFor(ctx context.Context, slug string) *session.Session {
	s.mu.Lock()
	sess, ok := s.sessions[slug]
	if !ok {
		sess = s.newSession(s.cred.Category)
		s.sessions[slug] = sess
	}
	s.mu.Unlock()
	if !ok {
		if err := sess.Rejoin(ctx, slug); err != nil {
			slog.Error("failed to attach pushed room", "category", s.cred.Category, "room_slug", slug, "error", err)
			s.mu.Lock()
			delete(s.sessions, slug)
			s.mu.Unlock()
			return nil
		}
	}
	return sess
}

// OpenRoom creates a room on the remote service and tracks its session.
// Create failures surface to the caller.
func (s *Supervisor) OpenRoom(ctx context.Context, cfg race.RoomConfig) (string, error) {
	sess := s.newSession(s.cred.Category)
	slug, err := sess.OpenRoom(ctx, cfg)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.sessions[slug] = sess
	s.mu.Unlock()
	return slug, nil
}

// Rejoin attaches a session to an existing room, idempotently.
func (s *Supervisor) Rejoin(ctx context.Context, slug string) error {
	s.mu.Lock()
	sess, ok := s.sessions[slug]
	if !ok {
		sess = s.newSession(s.cred.Category)
	}
	s.mu.Unlock()

	if err := sess.Rejoin(ctx, slug); err != nil {
		return err
	}
	if !ok {
		s.mu.Lock()
		s.sessions[slug] = sess
		s.mu.Unlock()
	}
	return nil
}

func (s *Supervisor) setStatus(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(state, message)
}

func (s *Supervisor) setStatusLocked(state State, message string) {
	s.status.State = state
	s.status.Message = message
}

func (s *Supervisor) markConnected() {
	now := time.Now()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = Status{State: StateConnected, LastConnectedAt: &now}
}

// markStopped records a terminal state and releases the run context so a
// later Start begins a fresh run.
func (s *Supervisor) markStopped(state State, message string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setStatusLocked(state, message)
	if s.cancel != nil {
		s.cancel()
		s.cancel = nil
	}
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
