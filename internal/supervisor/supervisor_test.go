package supervisor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/podiumlab/racebot/internal/command"
	"github.com/podiumlab/racebot/internal/eventbus"
	"github.com/podiumlab/racebot/internal/identity"
	"github.com/podiumlab/racebot/internal/race"
	"github.com/podiumlab/racebot/internal/roster"
	"github.com/podiumlab/racebot/internal/session"
)

type scriptedConn struct {
	frames chan race.Frame
	errs   chan error
}

func newScriptedConn() *scriptedConn {
	return &scriptedConn{
		frames: make(chan race.Frame, 32),
		errs:   make(chan error, 1),
	}
}

func (c *scriptedConn) ReadFrame(ctx context.Context) (race.Frame, error) {
	select {
	case <-ctx.Done():
		return race.Frame{}, ctx.Err()
	case err := <-c.errs:
		return race.Frame{}, err
	case f := <-c.frames:
		return f, nil
	}
}

func (c *scriptedConn) Close() error { return nil }

type scriptedClient struct {
	mu        sync.Mutex
	dialCount int
	dialErrs  []error
	conns     []*scriptedConn
}

func (c *scriptedClient) Dial(_ context.Context, _ race.Credential) (race.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	i := c.dialCount
	c.dialCount++
	if i < len(c.dialErrs) && c.dialErrs[i] != nil {
		return nil, c.dialErrs[i]
	}
	conn := newScriptedConn()
	c.conns = append(c.conns, conn)
	return conn, nil
}

func (c *scriptedClient) dials() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dialCount
}

func (c *scriptedClient) lastConn() *scriptedConn {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.conns) == 0 {
		return nil
	}
	return c.conns[len(c.conns)-1]
}

type stubRooms struct {
	mu         sync.Mutex
	sent       []string
	fetchCalls int
}

func (r *stubRooms) CreateRoom(_ context.Context, category string, _ race.RoomConfig) (string, error) {
	return category + "/generated-slug", nil
}

func (r *stubRooms) InviteParticipant(_ context.Context, _, _ string) error { return nil }

func (r *stubRooms) SendMessage(_ context.Context, _, text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, text)
	return nil
}

func (r *stubRooms) FetchRoom(_ context.Context, slug string) (*race.RoomSnapshot, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.fetchCalls++
	return &race.RoomSnapshot{RaceStatus: race.RaceStatusOpen}, nil
}

type emptyDefs struct{}

func (emptyDefs) FindEnabled(context.Context, string, command.RoomContext) ([]command.Definition, error) {
	return nil, nil
}

type nilResolver struct{}

func (nilResolver) Resolve(context.Context, string) (*identity.User, error) { return nil, nil }

type emptyRoster struct{}

func (emptyRoster) EligibleParticipants(context.Context, roster.Query) ([]string, error) {
	return nil, nil
}

type captureBus struct {
	mu     sync.Mutex
	events []eventbus.Event
}

func (b *captureBus) Emit(e eventbus.Event) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.events = append(b.events, e)
}

func (b *captureBus) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.events)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func newTestSupervisor(client *scriptedClient) (*Supervisor, *stubRooms, *captureBus) {
	rooms := &stubRooms{}
	bus := &captureBus{}
	dispatcher := command.NewDispatcher(emptyDefs{}, nilResolver{}, command.NewRegistry(nil))
	deps := session.Deps{
		Rooms:          rooms,
		Dispatcher:     dispatcher,
		Bus:            bus,
		Roster:         emptyRoster{},
		CommandPrefix:  "!",
		RequestTimeout: time.Second,
		RejoinAttempts: 2,
		Sleep:          func(context.Context, time.Duration) error { return nil },
	}
	factory := func(category string) *session.Session {
		return session.New(deps, category, command.RoomContext{})
	}
	cred := race.Credential{Category: "smb3", Token: "token"}
	backoff := Backoff{Base: time.Millisecond, Max: 4 * time.Millisecond}
	return New(cred, client, factory, backoff), rooms, bus
}

func TestStart_AuthFailureIsTerminal(t *testing.T) {
	client := &scriptedClient{dialErrs: []error{
		fmt.Errorf("dial: %w", race.ErrAuthentication),
	}}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateAuthFailed })

	// No auto-retry, however long we wait.
	time.Sleep(50 * time.Millisecond)
	if got := client.dials(); got != 1 {
		t.Fatalf("dial count = %d after auth failure, want 1", got)
	}
	if sup.Status().Message == "" {
		t.Fatal("auth failure should carry a message")
	}
}

func TestStart_AfterAuthFailureRestartsConnecting(t *testing.T) {
	client := &scriptedClient{dialErrs: []error{race.ErrAuthentication}}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateAuthFailed })

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })
	if client.dials() != 2 {
		t.Fatalf("dial count = %d, want 2", client.dials())
	}
	sup.Stop()
}

func TestStart_TransientDialErrorRetriesWithBackoff(t *testing.T) {
	client := &scriptedClient{dialErrs: []error{
		errors.New("connection refused"),
		errors.New("connection refused"),
	}}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })
	if client.dials() != 3 {
		t.Fatalf("dial count = %d, want 3", client.dials())
	}
	status := sup.Status()
	if status.LastConnectedAt == nil {
		t.Fatal("connected status should record lastConnectedAt")
	}
	sup.Stop()
}

func TestRun_ReconnectsAfterConnectionDrop(t *testing.T) {
	client := &scriptedClient{}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })

	client.lastConn().errs <- errors.New("read: connection reset")
	waitFor(t, func() bool { return client.dials() == 2 })
	waitFor(t, func() bool { return sup.Status().State == StateConnected })
	sup.Stop()
}

func TestRun_SnapshotFramesDriveSessionDiffs(t *testing.T) {
	client := &scriptedClient{}
	sup, rooms, bus := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })

	conn := client.lastConn()
	conn.frames <- race.Frame{
		RoomSlug: "smb3/race-1",
		Snapshot: &race.RoomSnapshot{RaceStatus: race.RaceStatusPending},
	}
	conn.frames <- race.Frame{
		RoomSlug: "smb3/race-1",
		Snapshot: &race.RoomSnapshot{RaceStatus: race.RaceStatusInProgress},
	}

	// One transition; the rejoin fetch installed an "open" baseline, so the
	// first pushed snapshot emits open→pending, the second pending→in_progress.
	waitFor(t, func() bool { return bus.count() == 2 })
	rooms.mu.Lock()
	fetches := rooms.fetchCalls
	rooms.mu.Unlock()
	if fetches != 1 {
		t.Fatalf("fetch calls = %d, want 1 (single rejoin for pushed room)", fetches)
	}
	sup.Stop()
}

func TestRun_ProtocolErrorKeepsConnection(t *testing.T) {
	client := &scriptedClient{}
	sup, _, bus := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })

	conn := client.lastConn()
	conn.errs <- fmt.Errorf("decode: %w", race.ErrProtocol)
	conn.frames <- race.Frame{
		RoomSlug: "smb3/race-1",
		Snapshot: &race.RoomSnapshot{RaceStatus: race.RaceStatusPending},
	}
	conn.frames <- race.Frame{
		RoomSlug: "smb3/race-1",
		Snapshot: &race.RoomSnapshot{RaceStatus: race.RaceStatusInProgress},
	}

	waitFor(t, func() bool { return bus.count() == 2 })
	if client.dials() != 1 {
		t.Fatalf("dial count = %d; protocol error must not reconnect", client.dials())
	}
	sup.Stop()
}

func TestStop_ReleasesSessionsAndDisconnects(t *testing.T) {
	client := &scriptedClient{}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })
	if _, err := sup.OpenRoom(context.Background(), race.RoomConfig{Goal: "any%"}); err != nil {
		t.Fatalf("open room: %v", err)
	}

	sup.Stop()
	if got := sup.Status().State; got != StateDisconnected {
		t.Fatalf("state after stop = %s, want DISCONNECTED", got)
	}
	sup.mu.Lock()
	remaining := len(sup.sessions)
	sup.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d sessions retained after stop", remaining)
	}
}

func TestStop_AfterAuthFailureStillDisconnectsAndReleases(t *testing.T) {
	client := &scriptedClient{}
	sup, _, _ := newTestSupervisor(client)

	sup.Start(context.Background())
	waitFor(t, func() bool { return sup.Status().State == StateConnected })
	if _, err := sup.OpenRoom(context.Background(), race.RoomConfig{Goal: "any%"}); err != nil {
		t.Fatalf("open room: %v", err)
	}

	client.lastConn().errs <- fmt.Errorf("read: %w", race.ErrAuthentication)
	waitFor(t, func() bool { return sup.Status().State == StateAuthFailed })

	sup.Stop()
	if got := sup.Status().State; got != StateDisconnected {
		t.Fatalf("state after stop = %s, want DISCONNECTED", got)
	}
	sup.mu.Lock()
	remaining := len(sup.sessions)
	sup.mu.Unlock()
	if remaining != 0 {
		t.Fatalf("%d sessions retained after stop", remaining)
	}
}

func TestOpenRoom_TracksNewSession(t *testing.T) {
	client := &scriptedClient{}
	sup, _, _ := newTestSupervisor(client)

	slug, err := sup.OpenRoom(context.Background(), race.RoomConfig{Goal: "any%"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "smb3/generated-slug" {
		t.Fatalf("slug = %q", slug)
	}
	sup.mu.Lock()
	_, tracked := sup.sessions[slug]
	sup.mu.Unlock()
	if !tracked {
		t.Fatal("opened room is not tracked")
	}
}

func TestRejoin_Idempotent(t *testing.T) {
	client := &scriptedClient{}
	sup, rooms, _ := newTestSupervisor(client)

	if err := sup.Rejoin(context.Background(), "smb3/race-9"); err != nil {
		t.Fatalf("first rejoin: %v", err)
	}
	if err := sup.Rejoin(context.Background(), "smb3/race-9"); err != nil {
		t.Fatalf("second rejoin: %v", err)
	}
	rooms.mu.Lock()
	fetches := rooms.fetchCalls
	rooms.mu.Unlock()
	if fetches != 1 {
		t.Fatalf("fetch calls = %d, want 1", fetches)
	}
}

func TestManager_StatusesCoverAllCredentials(t *testing.T) {
	client := &scriptedClient{}
	rooms := &stubRooms{}
	dispatcher := command.NewDispatcher(emptyDefs{}, nilResolver{}, command.NewRegistry(nil))
	deps := session.Deps{
		Rooms:          rooms,
		Dispatcher:     dispatcher,
		Bus:            &captureBus{},
		Roster:         emptyRoster{},
		CommandPrefix:  "!",
		RequestTimeout: time.Second,
		RejoinAttempts: 1,
	}
	factory := func(category string) *session.Session {
		return session.New(deps, category, command.RoomContext{})
	}
	creds := []race.Credential{
		{Category: "smb3", Token: "a"},
		{Category: "oot", Token: "b"},
	}
	m := NewManager(creds, client, factory, Backoff{Base: time.Millisecond, Max: time.Millisecond})

	statuses := m.Statuses()
	if len(statuses) != 2 {
		t.Fatalf("statuses = %v", statuses)
	}
	for category, st := range statuses {
		if st.State != StateUnknown {
			t.Fatalf("category %s starts in %s, want UNKNOWN", category, st.State)
		}
	}

	if _, err := m.Get("smb3"); err != nil {
		t.Fatalf("Get(smb3): %v", err)
	}
	if _, err := m.Get("missing"); err == nil {
		t.Fatal("Get(missing) should fail")
	}
}
