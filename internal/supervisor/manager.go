package supervisor

import (
	"context"
	"fmt"

	"github.com/podiumlab/racebot/internal/race"
)

// Manager holds one supervisor per configured bot credential. Supervisors
// are independent; they share nothing but the process-wide collaborators
// baked into their session factories.
type Manager struct {
	supervisors map[string]*Supervisor
	order       []string
}

func NewManager(creds []race.Credential, client race.Client, newSession SessionFactory, backoff Backoff) *Manager {
	m := &Manager{supervisors: make(map[string]*Supervisor, len(creds))}
	for _, cred := range creds {
		if _, dup := m.supervisors[cred.Category]; dup {
			continue
		}
		m.supervisors[cred.Category] = New(cred, client, newSession, backoff)
		m.order = append(m.order, cred.Category)
	}
	return m
}

func (m *Manager) StartAll(ctx context.Context) {
	for _, category := range m.order {
		m.supervisors[category].Start(ctx)
	}
}

func (m *Manager) StopAll() {
	for _, category := range m.order {
		m.supervisors[category].Stop()
	}
}

func (m *Manager) Get(category string) (*Supervisor, error) {
	sup, ok := m.supervisors[category]
	if !ok {
		return nil, fmt.Errorf("no bot credential configured for category %q", category)
	}
	return sup, nil
}

// OpenRoom is the manual "open room now" trigger, routed to the supervisor
// owning the category's credential.
func (m *Manager) OpenRoom(ctx context.Context, category string, cfg race.RoomConfig) (string, error) {
	sup, err := m.Get(category)
	if err != nil {
		return "", err
	}
	return sup.OpenRoom(ctx, cfg)
}

// Rejoin is the manual rejoin trigger for an existing room.
func (m *Manager) Rejoin(ctx context.Context, category, slug string) error {
	sup, err := m.Get(category)
	if err != nil {
		return err
	}
	return sup.Rejoin(ctx, slug)
}

// Statuses reports connection health per category for the health surface.
func (m *Manager) Statuses() map[string]Status {
	out := make(map[string]Status, len(m.supervisors))
	for category, sup := range m.supervisors {
		out[category] = sup.Status()
	}
	return out
}
