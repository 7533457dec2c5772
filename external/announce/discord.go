package announce

import (
	"fmt"
	"log/slog"

	"github.com/bwmarrin/discordgo"
	"github.com/podiumlab/racebot/internal/eventbus"
	"github.com/podiumlab/racebot/internal/race"
)

// Announcer mirrors race and entrant transitions into a Discord channel. It
// is a plain EventBus subscriber; the protocol core does not know it exists.
type Announcer struct {
	session   *discordgo.Session
	channelID string
}

func NewAnnouncer(token, channelID string) (*Announcer, error) {
	session, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	return &Announcer{session: session, channelID: channelID}, nil
}

func (a *Announcer) Open() error {
	return a.session.Open()
}

func (a *Announcer) Close() error {
	return a.session.Close()
}

// Subscribe registers the announcement handlers at normal priority so audit
// subscribers registered at higher priorities observe events first.
func (a *Announcer) Subscribe(bus *eventbus.Bus) {
	bus.Register(race.RaceStatusChanged{}.EventName(), a.onRaceStatusChanged, eventbus.PriorityNormal)
	bus.Register(race.EntrantStatusChanged{}.EventName(), a.onEntrantStatusChanged, eventbus.PriorityNormal)
}

func (a *Announcer) onRaceStatusChanged(e eventbus.Event) {
	event, ok := e.(race.RaceStatusChanged)
	if !ok {
		return
	}
	a.send(fmt.Sprintf("**%s** · race is now **%s** (was %s)", event.RoomSlug, event.New, event.Old))
}

func (a *Announcer) onEntrantStatusChanged(e eventbus.Event) {
	event, ok := e.(race.EntrantStatusChanged)
	if !ok {
		return
	}
	a.send(fmt.Sprintf("**%s** · %s: %s → %s", event.RoomSlug, event.EntrantName, event.Old, event.New))
}

func (a *Announcer) send(content string) {
	if _, err := a.session.ChannelMessageSend(a.channelID, content); err != nil {
		slog.Error("failed to post announcement", "channel_id", a.channelID, "error", err)
	}
}
