package config

import (
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/podiumlab/racebot/internal/race"
)

type Config struct {
	Env                      string
	RaceAPIBaseURL           string
	RaceWSBaseURL            string
	BotCredentials           []race.Credential
	CommandPrefix            string
	DatabaseURL              string
	RequestTimeout           time.Duration
	ReconnectBaseDelay       time.Duration
	ReconnectMaxDelay        time.Duration
	RejoinMaxAttempts        int
	EventWorkers             int
	EventQueueSize           int
	HealthListenAddr         string
	DiscordToken             string
	DiscordAnnounceChannelID string
}

func (c *Config) Validate() error {
	for _, req := range c.requiredFieldChecks() {
		if req.value == "" {
			return fmt.Errorf("%s is required", req.name)
		}
	}
	if len(c.BotCredentials) == 0 {
		return fmt.Errorf("BOT_CREDENTIALS must contain at least one category=token pair")
	}
	for _, cred := range c.BotCredentials {
		if cred.Category == "" || cred.Token == "" {
			return fmt.Errorf("BOT_CREDENTIALS contains an entry with an empty category or token")
		}
	}
	if utf8.RuneCountInString(c.CommandPrefix) != 1 {
		return fmt.Errorf("COMMAND_PREFIX must be exactly one character, got %q", c.CommandPrefix)
	}
	if c.RequestTimeout <= 0 {
		return fmt.Errorf("REQUEST_TIMEOUT_SECONDS must be positive")
	}
	if c.ReconnectBaseDelay <= 0 || c.ReconnectMaxDelay < c.ReconnectBaseDelay {
		return fmt.Errorf("reconnect delays must be positive and RECONNECT_MAX_DELAY_SECONDS must not be below the base delay")
	}
	if c.RejoinMaxAttempts < 1 {
		return fmt.Errorf("REJOIN_MAX_ATTEMPTS must be at least 1, got %d", c.RejoinMaxAttempts)
	}
	if c.EventWorkers < 1 {
		return fmt.Errorf("EVENT_WORKERS must be at least 1, got %d", c.EventWorkers)
	}
	if c.EventQueueSize < 1 {
		return fmt.Errorf("EVENT_QUEUE_SIZE must be at least 1, got %d", c.EventQueueSize)
	}
	if (c.DiscordToken == "") != (c.DiscordAnnounceChannelID == "") {
		return fmt.Errorf("DISCORD_TOKEN and DISCORD_ANNOUNCE_CHANNEL_ID must be set together")
	}
	return nil
}

type requiredField struct {
	name  string
	value string
}

func (c *Config) requiredFieldChecks() []requiredField {
	return []requiredField{
		{name: "RACE_API_BASE_URL", value: c.RaceAPIBaseURL},
		{name: "RACE_WS_BASE_URL", value: c.RaceWSBaseURL},
		{name: "DATABASE_URL", value: c.DatabaseURL},
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

func (c *Config) AnnounceEnabled() bool {
	return c.DiscordToken != "" && c.DiscordAnnounceChannelID != ""
}
