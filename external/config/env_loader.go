package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	internalconfig "github.com/podiumlab/racebot/internal/config"
	"github.com/podiumlab/racebot/internal/race"
)

type envConfig struct {
	Env                      string `env:"ENV" envDefault:"production"`
	RaceAPIBaseURL           string `env:"RACE_API_BASE_URL,required"`
	RaceWSBaseURL            string `env:"RACE_WS_BASE_URL,required"`
	BotCredentials           string `env:"BOT_CREDENTIALS,required"`
	CommandPrefix            string `env:"COMMAND_PREFIX" envDefault:"!"`
	DatabaseURL              string `env:"DATABASE_URL,required"`
	RequestTimeoutSeconds    int    `env:"REQUEST_TIMEOUT_SECONDS" envDefault:"10"`
	ReconnectBaseDelayMillis int    `env:"RECONNECT_BASE_DELAY_MS" envDefault:"1000"`
	ReconnectMaxDelaySeconds int    `env:"RECONNECT_MAX_DELAY_SECONDS" envDefault:"60"`
	RejoinMaxAttempts        int    `env:"REJOIN_MAX_ATTEMPTS" envDefault:"5"`
	EventWorkers             int    `env:"EVENT_WORKERS" envDefault:"4"`
	EventQueueSize           int    `env:"EVENT_QUEUE_SIZE" envDefault:"256"`
	HealthListenAddr         string `env:"HEALTH_LISTEN_ADDR" envDefault:":8090"`
	DiscordToken             string `env:"DISCORD_TOKEN"`
	DiscordAnnounceChannelID string `env:"DISCORD_ANNOUNCE_CHANNEL_ID"`
}

func Load() (*internalconfig.Config, error) {
	var raw envConfig
	if err := env.Parse(&raw); err != nil {
		return nil, fmt.Errorf("environment variables are invalid or missing: %w", err)
	}

	creds, err := parseCredentials(raw.BotCredentials)
	if err != nil {
		return nil, err
	}

	cfg := &internalconfig.Config{
		Env:                      raw.Env,
		RaceAPIBaseURL:           strings.TrimRight(raw.RaceAPIBaseURL, "/"),
		RaceWSBaseURL:            strings.TrimRight(raw.RaceWSBaseURL, "/"),
		BotCredentials:           creds,
		CommandPrefix:            raw.CommandPrefix,
		DatabaseURL:              raw.DatabaseURL,
		RequestTimeout:           time.Duration(raw.RequestTimeoutSeconds) * time.Second,
		ReconnectBaseDelay:       time.Duration(raw.ReconnectBaseDelayMillis) * time.Millisecond,
		ReconnectMaxDelay:        time.Duration(raw.ReconnectMaxDelaySeconds) * time.Second,
		RejoinMaxAttempts:        raw.RejoinMaxAttempts,
		EventWorkers:             raw.EventWorkers,
		EventQueueSize:           raw.EventQueueSize,
		HealthListenAddr:         raw.HealthListenAddr,
		DiscordToken:             raw.DiscordToken,
		DiscordAnnounceChannelID: raw.DiscordAnnounceChannelID,
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// parseCredentials splits "category=token,category=token" into credentials.
func parseCredentials(raw string) ([]race.Credential, error) {
	var creds []race.Credential
	for _, pair := range strings.Split(raw, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		category, token, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("BOT_CREDENTIALS entry %q is not in category=token form", pair)
		}
		creds = append(creds, race.Credential{
			Category: strings.TrimSpace(category),
			Token:    strings.TrimSpace(token),
		})
	}
	return creds, nil
}
