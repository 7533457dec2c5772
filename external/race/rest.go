package race

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"

	racepkg "github.com/podiumlab/racebot/internal/race"
)

// RoomAPI implements the outbound room operations over the race service's
// REST surface. Every call is bounded by the client timeout in addition to
// the caller's context.
type RoomAPI struct {
	baseURL string
	client  *http.Client
}

func NewRoomAPI(apiBaseURL string, timeout time.Duration) racepkg.RoomService {
	return &RoomAPI{
		baseURL: apiBaseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type createRoomRequest struct {
	Goal             string            `json:"goal"`
	Info             string            `json:"info"`
	Invitational     bool              `json:"invitational"`
	TimeLimitSeconds int64             `json:"time_limit_seconds"`
	ChatFlags        racepkg.ChatFlags `json:"chat_flags"`
	AutoStart        bool              `json:"auto_start"`
}

type createRoomResponse struct {
	Slug string `json:"slug"`
}

func (a *RoomAPI) CreateRoom(ctx context.Context, category string, cfg racepkg.RoomConfig) (string, error) {
	body := createRoomRequest{
		Goal:             cfg.Goal,
		Info:             cfg.Info,
		Invitational:     cfg.Invitational,
		TimeLimitSeconds: int64(cfg.TimeLimit / time.Second),
		ChatFlags:        cfg.ChatFlags,
		AutoStart:        cfg.AutoStart,
	}
	var out createRoomResponse
	endpoint := fmt.Sprintf("%s/api/%s/rooms", a.baseURL, url.PathEscape(category))
	if err := a.postJSON(ctx, endpoint, body, &out); err != nil {
		return "", err
	}
	if out.Slug == "" {
		return "", fmt.Errorf("create room: response carried no slug")
	}
	return out.Slug, nil
}

func (a *RoomAPI) InviteParticipant(ctx context.Context, slug, participantExternalID string) error {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/invite", a.baseURL, url.PathEscape(slug))
	return a.postJSON(ctx, endpoint, map[string]string{"user": participantExternalID}, nil)
}

func (a *RoomAPI) SendMessage(ctx context.Context, slug, text string) error {
	endpoint := fmt.Sprintf("%s/api/rooms/%s/message", a.baseURL, url.PathEscape(slug))
	return a.postJSON(ctx, endpoint, map[string]string{"text": text}, nil)
}

func (a *RoomAPI) FetchRoom(ctx context.Context, slug string) (*racepkg.RoomSnapshot, error) {
	endpoint := fmt.Sprintf("%s/api/rooms/%s", a.baseURL, url.PathEscape(slug))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	resp, err := a.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("%w: %s", racepkg.ErrRoomNotFound, slug)
	}
	if err := checkStatus(resp.StatusCode); err != nil {
		return nil, err
	}
	var snapshot racepkg.RoomSnapshot
	if err := json.NewDecoder(resp.Body).Decode(&snapshot); err != nil {
		return nil, fmt.Errorf("decode room state: %w", err)
	}
	return &snapshot, nil
}

func (a *RoomAPI) postJSON(ctx context.Context, endpoint string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	if err := checkStatus(resp.StatusCode); err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func checkStatus(statusCode int) error {
	switch {
	case statusCode >= 200 && statusCode < 300:
		return nil
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return fmt.Errorf("%w: status %d", racepkg.ErrAuthentication, statusCode)
	default:
		return fmt.Errorf("race service returned status %d", statusCode)
	}
}
