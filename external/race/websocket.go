package race

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	racepkg "github.com/podiumlab/racebot/internal/race"
)

// WSClient dials the race service's push channel, one websocket per bot
// credential.
type WSClient struct {
	baseURL string
	dialer  *websocket.Dialer
}

func NewWSClient(wsBaseURL string, handshakeTimeout time.Duration) racepkg.Client {
	return &WSClient{
		baseURL: wsBaseURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: handshakeTimeout,
		},
	}
}

func (c *WSClient) Dial(ctx context.Context, cred racepkg.Credential) (racepkg.Conn, error) {
	endpoint := fmt.Sprintf("%s/ws/bot/%s", c.baseURL, url.PathEscape(cred.Category))
	header := http.Header{}
	header.Set("Authorization", "Bearer "+cred.Token)

	conn, resp, err := c.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake returned %d", racepkg.ErrAuthentication, resp.StatusCode)
		}
		return nil, fmt.Errorf("dial %s: %w", endpoint, err)
	}

	wc := &wsConn{conn: conn, closed: make(chan struct{})}
	// Interrupt a blocked read when the caller's context ends.
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-wc.closed:
		}
	}()
	return wc, nil
}

type wsConn struct {
	conn      *websocket.Conn
	closeOnce sync.Once
	closed    chan struct{}
}

// wireFrame is the remote service's push envelope.
type wireFrame struct {
	Type     string                `json:"type"`
	Room     string                `json:"room"`
	Snapshot *racepkg.RoomSnapshot `json:"snapshot,omitempty"`
	Message  *racepkg.ChatMessage  `json:"message,omitempty"`
}

func (c *wsConn) ReadFrame(ctx context.Context) (racepkg.Frame, error) {
	_, data, err := c.conn.ReadMessage()
	if err != nil {
		if ctx.Err() != nil {
			return racepkg.Frame{}, ctx.Err()
		}
		if websocket.IsCloseError(err, websocket.ClosePolicyViolation) {
			return racepkg.Frame{}, fmt.Errorf("%w: %v", racepkg.ErrAuthentication, err)
		}
		return racepkg.Frame{}, err
	}

	var frame wireFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		return racepkg.Frame{}, fmt.Errorf("%w: %v", racepkg.ErrProtocol, err)
	}
	if frame.Room == "" {
		return racepkg.Frame{}, fmt.Errorf("%w: frame without room slug", racepkg.ErrProtocol)
	}
	switch frame.Type {
	case "room.snapshot":
		if frame.Snapshot == nil {
			return racepkg.Frame{}, fmt.Errorf("%w: snapshot frame without snapshot", racepkg.ErrProtocol)
		}
		return racepkg.Frame{RoomSlug: frame.Room, Snapshot: frame.Snapshot}, nil
	case "room.chat":
		if frame.Message == nil {
			return racepkg.Frame{}, fmt.Errorf("%w: chat frame without message", racepkg.ErrProtocol)
		}
		return racepkg.Frame{RoomSlug: frame.Room, Chat: frame.Message}, nil
	default:
		return racepkg.Frame{}, fmt.Errorf("%w: unknown frame type %q", racepkg.ErrProtocol, frame.Type)
	}
}

func (c *wsConn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
	})
	return c.conn.Close()
}
