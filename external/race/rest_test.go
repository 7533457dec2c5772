package race

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	racepkg "github.com/podiumlab/racebot/internal/race"
)

func TestCreateRoom_Success(t *testing.T) {
	var gotPath string
	var gotBody createRoomRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Fatalf("unexpected method: %s", r.Method)
		}
		gotPath = r.URL.Path
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Fatalf("failed to decode body: %v", err)
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"slug": "smb3/brave-race-1234"})
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	slug, err := api.CreateRoom(context.Background(), "smb3", racepkg.RoomConfig{
		Goal:      "any%",
		TimeLimit: 2 * time.Hour,
		AutoStart: true,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if slug != "smb3/brave-race-1234" {
		t.Fatalf("slug = %q", slug)
	}
	if gotPath != "/api/smb3/rooms" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody.Goal != "any%" || gotBody.TimeLimitSeconds != 7200 || !gotBody.AutoStart {
		t.Fatalf("body = %+v", gotBody)
	}
}

func TestCreateRoom_AuthStatusMapsToAuthenticationError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	_, err := api.CreateRoom(context.Background(), "smb3", racepkg.RoomConfig{})
	if !errors.Is(err, racepkg.ErrAuthentication) {
		t.Fatalf("expected ErrAuthentication, got %v", err)
	}
}

func TestSendMessage_PostsText(t *testing.T) {
	var gotPath string
	var gotBody map[string]string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	if err := api.SendMessage(context.Background(), "smb3/race-1", "GL HF"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/rooms/smb3%2Frace-1/message" && gotPath != "/api/rooms/smb3/race-1/message" {
		t.Fatalf("path = %q", gotPath)
	}
	if gotBody["text"] != "GL HF" {
		t.Fatalf("body = %v", gotBody)
	}
}

func TestFetchRoom_DecodesSnapshot(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(racepkg.RoomSnapshot{
			RaceStatus: racepkg.RaceStatusInProgress,
			Entrants: []racepkg.EntrantSnapshot{
				{ID: "runner-1", DisplayName: "Runner", Status: racepkg.EntrantStatusInProgress},
			},
		})
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	snapshot, err := api.FetchRoom(context.Background(), "smb3/race-1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if snapshot.RaceStatus != racepkg.RaceStatusInProgress || len(snapshot.Entrants) != 1 {
		t.Fatalf("snapshot = %+v", snapshot)
	}
}

func TestFetchRoom_NotFound(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	if _, err := api.FetchRoom(context.Background(), "smb3/gone"); !errors.Is(err, racepkg.ErrRoomNotFound) {
		t.Fatalf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestInviteParticipant_ServerErrorSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	api := NewRoomAPI(server.URL, time.Second)
	if err := api.InviteParticipant(context.Background(), "smb3/race-1", "runner-1"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
