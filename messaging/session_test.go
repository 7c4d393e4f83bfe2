// Copyright 2026 The mnotify Authors
// SPDX-License-Identifier: Apache-2.0

package messaging

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/MatthiasGrandl/mnotify/lib/ref"
)

// newTestSession creates a Client and Session pointing at a test server.
func newTestSession(t *testing.T, handler http.Handler) (*Client, *Session) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient(ClientConfig{HomeserverURL: server.URL})
	if err != nil {
		t.Fatalf("NewClient failed: %v", err)
	}
	session, err := client.SessionFromToken(ref.MustParseUserID("@test:local"), "test-token")
	if err != nil {
		t.Fatalf("SessionFromToken failed: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return client, session
}

func TestWhoAmI(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/account/whoami" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, WhoAmIResponse{UserID: ref.MustParseUserID("@test:local"), DeviceID: "DEV1"})
	}))

	userID, err := session.WhoAmI(context.Background())
	if err != nil {
		t.Fatalf("WhoAmI failed: %v", err)
	}
	if userID.String() != "@test:local" {
		t.Errorf("unexpected user ID: %s", userID)
	}
}

func TestLogout(t *testing.T) {
	var called bool
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v3/logout" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if request.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", request.Method)
		}
		called = true
		writeJSON(writer, map[string]any{})
	}))

	if err := session.Logout(context.Background()); err != nil {
		t.Fatalf("Logout failed: %v", err)
	}
	if !called {
		t.Error("logout endpoint was not called")
	}
}

func TestSendMessage(t *testing.T) {
	t.Run("plain text message", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			assertAuth(t, request, "test-token")
			if request.Method != http.MethodPut {
				t.Errorf("expected PUT, got %s", request.Method)
			}
			if !strings.Contains(request.URL.Path, "/send/m.room.message/") {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}

			var body MessageContent
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode message: %v", err)
			}
			if body.MsgType != "m.text" {
				t.Errorf("unexpected msgtype: %s", body.MsgType)
			}
			if body.Body != "hello world" {
				t.Errorf("unexpected body: %s", body.Body)
			}
			if body.RelatesTo != nil {
				t.Error("plain message should not have relates_to")
			}

			writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$event1")})
		}))

		eventID, err := session.SendMessage(context.Background(),
			ref.MustParseRoomID("!room1:local"), NewTextMessage("hello world"))
		if err != nil {
			t.Fatalf("SendMessage failed: %v", err)
		}
		if eventID.String() != "$event1" {
			t.Errorf("unexpected event ID: %s", eventID)
		}
	})

	t.Run("rich reply", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var body MessageContent
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode message: %v", err)
			}
			if body.RelatesTo == nil {
				t.Fatal("reply should have relates_to")
			}
			if body.RelatesTo.InReplyTo == nil {
				t.Fatal("reply should have in_reply_to")
			}
			if body.RelatesTo.InReplyTo.EventID.String() != "$orig1" {
				t.Errorf("unexpected in_reply_to: %s", body.RelatesTo.InReplyTo.EventID)
			}

			writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$event2")})
		}))

		eventID, err := session.SendMessage(context.Background(),
			ref.MustParseRoomID("!room1:local"),
			NewReply(ref.MustParseEventID("$orig1"), "reply text"))
		if err != nil {
			t.Fatalf("SendMessage (reply) failed: %v", err)
		}
		if eventID.String() != "$event2" {
			t.Errorf("unexpected event ID: %s", eventID)
		}
	})

	t.Run("attachment message", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var body MessageContent
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode message: %v", err)
			}
			if body.MsgType != "m.file" {
				t.Errorf("unexpected msgtype: %s", body.MsgType)
			}
			if body.URL != "mxc://local/media123" {
				t.Errorf("unexpected url: %s", body.URL)
			}
			if body.Info == nil || body.Info.MimeType != "application/pdf" {
				t.Errorf("unexpected info: %+v", body.Info)
			}

			writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$event3")})
		}))

		content := NewAttachment("m.file", "report.pdf", "mxc://local/media123",
			&FileInfo{MimeType: "application/pdf", Size: 1024})
		if _, err := session.SendMessage(context.Background(),
			ref.MustParseRoomID("!room1:local"), content); err != nil {
			t.Fatalf("SendMessage (attachment) failed: %v", err)
		}
	})
}

func TestRedactEvent(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", request.Method)
		}
		if !strings.Contains(request.URL.Path, "/redact/$bad1/") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}

		var body RedactRequest
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			t.Fatalf("failed to decode redact request: %v", err)
		}
		if body.Reason != "spam" {
			t.Errorf("unexpected reason: %s", body.Reason)
		}

		writeJSON(writer, SendEventResponse{EventID: ref.MustParseEventID("$redaction1")})
	}))

	eventID, err := session.RedactEvent(context.Background(),
		ref.MustParseRoomID("!room1:local"), ref.MustParseEventID("$bad1"), "spam")
	if err != nil {
		t.Fatalf("RedactEvent failed: %v", err)
	}
	if eventID.String() != "$redaction1" {
		t.Errorf("unexpected event ID: %s", eventID)
	}
}

func TestSendTyping(t *testing.T) {
	t.Run("typing on", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !strings.Contains(request.URL.Path, "/typing/@test:local") {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			var body TypingRequest
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode typing request: %v", err)
			}
			if !body.Typing {
				t.Error("expected typing=true")
			}
			if body.Timeout != 5000 {
				t.Errorf("expected timeout=5000, got %d", body.Timeout)
			}
			writeJSON(writer, map[string]any{})
		}))

		err := session.SendTyping(context.Background(),
			ref.MustParseRoomID("!room1:local"), true, 5*time.Second)
		if err != nil {
			t.Fatalf("SendTyping failed: %v", err)
		}
	})

	t.Run("typing off omits timeout", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			var body map[string]any
			if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
				t.Fatalf("failed to decode typing request: %v", err)
			}
			if body["typing"] != false {
				t.Errorf("expected typing=false, got %v", body["typing"])
			}
			if _, present := body["timeout"]; present {
				t.Error("typing=false should omit timeout")
			}
			writeJSON(writer, map[string]any{})
		}))

		err := session.SendTyping(context.Background(),
			ref.MustParseRoomID("!room1:local"), false, 5*time.Second)
		if err != nil {
			t.Fatalf("SendTyping failed: %v", err)
		}
	})
}

func TestGetStateEvent(t *testing.T) {
	t.Run("existing state", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			if !strings.Contains(request.URL.Path, "/state/m.room.name/") {
				t.Errorf("unexpected path: %s", request.URL.Path)
			}
			writeJSON(writer, map[string]any{"name": "Ops Room"})
		}))

		raw, err := session.GetStateEvent(context.Background(),
			ref.MustParseRoomID("!room1:local"), ref.EventTypeName, "")
		if err != nil {
			t.Fatalf("GetStateEvent failed: %v", err)
		}
		var content struct {
			Name string `json:"name"`
		}
		if err := json.Unmarshal(raw, &content); err != nil {
			t.Fatalf("failed to parse state content: %v", err)
		}
		if content.Name != "Ops Room" {
			t.Errorf("unexpected name: %s", content.Name)
		}
	})

	t.Run("missing state", func(t *testing.T) {
		_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(http.StatusNotFound)
			json.NewEncoder(writer).Encode(MatrixError{Code: ErrCodeNotFound, Message: "not found"})
		}))

		_, err := session.GetStateEvent(context.Background(),
			ref.MustParseRoomID("!room1:local"), ref.EventTypeName, "")
		if !IsMatrixError(err, ErrCodeNotFound) {
			t.Errorf("expected M_NOT_FOUND, got: %v", err)
		}
	})
}

func TestGetRoomMembers(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasSuffix(request.URL.Path, "/members") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writeJSON(writer, RoomMembersResponse{
			Chunk: []RoomMemberEvent{
				{
					Type:     "m.room.member",
					StateKey: ref.MustParseUserID("@alice:local"),
					Content: RoomMemberContent{
						Membership:  "join",
						DisplayName: "Alice",
						AvatarURL:   "mxc://local/alice-avatar",
					},
				},
				{
					Type:     "m.room.member",
					StateKey: ref.MustParseUserID("@bob:local"),
					Content:  RoomMemberContent{Membership: "leave"},
				},
			},
		})
	}))

	members, err := session.GetRoomMembers(context.Background(), ref.MustParseRoomID("!room1:local"))
	if err != nil {
		t.Fatalf("GetRoomMembers failed: %v", err)
	}
	if len(members) != 2 {
		t.Fatalf("expected 2 members, got %d", len(members))
	}
	if members[0].UserID.String() != "@alice:local" || members[0].DisplayName != "Alice" {
		t.Errorf("unexpected first member: %+v", members[0])
	}
	if members[0].AvatarURL != "mxc://local/alice-avatar" {
		t.Errorf("unexpected avatar: %s", members[0].AvatarURL)
	}
	if members[1].Membership != "leave" {
		t.Errorf("unexpected second membership: %s", members[1].Membership)
	}
}

func TestSync(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		query := request.URL.Query()
		if query.Get("since") != "s123" {
			t.Errorf("unexpected since: %s", query.Get("since"))
		}
		if query.Get("timeout") != "30000" {
			t.Errorf("unexpected timeout: %s", query.Get("timeout"))
		}
		if query.Get("set_presence") != "online" {
			t.Errorf("unexpected set_presence: %s", query.Get("set_presence"))
		}

		writeJSON(writer, map[string]any{
			"next_batch": "s124",
			"account_data": map[string]any{
				"events": []map[string]any{
					{"type": "m.direct", "content": map[string]any{"@alice:local": []string{"!dm1:local"}}},
				},
			},
			"rooms": map[string]any{
				"join": map[string]any{
					"!room1:local": map[string]any{
						"timeline": map[string]any{
							"events": []map[string]any{
								{
									"event_id":         "$msg1",
									"type":             "m.room.message",
									"sender":           "@alice:local",
									"origin_server_ts": 1700000000000,
									"content":          map[string]any{"msgtype": "m.text", "body": "hi"},
								},
							},
							"prev_batch": "p1",
						},
						"unread_notifications": map[string]any{
							"highlight_count":    1,
							"notification_count": 3,
						},
					},
				},
			},
		})
	}))

	response, err := session.Sync(context.Background(), SyncOptions{
		Since:       "s123",
		SetTimeout:  true,
		Timeout:     30000,
		SetPresence: "online",
	})
	if err != nil {
		t.Fatalf("Sync failed: %v", err)
	}
	if response.NextBatch != "s124" {
		t.Errorf("unexpected next_batch: %s", response.NextBatch)
	}

	joined, ok := response.Rooms.Join[ref.MustParseRoomID("!room1:local")]
	if !ok {
		t.Fatal("expected !room1:local in join section")
	}
	if len(joined.Timeline.Events) != 1 {
		t.Fatalf("expected 1 timeline event, got %d", len(joined.Timeline.Events))
	}
	if joined.Timeline.Events[0].Content["body"] != "hi" {
		t.Errorf("unexpected event body: %v", joined.Timeline.Events[0].Content["body"])
	}
	if joined.UnreadNotifications.NotificationCount != 3 {
		t.Errorf("unexpected notification count: %d", joined.UnreadNotifications.NotificationCount)
	}
	if len(response.AccountData.Events) != 1 || response.AccountData.Events[0].Type != "m.direct" {
		t.Errorf("unexpected account data: %+v", response.AccountData.Events)
	}
}

func TestUploadMedia(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/media/v3/upload" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		if request.Header.Get("Content-Type") != "image/png" {
			t.Errorf("unexpected content type: %s", request.Header.Get("Content-Type"))
		}
		writeJSON(writer, UploadResponse{ContentURI: "mxc://local/uploaded1"})
	}))

	uri, err := session.UploadMedia(context.Background(), "image/png", bytes.NewReader([]byte("png-bytes")))
	if err != nil {
		t.Fatalf("UploadMedia failed: %v", err)
	}
	if uri.String() != "mxc://local/uploaded1" {
		t.Errorf("unexpected content URI: %s", uri)
	}
}

func TestDownloadMedia(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		assertAuth(t, request, "test-token")
		if request.URL.Path != "/_matrix/client/v1/media/download/local/media123" {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		writer.Write([]byte("media-bytes"))
	}))

	data, err := session.DownloadMedia(context.Background(), ref.MustParseMXCURI("mxc://local/media123"))
	if err != nil {
		t.Fatalf("DownloadMedia failed: %v", err)
	}
	if string(data) != "media-bytes" {
		t.Errorf("unexpected media content: %q", data)
	}
}

func TestDownloadThumbnail(t *testing.T) {
	_, session := newTestSession(t, http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if !strings.HasPrefix(request.URL.Path, "/_matrix/client/v1/media/thumbnail/local/media123") {
			t.Errorf("unexpected path: %s", request.URL.Path)
		}
		query := request.URL.Query()
		if query.Get("width") != "50" || query.Get("height") != "50" || query.Get("method") != "scale" {
			t.Errorf("unexpected thumbnail query: %s", request.URL.RawQuery)
		}
		writer.Write([]byte("thumb-bytes"))
	}))

	data, err := session.DownloadThumbnail(context.Background(),
		ref.MustParseMXCURI("mxc://local/media123"), 50, 50, "scale")
	if err != nil {
		t.Fatalf("DownloadThumbnail failed: %v", err)
	}
	if string(data) != "thumb-bytes" {
		t.Errorf("unexpected thumbnail content: %q", data)
	}
}

func TestThumbnailURL(t *testing.T) {
	client, session := newTestSession(t, http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	got := session.ThumbnailURL(ref.MustParseMXCURI("mxc://local/media123"), 50, 50, "scale")
	want := client.HomeserverURL() + "/_matrix/client/v1/media/thumbnail/local/media123?width=50&height=50&method=scale"
	if got != want {
		t.Errorf("ThumbnailURL = %q, want %q", got, want)
	}
}

func assertAuth(t *testing.T, request *http.Request, expectedToken string) {
	t.Helper()
	auth := request.Header.Get("Authorization")
	expected := "Bearer " + expectedToken
	if auth != expected {
		t.Errorf("unexpected auth header: got %q, want %q", auth, expected)
	}
}

func writeJSON(writer http.ResponseWriter, value any) {
	writer.Header().Set("Content-Type", "application/json")
	json.NewEncoder(writer).Encode(value)
}
