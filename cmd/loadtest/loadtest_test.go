package main

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"livegrid/internal/client"
	"livegrid/internal/core/domain"
	"livegrid/internal/selftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func execute(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestRoomsList(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/livekit/rooms", r.URL.Path)
		_, _ = io.WriteString(w, `[{"name":"room_1","num_participants":4}]`)
	}))
	defer srv.Close()

	out, err := execute(t, "", "--api", srv.URL+"/livekit", "rooms", "list")
	require.NoError(t, err)
	assert.Contains(t, out, `"name": "room_1"`)
	assert.Contains(t, out, `"num_participants": 4`)
}

func TestRoomsCreatePassesFlags(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		assert.NoError(t, err)
		assert.JSONEq(t, `{"name":"exam-9","max_participants":25}`, string(body))
		_, _ = io.WriteString(w, `{"sid":"RM_9","name":"exam-9","max_participants":25}`)
	}))
	defer srv.Close()

	out, err := execute(t, "", "--api", srv.URL, "rooms", "create", "exam-9", "--max-participants", "25")
	require.NoError(t, err)
	assert.Contains(t, out, `"sid": "RM_9"`)
}

func TestLoginAndLogout(t *testing.T) {
	sessionFile := filepath.Join(t.TempDir(), "session.json")

	out, err := execute(t, "https://app.example.com/exam?uid=u-5&token=opaque\n",
		"--session-file", sessionFile, "login")
	require.NoError(t, err)
	assert.Contains(t, out, "/sso/login")
	assert.Contains(t, out, "logged in as u-5")

	session, err := client.NewFileSessionStore(sessionFile).Load()
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "opaque", session.Token)

	_, err = execute(t, "", "--session-file", sessionFile, "logout")
	require.NoError(t, err)
	session, err = client.NewFileSessionStore(sessionFile).Load()
	require.NoError(t, err)
	assert.Nil(t, session)
}

func TestLoginRequiresUIDAndToken(t *testing.T) {
	_, err := execute(t, "", "--session-file", filepath.Join(t.TempDir(), "s.json"), "login", "--uid", "u-1")
	assert.Error(t, err)
}

func TestParticipantsRejectsZeroSeats(t *testing.T) {
	_, err := execute(t, "", "participants", "--seats", "0")
	assert.Error(t, err)
}

type stubRoom struct {
	published    bool
	disconnected bool
}

func (r *stubRoom) PublishVideo(context.Context) error {
	r.published = true
	return nil
}

func (r *stubRoom) WaitForTrack(context.Context) error { return nil }
func (r *stubRoom) BitrateSample() int64               { return 0 }

func (r *stubRoom) Disconnect() error {
	r.disconnected = true
	return nil
}

type stubTransport struct {
	room *stubRoom
	cred domain.Credential
}

func (s *stubTransport) Connect(_ context.Context, _ string, token domain.Credential) (selftest.Room, error) {
	s.cred = token
	return s.room, nil
}

func TestHoldPublisher(t *testing.T) {
	transport := &stubTransport{room: &stubRoom{}}
	register := func(_ context.Context, name, room string) (domain.Credential, error) {
		assert.Equal(t, "part_3", name)
		assert.Equal(t, "room_1", room)
		return "cred", nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	require.NoError(t, holdPublisher(ctx, register, transport, "ws://localhost:7880", "part_3", "room_1"))
	assert.Equal(t, domain.Credential("cred"), transport.cred)
	assert.True(t, transport.room.published)
	assert.True(t, transport.room.disconnected)
}

func TestFirstPositive(t *testing.T) {
	assert.Equal(t, 2*time.Second, firstPositive(0, 2*time.Second, time.Second))
	assert.Equal(t, time.Duration(0), firstPositive(0, 0))
}
