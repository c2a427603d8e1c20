package webrtc

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"livegrid/internal/core/domain"
	"livegrid/internal/core/services"
	"livegrid/internal/selftest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func newTestLoopback(t *testing.T) (*LoopbackTransport, *services.CredentialService) {
	t.Helper()

	issuer := services.NewCredentialService("devkey", "secret", time.Hour, time.Minute)
	transport, err := NewLoopbackTransport("devkey", "secret", DefaultLoopbackConfig(), zaptest.NewLogger(t).Sugar())
	require.NoError(t, err)
	return transport, issuer
}

func TestLoopbackTransport_RejectsForeignCredential(t *testing.T) {
	transport, _ := newTestLoopback(t)
	other := services.NewCredentialService("devkey", "not-the-secret", time.Hour, time.Minute)

	cred, err := other.Issue("alice", "room_1", domain.RoleParticipant)
	require.NoError(t, err)

	_, err = transport.Connect(context.Background(), "", cred)
	assert.ErrorIs(t, err, domain.ErrConnectRejected)
	assert.Zero(t, transport.RoomCount())
}

func TestLoopbackTransport_RejectsRoomMismatch(t *testing.T) {
	transport, issuer := newTestLoopback(t)

	cred, err := issuer.Issue("alice", "room_1", domain.RoleParticipant)
	require.NoError(t, err)

	_, err = transport.Connect(context.Background(), "loopback://local/room_2", cred)
	assert.ErrorIs(t, err, domain.ErrConnectRejected)

	room, err := transport.Connect(context.Background(), "loopback://local/room_1", cred)
	require.NoError(t, err)
	assert.NoError(t, room.Disconnect())
}

func TestLoopbackTransport_EnforcesGrant(t *testing.T) {
	transport, issuer := newTestLoopback(t)
	ctx := context.Background()

	proctorCred, err := issuer.Issue("proc1", "room_1", domain.RoleProctor)
	require.NoError(t, err)
	proctor, err := transport.Connect(ctx, "", proctorCred)
	require.NoError(t, err)
	defer proctor.Disconnect()

	assert.ErrorIs(t, proctor.PublishVideo(ctx), domain.ErrConnectRejected)

	participantCred, err := issuer.Issue("alice", "room_1", domain.RoleParticipant)
	require.NoError(t, err)
	participant, err := transport.Connect(ctx, "", participantCred)
	require.NoError(t, err)
	defer participant.Disconnect()

	assert.ErrorIs(t, participant.WaitForTrack(ctx), domain.ErrConnectRejected)
}

func TestLoopbackTransport_DuplicateIdentityRejected(t *testing.T) {
	transport, issuer := newTestLoopback(t)

	cred, err := issuer.Issue("alice", "room_1", domain.RoleParticipant)
	require.NoError(t, err)

	first, err := transport.Connect(context.Background(), "", cred)
	require.NoError(t, err)

	_, err = transport.Connect(context.Background(), "", cred)
	assert.ErrorIs(t, err, domain.ErrConnectRejected)

	require.NoError(t, first.Disconnect())
	assert.Zero(t, transport.RoomCount())
}

func TestLoopbackTransport_ChurnKeepsParticipantsInLiveRoom(t *testing.T) {
	transport, issuer := newTestLoopback(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		cred, err := issuer.Issue(fmt.Sprintf("user-%d", w), "busy_room", domain.RoleParticipant)
		require.NoError(t, err)

		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				room, err := transport.Connect(ctx, "", cred)
				if !assert.NoError(t, err) {
					return
				}
				p := room.(*loopbackParticipant)

				transport.mu.Lock()
				live := transport.rooms["busy_room"]
				transport.mu.Unlock()
				assert.Same(t, live, p.room, "participant joined a released room")

				assert.NoError(t, room.Disconnect())
			}
		}()
	}
	wg.Wait()

	assert.Zero(t, transport.RoomCount())
}

func TestLoopbackTransport_WaitForTrackHonoursContext(t *testing.T) {
	transport, issuer := newTestLoopback(t)

	cred, err := issuer.Issue("proc1", "empty_room", domain.RoleProctor)
	require.NoError(t, err)
	viewer, err := transport.Connect(context.Background(), "", cred)
	require.NoError(t, err)
	defer viewer.Disconnect()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, viewer.WaitForTrack(ctx), context.DeadlineExceeded)
}

// Exercises real ICE over the loopback interface.
func TestLoopbackTransport_SelfTestEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping peer connection test in short mode")
	}

	transport, issuer := newTestLoopback(t)
	pair, err := issuer.IssueSelfTestPair("bob")
	require.NoError(t, err)

	runner := selftest.NewRunner(transport, selftest.Config{
		WarmUp:            10 * time.Second,
		ObservationWindow: time.Second,
		SampleInterval:    250 * time.Millisecond,
	}, zaptest.NewLogger(t).Sugar())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	result, err := runner.Run(ctx, pair)
	require.NoError(t, err)
	assert.True(t, result.Success())
	assert.Greater(t, result.Analytics.AvgBitrate(), int64(0))
	assert.Zero(t, transport.RoomCount())
}
