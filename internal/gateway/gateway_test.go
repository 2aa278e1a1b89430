package gateway_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/roomchat/internal/chaterr"
	"github.com/Tyrowin/roomchat/internal/gateway"
	"github.com/Tyrowin/roomchat/internal/mocks"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/router"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

const (
	s1 = presence.SessionID("s1")
	s2 = presence.SessionID("s2")
	s3 = presence.SessionID("s3")
)

type harness struct {
	gw      *gateway.Gateway
	emitter *mocks.MockEmitter
}

func newHarness(t *testing.T, connected ...presence.SessionID) harness {
	t.Helper()
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	lister := mocks.NewMockConnectionLister(ctrl)
	lister.EXPECT().ConnectedSessions().Return(connected).AnyTimes()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	gw := gateway.New(emitter, lister, logger,
		gateway.WithClock(func() time.Time { return fixedTime }),
		gateway.WithPasswordCost(bcrypt.MinCost),
	)
	return harness{gw: gw, emitter: emitter}
}

func (h harness) handle(t *testing.T, session presence.SessionID, event string, data any) (any, error) {
	t.Helper()
	raw, err := json.Marshal(data)
	require.NoError(t, err)
	return h.gw.Handle(session, event, raw)
}

func (h harness) mustHandle(t *testing.T, session presence.SessionID, event string, data any) any {
	t.Helper()
	result, err := h.handle(t, session, event, data)
	require.NoError(t, err)
	return result
}

func notification(room, text string) router.RoomMessage {
	return router.RoomMessage{From: router.SystemSender, Room: room, Message: text, Timestamp: fixedTime}
}

func TestGateway_EventsIsTheDispatchTable(t *testing.T) {
	h := newHarness(t)

	require.Equal(t, []string{
		"create-room", "join-room", "leave-room", "list-rooms", "register",
		"room-members", "send-to-all", "send-to-room", "send-to-user",
	}, h.gw.Events())
}

func TestGateway_UnknownEventIsValidationError(t *testing.T) {
	h := newHarness(t)

	_, err := h.gw.Handle(s1, "shout", nil)

	require.ErrorIs(t, err, chaterr.ErrValidation)
}

func TestGateway_Register(t *testing.T) {
	h := newHarness(t)

	t.Run("object payload", func(t *testing.T) {
		result := h.mustHandle(t, s1, gateway.EventRegister, map[string]string{"identity": "alice"})
		require.Nil(t, result)
	})

	t.Run("bare string payload", func(t *testing.T) {
		h.mustHandle(t, s2, gateway.EventRegister, "bob")
	})

	t.Run("missing identity", func(t *testing.T) {
		_, err := h.handle(t, s3, gateway.EventRegister, map[string]string{})
		require.ErrorIs(t, err, chaterr.ErrValidation)
		require.Equal(t, "identity is required", chaterr.MessageOf(err))
	})

	t.Run("malformed payload", func(t *testing.T) {
		_, err := h.gw.Handle(s3, gateway.EventRegister, json.RawMessage(`{"identity":`))
		require.ErrorIs(t, err, chaterr.ErrValidation)
	})

	// Registrations are visible to routing: bob can reach alice.
	h.emitter.EXPECT().Emit(s1, router.EventPrivateMessage, router.DirectMessage{From: "bob", Message: "hey"})
	h.mustHandle(t, s2, gateway.EventSendToUser, map[string]string{"toIdentity": "alice", "message": "hey"})
}

// TestGateway_PrivateRoomScenario walks through creating a private room,
// a failed and a successful join, and a room message seen by both members.
func TestGateway_PrivateRoomScenario(t *testing.T) {
	req := require.New(t)
	h := newHarness(t, s1, s2)
	h.mustHandle(t, s1, gateway.EventRegister, "alice")
	h.mustHandle(t, s2, gateway.EventRegister, "bob")

	created := rooms.Snapshot{Name: "team", Creator: "alice", IsPrivate: true, Members: 1, CreatedAt: fixedTime}
	h.emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gateway.RoomJoined{
		Room: "team", Message: "Room team created and joined", RoomInfo: created,
	})
	result := h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "team", "isPrivate": true, "password": "p"})
	req.Equal(gateway.RoomResult{Success: true, Room: created}, result)

	_, err := h.handle(t, s2, gateway.EventJoinRoom, map[string]string{"room": "team", "password": "wrong"})
	req.ErrorIs(err, chaterr.ErrAuthorization)

	joined := created
	joined.Members = 2
	gomock.InOrder(
		h.emitter.EXPECT().Emit(s2, gateway.EventRoomJoined, gateway.RoomJoined{
			Room: "team", Message: "Joined room team", RoomInfo: joined,
		}),
		h.emitter.EXPECT().Emit(s1, router.EventRoomNotification, notification("team", "User bob joined the room")),
	)
	result = h.mustHandle(t, s2, gateway.EventJoinRoom, map[string]string{"room": "team", "password": "p"})
	req.Equal(gateway.RoomResult{Success: true, Room: joined}, result)

	message := router.RoomMessage{From: "alice", Room: "team", Message: "hi", Timestamp: fixedTime}
	h.emitter.EXPECT().Emit(s1, router.EventRoomMessage, message)
	h.emitter.EXPECT().Emit(s2, router.EventRoomMessage, message)
	result = h.mustHandle(t, s1, gateway.EventSendToRoom, map[string]string{"room": "team", "message": "hi"})
	req.Equal(gateway.SendToRoomResult{Success: true, Room: "team", Message: "hi"}, result)
}

func TestGateway_CreateRoomFailuresEmitNothing(t *testing.T) {
	h := newHarness(t)
	h.emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gomock.Any())
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "lobby"})

	_, err := h.handle(t, s2, gateway.EventCreateRoom, map[string]any{"name": "lobby"})
	require.ErrorIs(t, err, chaterr.ErrConflict)

	_, err = h.handle(t, s2, gateway.EventCreateRoom, map[string]any{"name": "vip", "isPrivate": true})
	require.ErrorIs(t, err, chaterr.ErrValidation)

	_, err = h.handle(t, s2, gateway.EventCreateRoom, map[string]any{"isPrivate": false})
	require.ErrorIs(t, err, chaterr.ErrValidation)
	require.Equal(t, "name is required", chaterr.MessageOf(err))

	require.Equal(t, []rooms.Summary{{Name: "lobby", Creator: "s1", Members: 1, CreatedAt: fixedTime}}, h.gw.PublicRooms())
}

func TestGateway_LeaveRoom(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.mustHandle(t, s2, gateway.EventRegister, "bob")
	h.emitter.EXPECT().Emit(gomock.Any(), gateway.EventRoomJoined, gomock.Any()).Times(2)
	h.emitter.EXPECT().Emit(s1, router.EventRoomNotification, gomock.Any())
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "lobby"})
	h.mustHandle(t, s2, gateway.EventJoinRoom, map[string]any{"room": "lobby"})

	h.emitter.EXPECT().Emit(s1, router.EventRoomNotification, notification("lobby", "User bob left the room"))
	result := h.mustHandle(t, s2, gateway.EventLeaveRoom, "lobby")
	req.Equal(gateway.LeaveRoomResult{Success: true, Room: "lobby"}, result)

	_, err := h.handle(t, s2, gateway.EventLeaveRoom, map[string]string{"room": "lobby"})
	req.ErrorIs(err, chaterr.ErrState)

	// The last member leaving deletes the room without notifying anyone.
	h.mustHandle(t, s1, gateway.EventLeaveRoom, "lobby")
	_, err = h.handle(t, s1, gateway.EventRoomMembers, "lobby")
	req.ErrorIs(err, chaterr.ErrNotFound)
}

func TestGateway_ListRoomsAndMembers(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.mustHandle(t, s1, gateway.EventRegister, "alice")
	h.emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gomock.Any()).Times(2)
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "lobby"})
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "secret", "isPrivate": true, "password": "pw"})

	listing := []rooms.Summary{{Name: "lobby", Creator: "alice", Members: 1, CreatedAt: fixedTime}}
	h.emitter.EXPECT().Emit(s2, gateway.EventRoomList, listing)
	result := h.mustHandle(t, s2, gateway.EventListRooms, nil)
	req.Equal(gateway.ListRoomsResult{Success: true, Rooms: listing}, result)

	h.emitter.EXPECT().Emit(s1, gateway.EventRoomMembersList, gateway.RoomMembersList{
		Room: "secret", Members: []string{"alice"}, Count: 1,
	})
	result = h.mustHandle(t, s1, gateway.EventRoomMembers, map[string]string{"room": "secret"})
	req.Equal(gateway.RoomMembersResult{Success: true, Room: "secret", Members: []string{"alice"}}, result)

	_, err := h.handle(t, s2, gateway.EventRoomMembers, "secret")
	req.ErrorIs(err, chaterr.ErrAuthorization)
}

func TestGateway_SendToUser_UnknownTarget(t *testing.T) {
	h := newHarness(t)

	_, err := h.handle(t, s1, gateway.EventSendToUser, map[string]string{"toIdentity": "ghost", "message": "boo"})

	require.ErrorIs(t, err, chaterr.ErrNotFound)
}

func TestGateway_SendToRoom_NonMemberEmitsNothing(t *testing.T) {
	h := newHarness(t)
	h.emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gomock.Any())
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "lobby"})

	_, err := h.handle(t, s2, gateway.EventSendToRoom, map[string]string{"room": "lobby", "message": "hi"})

	require.ErrorIs(t, err, chaterr.ErrState)
}

func TestGateway_SendToAll_ReachesEveryoneButSender(t *testing.T) {
	h := newHarness(t, s1, s2, s3)
	h.mustHandle(t, s1, gateway.EventRegister, "alice")

	payload := router.DirectMessage{From: "alice", Message: "hello"}
	h.emitter.EXPECT().Emit(s2, router.EventBroadcastMessage, payload)
	h.emitter.EXPECT().Emit(s3, router.EventBroadcastMessage, payload)

	result := h.mustHandle(t, s1, gateway.EventSendToAll, "hello")
	require.Nil(t, result)
}

func TestGateway_OnDisconnect_Cascade(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.mustHandle(t, s1, gateway.EventRegister, "alice")
	h.emitter.EXPECT().Emit(gomock.Any(), gateway.EventRoomJoined, gomock.Any()).Times(3)
	h.emitter.EXPECT().Emit(s2, router.EventRoomNotification, gomock.Any())
	h.mustHandle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "solo"})
	h.mustHandle(t, s2, gateway.EventCreateRoom, map[string]any{"name": "shared"})
	h.mustHandle(t, s1, gateway.EventJoinRoom, map[string]any{"room": "shared"})

	h.emitter.EXPECT().Emit(s2, router.EventRoomNotification,
		notification("shared", "User alice left the room (disconnected)"))
	h.gw.OnDisconnect(s1)

	req.Equal([]rooms.Summary{{Name: "shared", Creator: "s2", Members: 1, CreatedAt: fixedTime}}, h.gw.PublicRooms())

	// The identity is free again.
	_, err := h.handle(t, s2, gateway.EventSendToUser, map[string]string{"toIdentity": "alice", "message": "still there?"})
	req.ErrorIs(err, chaterr.ErrNotFound)

	// A second disconnect of the same handle is harmless.
	h.gw.OnDisconnect(s1)
}

func TestGateway_EmitterPanicDoesNotFailCompletedOperation(t *testing.T) {
	req := require.New(t)
	h := newHarness(t)
	h.emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gomock.Any()).Do(func(presence.SessionID, string, any) {
		panic("transport exploded")
	})

	result, err := h.handle(t, s1, gateway.EventCreateRoom, map[string]any{"name": "lobby"})
	req.NoError(err)
	req.Equal("lobby", result.(gateway.RoomResult).Room.Name)

	listing := h.gw.PublicRooms()
	req.Len(listing, 1)
	req.Equal("lobby", listing[0].Name)
	req.Equal(1, listing[0].Members)
}

func TestGateway_RecoversFromPanickingHandler(t *testing.T) {
	req := require.New(t)
	ctrl := gomock.NewController(t)
	emitter := mocks.NewMockEmitter(ctrl)
	lister := mocks.NewMockConnectionLister(ctrl)
	lister.EXPECT().ConnectedSessions().Do(func() { panic("registry exploded") })

	gw := gateway.New(emitter, lister, slog.New(slog.NewTextHandler(io.Discard, nil)),
		gateway.WithPasswordCost(bcrypt.MinCost))

	_, err := gw.Handle(s1, gateway.EventSendToAll, json.RawMessage(`"hello"`))
	req.ErrorIs(err, chaterr.ErrInternal)

	// The gateway lock was released.
	emitter.EXPECT().Emit(s1, gateway.EventRoomJoined, gomock.Any())
	_, err = gw.Handle(s1, gateway.EventCreateRoom, json.RawMessage(`{"name":"lobby"}`))
	req.NoError(err)
}
