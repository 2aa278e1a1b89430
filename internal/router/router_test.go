package router

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/roomchat/internal/chaterr"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

var fixedTime = time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

type staticConnections []presence.SessionID

func (s staticConnections) ConnectedSessions() []presence.SessionID {
	return append([]presence.SessionID(nil), s...)
}

type fixture struct {
	registry *presence.Registry
	rooms    *rooms.Manager
	router   *Router
	alice    presence.SessionID
	bob      presence.SessionID
	carol    presence.SessionID
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	f := fixture{
		registry: presence.NewRegistry(),
		alice:    presence.SessionID("s-alice"),
		bob:      presence.SessionID("s-bob"),
		carol:    presence.SessionID("s-carol"),
	}
	f.rooms = rooms.NewManager(f.registry, rooms.WithPasswordCost(bcrypt.MinCost))
	f.router = New(f.registry, f.rooms, staticConnections{f.alice, f.bob, f.carol},
		WithClock(func() time.Time { return fixedTime }))
	require.NoError(t, f.registry.Register(f.alice, "alice"))
	require.NoError(t, f.registry.Register(f.bob, "bob"))
	return f
}

func TestRouter_SendPrivate(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	deliveries, err := f.router.SendPrivate(f.alice, "bob", "psst")

	req.NoError(err)
	req.Equal([]Delivery{{
		Target:  f.bob,
		Event:   EventPrivateMessage,
		Payload: DirectMessage{From: "alice", Message: "psst"},
	}}, deliveries)
}

func TestRouter_SendPrivate_UnknownTargetProducesNothing(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	deliveries, err := f.router.SendPrivate(f.alice, "dave", "hello?")

	req.ErrorIs(err, chaterr.ErrNotFound)
	req.Empty(deliveries)
}

func TestRouter_SendPrivate_RequiresTargetAndMessage(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	deliveries, err := f.router.SendPrivate(f.alice, "", "hello")
	req.ErrorIs(err, chaterr.ErrValidation)
	req.Empty(deliveries)

	// Checked before the target lookup, so an unknown target is not reported.
	deliveries, err = f.router.SendPrivate(f.alice, "dave", "")
	req.ErrorIs(err, chaterr.ErrValidation)
	req.Empty(deliveries)
}

func TestRouter_SendPrivate_AnonymousSenderUsesSessionHandle(t *testing.T) {
	f := newFixture(t)

	deliveries, err := f.router.SendPrivate(f.carol, "alice", "hi")

	require.NoError(t, err)
	require.Equal(t, DirectMessage{From: "s-carol", Message: "hi"}, deliveries[0].Payload)
}

func TestRouter_BroadcastAll_SkipsSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)

	deliveries, err := f.router.BroadcastAll(f.alice, "hello all")

	req.NoError(err)
	req.Len(deliveries, 2)
	for _, d := range deliveries {
		req.NotEqual(f.alice, d.Target)
		req.Equal(EventBroadcastMessage, d.Event)
		req.Equal(DirectMessage{From: "alice", Message: "hello all"}, d.Payload)
	}

	_, err = f.router.BroadcastAll(f.alice, "")
	req.ErrorIs(err, chaterr.ErrValidation)
}

func TestRouter_SendToRoom_IncludesSender(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, err := f.rooms.CreateRoom("team", rooms.Private, "p", f.alice)
	req.NoError(err)
	_, err = f.rooms.JoinRoom("team", "p", f.bob)
	req.NoError(err)

	deliveries, err := f.router.SendToRoom(f.alice, "team", "hi")

	req.NoError(err)
	want := RoomMessage{From: "alice", Room: "team", Message: "hi", Timestamp: fixedTime}
	req.Equal([]Delivery{
		{Target: f.alice, Event: EventRoomMessage, Payload: want},
		{Target: f.bob, Event: EventRoomMessage, Payload: want},
	}, deliveries)
}

func TestRouter_SendToRoom_Failures(t *testing.T) {
	f := newFixture(t)
	_, err := f.rooms.CreateRoom("team", rooms.Public, "", f.alice)
	require.NoError(t, err)

	t.Run("non member", func(t *testing.T) {
		deliveries, err := f.router.SendToRoom(f.bob, "team", "let me in")
		require.ErrorIs(t, err, chaterr.ErrState)
		require.Empty(t, deliveries)
	})

	t.Run("missing room", func(t *testing.T) {
		_, err := f.router.SendToRoom(f.alice, "nowhere", "hi")
		require.ErrorIs(t, err, chaterr.ErrNotFound)
	})

	t.Run("empty message", func(t *testing.T) {
		_, err := f.router.SendToRoom(f.alice, "team", "")
		require.ErrorIs(t, err, chaterr.ErrValidation)
	})
}

func TestRouter_NotifyRoom(t *testing.T) {
	req := require.New(t)
	f := newFixture(t)
	_, err := f.rooms.CreateRoom("lobby", rooms.Public, "", f.alice)
	req.NoError(err)
	_, err = f.rooms.JoinRoom("lobby", "", f.bob)
	req.NoError(err)

	deliveries := f.router.NotifyRoom("lobby", "bob joined", f.bob)

	req.Equal([]Delivery{{
		Target:  f.alice,
		Event:   EventRoomNotification,
		Payload: RoomMessage{From: SystemSender, Room: "lobby", Message: "bob joined", Timestamp: fixedTime},
	}}, deliveries)

	req.Len(f.router.NotifyRoom("lobby", "everyone", ""), 2)
	req.Empty(f.router.NotifyRoom("nowhere", "nobody", ""))
}
