// Package router decides who receives what. It reads the presence registry and
// the room directory but never mutates them: every operation returns the
// deliveries the transport should perform.
package router

import (
	"slices"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/chaterr"
	"github.com/Tyrowin/roomchat/internal/presence"
)

// Outbound event names.
const (
	EventPrivateMessage   = "private-message"
	EventBroadcastMessage = "broadcast-message"
	EventRoomMessage      = "room-message"
	EventRoomNotification = "room-notification"
)

// SystemSender is the author of system-originated room notifications.
const SystemSender = "System"

// Delivery is one instruction for the transport: send Event with Payload to
// Target.
type Delivery struct {
	Target  presence.SessionID
	Event   string
	Payload any
}

// DirectMessage is the payload of private and broadcast messages.
type DirectMessage struct {
	From    string `json:"from"`
	Message string `json:"message"`
}

// RoomMessage is the payload of room messages and room notifications.
type RoomMessage struct {
	From      string    `json:"from"`
	Room      string    `json:"room"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Identities resolves sessions and identities.
type Identities interface {
	ResolveIdentity(session presence.SessionID) string
	ResolveSession(identity string) (presence.SessionID, error)
}

// RoomDirectory exposes room membership.
type RoomDirectory interface {
	Members(name string) ([]presence.SessionID, bool)
}

// ConnectionLister enumerates every live connection, registered or not.
type ConnectionLister interface {
	ConnectedSessions() []presence.SessionID
}

// Router resolves message targets.
type Router struct {
	identities  Identities
	rooms       RoomDirectory
	connections ConnectionLister
	now         func() time.Time
}

// Option configures a Router.
type Option func(*Router)

// WithClock overrides the clock used for message timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Router) {
		if now != nil {
			r.now = now
		}
	}
}

// New creates a Router over the given stores.
func New(identities Identities, rooms RoomDirectory, connections ConnectionLister, opts ...Option) *Router {
	r := &Router{
		identities:  identities,
		rooms:       rooms,
		connections: connections,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SendPrivate addresses message to the session bound to toIdentity. The
// sender never receives a copy.
func (r *Router) SendPrivate(from presence.SessionID, toIdentity, message string) ([]Delivery, error) {
	const op = "send-to-user"
	if toIdentity == "" {
		return nil, chaterr.Validation(op, "target user is required")
	}
	if message == "" {
		return nil, chaterr.Validation(op, "message is required")
	}

	target, err := r.identities.ResolveSession(toIdentity)
	if err != nil {
		return nil, chaterr.NotFound(op, "user %q is not connected", toIdentity)
	}

	payload := DirectMessage{From: r.identities.ResolveIdentity(from), Message: message}
	return []Delivery{{Target: target, Event: EventPrivateMessage, Payload: payload}}, nil
}

// BroadcastAll addresses message to every connected session except the
// sender.
func (r *Router) BroadcastAll(from presence.SessionID, message string) ([]Delivery, error) {
	if message == "" {
		return nil, chaterr.Validation("send-to-all", "message is required")
	}

	payload := DirectMessage{From: r.identities.ResolveIdentity(from), Message: message}
	targets := lo.Without(r.connections.ConnectedSessions(), from)
	return fanOut(targets, EventBroadcastMessage, payload), nil
}

// SendToRoom addresses message to every member of room, sender included.
// Only members may post.
func (r *Router) SendToRoom(from presence.SessionID, room, message string) ([]Delivery, error) {
	const op = "send-to-room"
	if room == "" || message == "" {
		return nil, chaterr.Validation(op, "room and message are required")
	}

	members, ok := r.rooms.Members(room)
	if !ok {
		return nil, chaterr.NotFound(op, "room %q does not exist", room)
	}
	if !slices.Contains(members, from) {
		return nil, chaterr.State(op, "not a member of room %q", room)
	}

	payload := RoomMessage{
		From:      r.identities.ResolveIdentity(from),
		Room:      room,
		Message:   message,
		Timestamp: r.now(),
	}
	return fanOut(members, EventRoomMessage, payload), nil
}

// NotifyRoom addresses a system notification to the current members of room,
// skipping exclude when it is non-empty. Absent rooms produce no deliveries.
func (r *Router) NotifyRoom(room, text string, exclude presence.SessionID) []Delivery {
	members, ok := r.rooms.Members(room)
	if !ok {
		return nil
	}
	if exclude != "" {
		members = lo.Without(members, exclude)
	}

	payload := RoomMessage{
		From:      SystemSender,
		Room:      room,
		Message:   text,
		Timestamp: r.now(),
	}
	return fanOut(members, EventRoomNotification, payload)
}

func fanOut(targets []presence.SessionID, event string, payload any) []Delivery {
	return lo.Map(targets, func(target presence.SessionID, _ int) Delivery {
		return Delivery{Target: target, Event: event, Payload: payload}
	})
}
