package rooms

import (
	"slices"
	"time"

	"github.com/Tyrowin/roomchat/internal/presence"
)

// Visibility controls whether a room is listed and whether joining needs a
// password.
type Visibility int

const (
	Public Visibility = iota
	Private
)

func (v Visibility) String() string {
	if v == Private {
		return "private"
	}
	return "public"
}

// VisibilityOf maps the isPrivate flag of the wire protocol.
func VisibilityOf(isPrivate bool) Visibility {
	if isPrivate {
		return Private
	}
	return Public
}

// room is one entry of the directory. passwordHash is set iff the room is
// private and members is never empty while the room is in the directory.
type room struct {
	name         string
	creator      string
	createdAt    time.Time
	visibility   Visibility
	passwordHash []byte
	members      []presence.SessionID
}

func (r *room) has(session presence.SessionID) bool {
	return slices.Contains(r.members, session)
}

func (r *room) remove(session presence.SessionID) {
	r.members = slices.DeleteFunc(r.members, func(s presence.SessionID) bool { return s == session })
}

func (r *room) snapshot() Snapshot {
	return Snapshot{
		Name:      r.name,
		Creator:   r.creator,
		IsPrivate: r.visibility == Private,
		Members:   len(r.members),
		CreatedAt: r.createdAt,
	}
}

// Snapshot is a point-in-time copy of a room's public attributes.
type Snapshot struct {
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	IsPrivate bool      `json:"isPrivate"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Summary is the listing entry of a public room.
type Summary struct {
	Name      string    `json:"name"`
	Creator   string    `json:"creator"`
	Members   int       `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

// Departure describes the effect of a session leaving a room.
type Departure struct {
	Room      string
	Remaining []presence.SessionID
	Deleted   bool
}
