package gateway

import "github.com/Tyrowin/roomchat/internal/rooms"

// shorthand is implemented by payloads that may also arrive as a bare JSON
// string holding their single required field.
type shorthand interface {
	setShorthand(value string)
}

type RegisterPayload struct {
	Identity string `json:"identity" validate:"required"`
}

func (p *RegisterPayload) setShorthand(value string) { p.Identity = value }

type CreateRoomPayload struct {
	Name      string `json:"name" validate:"required"`
	IsPrivate bool   `json:"isPrivate"`
	Password  string `json:"password"`
}

type JoinRoomPayload struct {
	Room     string `json:"room" validate:"required"`
	Password string `json:"password"`
}

type LeaveRoomPayload struct {
	Room string `json:"room" validate:"required"`
}

func (p *LeaveRoomPayload) setShorthand(value string) { p.Room = value }

type RoomMembersPayload struct {
	Room string `json:"room" validate:"required"`
}

func (p *RoomMembersPayload) setShorthand(value string) { p.Room = value }

type SendToUserPayload struct {
	ToIdentity string `json:"toIdentity" validate:"required"`
	Message    string `json:"message" validate:"required"`
}

type SendToAllPayload struct {
	Message string `json:"message" validate:"required"`
}

func (p *SendToAllPayload) setShorthand(value string) { p.Message = value }

type SendToRoomPayload struct {
	Room    string `json:"room" validate:"required"`
	Message string `json:"message" validate:"required"`
}

// RoomResult answers create-room and join-room.
type RoomResult struct {
	Success bool           `json:"success"`
	Room    rooms.Snapshot `json:"room"`
}

// LeaveRoomResult answers leave-room.
type LeaveRoomResult struct {
	Success bool   `json:"success"`
	Room    string `json:"room"`
}

// ListRoomsResult answers list-rooms.
type ListRoomsResult struct {
	Success bool            `json:"success"`
	Rooms   []rooms.Summary `json:"rooms"`
}

// RoomMembersResult answers room-members.
type RoomMembersResult struct {
	Success bool     `json:"success"`
	Room    string   `json:"room"`
	Members []string `json:"members"`
}

// SendToRoomResult answers send-to-room.
type SendToRoomResult struct {
	Success bool   `json:"success"`
	Room    string `json:"room"`
	Message string `json:"message"`
}

// RoomJoined is emitted to a session that created or joined a room.
type RoomJoined struct {
	Room     string         `json:"room"`
	Message  string         `json:"message"`
	RoomInfo rooms.Snapshot `json:"roomInfo"`
}

// RoomMembersList is emitted in answer to room-members.
type RoomMembersList struct {
	Room    string   `json:"room"`
	Members []string `json:"members"`
	Count   int      `json:"count"`
}
