package gateway

import (
	"encoding/json"
	"fmt"

	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/rooms"
)

// Inbound event names.
const (
	EventRegister    = "register"
	EventCreateRoom  = "create-room"
	EventJoinRoom    = "join-room"
	EventLeaveRoom   = "leave-room"
	EventListRooms   = "list-rooms"
	EventRoomMembers = "room-members"
	EventSendToUser  = "send-to-user"
	EventSendToAll   = "send-to-all"
	EventSendToRoom  = "send-to-room"
)

// Outbound event names emitted by the gateway itself. Message events are
// named in the router package.
const (
	EventRoomJoined      = "room-joined"
	EventRoomList        = "room-list"
	EventRoomMembersList = "room-members-list"
)

type handlerFunc func(g *Gateway, session presence.SessionID, data json.RawMessage) (any, error)

func dispatchTable() map[string]handlerFunc {
	return map[string]handlerFunc{
		EventRegister:    (*Gateway).register,
		EventCreateRoom:  (*Gateway).createRoom,
		EventJoinRoom:    (*Gateway).joinRoom,
		EventLeaveRoom:   (*Gateway).leaveRoom,
		EventListRooms:   (*Gateway).listRooms,
		EventRoomMembers: (*Gateway).roomMembers,
		EventSendToUser:  (*Gateway).sendToUser,
		EventSendToAll:   (*Gateway).sendToAll,
		EventSendToRoom:  (*Gateway).sendToRoom,
	}
}

func (g *Gateway) register(session presence.SessionID, data json.RawMessage) (any, error) {
	var p RegisterPayload
	if err := g.decode(EventRegister, data, &p); err != nil {
		return nil, err
	}
	if err := g.registry.Register(session, p.Identity); err != nil {
		return nil, err
	}
	g.logger.Info("user registered", "identity", p.Identity, "session", session)
	return nil, nil
}

func (g *Gateway) createRoom(session presence.SessionID, data json.RawMessage) (any, error) {
	var p CreateRoomPayload
	if err := g.decode(EventCreateRoom, data, &p); err != nil {
		return nil, err
	}
	snapshot, err := g.rooms.CreateRoom(p.Name, rooms.VisibilityOf(p.IsPrivate), p.Password, session)
	if err != nil {
		return nil, err
	}
	g.logger.Info("room created", "room", snapshot.Name, "creator", snapshot.Creator, "private", snapshot.IsPrivate)

	g.emit(session, EventRoomJoined, RoomJoined{
		Room:     snapshot.Name,
		Message:  fmt.Sprintf("Room %s created and joined", snapshot.Name),
		RoomInfo: snapshot,
	})
	return RoomResult{Success: true, Room: snapshot}, nil
}

func (g *Gateway) joinRoom(session presence.SessionID, data json.RawMessage) (any, error) {
	var p JoinRoomPayload
	if err := g.decode(EventJoinRoom, data, &p); err != nil {
		return nil, err
	}
	snapshot, err := g.rooms.JoinRoom(p.Room, p.Password, session)
	if err != nil {
		return nil, err
	}
	identity := g.registry.ResolveIdentity(session)
	g.logger.Info("room joined", "room", snapshot.Name, "identity", identity, "members", snapshot.Members)

	g.emit(session, EventRoomJoined, RoomJoined{
		Room:     snapshot.Name,
		Message:  fmt.Sprintf("Joined room %s", snapshot.Name),
		RoomInfo: snapshot,
	})
	g.deliver(g.router.NotifyRoom(snapshot.Name, fmt.Sprintf("User %s joined the room", identity), session))
	return RoomResult{Success: true, Room: snapshot}, nil
}

func (g *Gateway) leaveRoom(session presence.SessionID, data json.RawMessage) (any, error) {
	var p LeaveRoomPayload
	if err := g.decode(EventLeaveRoom, data, &p); err != nil {
		return nil, err
	}
	departure, err := g.rooms.LeaveRoom(p.Room, session)
	if err != nil {
		return nil, err
	}
	identity := g.registry.ResolveIdentity(session)
	g.logger.Info("room left", "room", departure.Room, "identity", identity, "members", len(departure.Remaining))

	if departure.Deleted {
		g.logger.Info("room deleted", "room", departure.Room, "reason", "empty")
	} else {
		g.deliver(g.router.NotifyRoom(departure.Room, fmt.Sprintf("User %s left the room", identity), session))
	}
	return LeaveRoomResult{Success: true, Room: departure.Room}, nil
}

func (g *Gateway) listRooms(session presence.SessionID, _ json.RawMessage) (any, error) {
	public := g.rooms.ListPublicRooms()
	g.emit(session, EventRoomList, public)
	return ListRoomsResult{Success: true, Rooms: public}, nil
}

func (g *Gateway) roomMembers(session presence.SessionID, data json.RawMessage) (any, error) {
	var p RoomMembersPayload
	if err := g.decode(EventRoomMembers, data, &p); err != nil {
		return nil, err
	}
	members, err := g.rooms.GetMembers(p.Room, session)
	if err != nil {
		return nil, err
	}
	g.emit(session, EventRoomMembersList, RoomMembersList{Room: p.Room, Members: members, Count: len(members)})
	return RoomMembersResult{Success: true, Room: p.Room, Members: members}, nil
}

func (g *Gateway) sendToUser(session presence.SessionID, data json.RawMessage) (any, error) {
	var p SendToUserPayload
	if err := g.decode(EventSendToUser, data, &p); err != nil {
		return nil, err
	}
	deliveries, err := g.router.SendPrivate(session, p.ToIdentity, p.Message)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("private message", "from", g.registry.ResolveIdentity(session), "to", p.ToIdentity)
	g.deliver(deliveries)
	return nil, nil
}

func (g *Gateway) sendToAll(session presence.SessionID, data json.RawMessage) (any, error) {
	var p SendToAllPayload
	if err := g.decode(EventSendToAll, data, &p); err != nil {
		return nil, err
	}
	deliveries, err := g.router.BroadcastAll(session, p.Message)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("broadcast", "from", g.registry.ResolveIdentity(session), "targets", len(deliveries))
	g.deliver(deliveries)
	return nil, nil
}

func (g *Gateway) sendToRoom(session presence.SessionID, data json.RawMessage) (any, error) {
	var p SendToRoomPayload
	if err := g.decode(EventSendToRoom, data, &p); err != nil {
		return nil, err
	}
	deliveries, err := g.router.SendToRoom(session, p.Room, p.Message)
	if err != nil {
		return nil, err
	}
	g.logger.Debug("room message", "room", p.Room, "from", g.registry.ResolveIdentity(session), "targets", len(deliveries))
	g.deliver(deliveries)
	return SendToRoomResult{Success: true, Room: p.Room, Message: p.Message}, nil
}
