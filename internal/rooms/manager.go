// Package rooms owns the room directory: creation, membership changes and the
// deletion of rooms whose membership drops to zero.
package rooms

import (
	"errors"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
	"golang.org/x/crypto/bcrypt"

	"github.com/Tyrowin/roomchat/internal/chaterr"
	"github.com/Tyrowin/roomchat/internal/presence"
)

// IdentityResolver maps a session to the identity shown to other users.
type IdentityResolver interface {
	ResolveIdentity(session presence.SessionID) string
}

// Option configures a Manager.
type Option func(*Manager)

// WithClock overrides the clock used for room creation timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) {
		if now != nil {
			m.now = now
		}
	}
}

// WithPasswordCost sets the bcrypt cost of private room passwords.
func WithPasswordCost(cost int) Option {
	return func(m *Manager) {
		if cost >= bcrypt.MinCost && cost <= bcrypt.MaxCost {
			m.passwordCost = cost
		}
	}
}

// Manager is the single source of truth for existing rooms.
type Manager struct {
	mu           sync.RWMutex
	rooms        map[string]*room
	identities   IdentityResolver
	now          func() time.Time
	passwordCost int
	compare      func(hash, password []byte) error
}

// NewManager creates an empty room directory. identities is consulted for
// creator names and member listings.
func NewManager(identities IdentityResolver, opts ...Option) *Manager {
	m := &Manager{
		rooms:        make(map[string]*room),
		identities:   identities,
		now:          time.Now,
		passwordCost: bcrypt.DefaultCost,
		compare:      bcrypt.CompareHashAndPassword,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// CreateRoom creates a room with creator as its only member.
func (m *Manager) CreateRoom(name string, visibility Visibility, password string, creator presence.SessionID) (Snapshot, error) {
	const op = "create-room"
	if name == "" {
		return Snapshot{}, chaterr.Validation(op, "room name is required")
	}
	if m.exists(name) {
		return Snapshot{}, chaterr.Conflict(op, "room %q already exists", name)
	}
	if visibility == Private && password == "" {
		return Snapshot{}, chaterr.Validation(op, "private rooms require a password")
	}

	var hash []byte
	if visibility == Private {
		var err error
		if hash, err = m.hashPassword(op, password); err != nil {
			return Snapshot{}, err
		}
	}
	creatorName := m.identities.ResolveIdentity(creator)

	m.mu.Lock()
	defer m.mu.Unlock()

	// The name may have been taken while hashing.
	if _, exists := m.rooms[name]; exists {
		return Snapshot{}, chaterr.Conflict(op, "room %q already exists", name)
	}

	r := &room{
		name:         name,
		creator:      creatorName,
		createdAt:    m.now(),
		visibility:   visibility,
		passwordHash: hash,
		members:      []presence.SessionID{creator},
	}
	m.rooms[name] = r
	return r.snapshot(), nil
}

func (m *Manager) exists(name string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.rooms[name]
	return ok
}

// JoinRoom adds session to an existing room. The password of a private room
// is checked without holding the directory lock.
func (m *Manager) JoinRoom(name, password string, session presence.SessionID) (Snapshot, error) {
	const op = "join-room"
	if name == "" {
		return Snapshot{}, chaterr.Validation(op, "room name is required")
	}

	for {
		m.mu.RLock()
		r, ok := m.rooms[name]
		var hash []byte
		if ok && r.visibility == Private {
			hash = slices.Clone(r.passwordHash)
		}
		m.mu.RUnlock()

		if !ok {
			return Snapshot{}, chaterr.NotFound(op, "room %q does not exist", name)
		}
		if hash != nil && m.compare(hash, []byte(password)) != nil {
			return Snapshot{}, chaterr.Authorization(op, "wrong password for room %q", name)
		}

		snapshot, retry, err := m.admit(op, r, session)
		if !retry {
			return snapshot, err
		}
	}
}

// admit adds session to r if r is still the room registered under its name.
// It reports retry when the room was deleted or replaced after the password
// check.
func (m *Manager) admit(op string, r *room, session presence.SessionID) (Snapshot, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if current, ok := m.rooms[r.name]; !ok || current != r {
		return Snapshot{}, true, nil
	}
	if r.has(session) {
		return Snapshot{}, false, chaterr.Conflict(op, "already a member of room %q", r.name)
	}
	r.members = append(r.members, session)
	return r.snapshot(), false, nil
}

// LeaveRoom removes session from a room, deleting the room once nobody is
// left in it.
func (m *Manager) LeaveRoom(name string, session presence.SessionID) (Departure, error) {
	const op = "leave-room"
	if name == "" {
		return Departure{}, chaterr.Validation(op, "room name is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.rooms[name]
	if !ok {
		return Departure{}, chaterr.NotFound(op, "room %q does not exist", name)
	}
	if !r.has(session) {
		return Departure{}, chaterr.State(op, "not a member of room %q", name)
	}
	return m.depart(r, session), nil
}

// depart must be called with m.mu held and session a member of r.
func (m *Manager) depart(r *room, session presence.SessionID) Departure {
	r.remove(session)
	remaining := make([]presence.SessionID, len(r.members))
	copy(remaining, r.members)
	d := Departure{Room: r.name, Remaining: remaining}
	if len(r.members) == 0 {
		delete(m.rooms, r.name)
		d.Deleted = true
	}
	return d
}

// RemoveSessionFromAllRooms drops session from every room it belongs to and
// reports one Departure per affected room, ordered by room name.
func (m *Manager) RemoveSessionFromAllRooms(session presence.SessionID) []Departure {
	m.mu.Lock()
	defer m.mu.Unlock()

	var departures []Departure
	for _, r := range m.rooms {
		if r.has(session) {
			departures = append(departures, m.depart(r, session))
		}
	}
	slices.SortFunc(departures, func(a, b Departure) int { return strings.Compare(a.Room, b.Room) })
	return departures
}

// ListPublicRooms returns a snapshot of every public room, sorted by name.
func (m *Manager) ListPublicRooms() []Summary {
	m.mu.RLock()
	defer m.mu.RUnlock()

	public := lo.Filter(lo.Values(m.rooms), func(r *room, _ int) bool { return r.visibility == Public })
	summaries := lo.Map(public, func(r *room, _ int) Summary {
		return Summary{Name: r.name, Creator: r.creator, Members: len(r.members), CreatedAt: r.createdAt}
	})
	slices.SortFunc(summaries, func(a, b Summary) int { return strings.Compare(a.Name, b.Name) })
	return summaries
}

// GetMembers lists the identities of a room's members in join order. Only
// members may list a room.
func (m *Manager) GetMembers(name string, requester presence.SessionID) ([]string, error) {
	const op = "room-members"
	if name == "" {
		return nil, chaterr.Validation(op, "room name is required")
	}

	m.mu.RLock()
	r, ok := m.rooms[name]
	if !ok {
		m.mu.RUnlock()
		return nil, chaterr.NotFound(op, "room %q does not exist", name)
	}
	if !r.has(requester) {
		m.mu.RUnlock()
		return nil, chaterr.Authorization(op, "no access to room %q", name)
	}
	members := slices.Clone(r.members)
	m.mu.RUnlock()

	// Identities are resolved outside the directory lock so the registry lock
	// is never taken while holding it.
	return lo.Map(members, func(s presence.SessionID, _ int) string {
		return m.identities.ResolveIdentity(s)
	}), nil
}

// Members returns a copy of a room's member sessions in join order.
func (m *Manager) Members(name string) ([]presence.SessionID, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[name]
	if !ok {
		return nil, false
	}
	return slices.Clone(r.members), true
}

// Snapshot returns the current attributes of a room.
func (m *Manager) Snapshot(name string) (Snapshot, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	r, ok := m.rooms[name]
	if !ok {
		return Snapshot{}, false
	}
	return r.snapshot(), true
}

// Len returns the number of existing rooms.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.rooms)
}

func (m *Manager) hashPassword(op, password string) ([]byte, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), m.passwordCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, chaterr.Validation(op, "password must be at most 72 bytes")
	}
	if err != nil {
		return nil, chaterr.Internal(op, "hash password: %v", err)
	}
	return hash, nil
}
