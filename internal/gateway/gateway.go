// Package gateway is the facade between a transport and the presence, room
// and routing components. It owns one instance of each, serializes every
// operation behind a single lock and hands the resulting deliveries to an
// Emitter.
package gateway

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/chaterr"
	"github.com/Tyrowin/roomchat/internal/presence"
	"github.com/Tyrowin/roomchat/internal/rooms"
	"github.com/Tyrowin/roomchat/internal/router"
)

// Option configures a Gateway.
type Option func(*options)

type options struct {
	now          func() time.Time
	passwordCost int
}

// WithClock overrides the clock used for room creation and message
// timestamps.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

// WithPasswordCost sets the bcrypt cost of private room passwords.
func WithPasswordCost(cost int) Option {
	return func(o *options) { o.passwordCost = cost }
}

// Gateway holds the state of one chat server instance.
type Gateway struct {
	mu       sync.Mutex
	registry *presence.Registry
	rooms    *rooms.Manager
	router   *router.Router
	emitter  Emitter
	logger   *slog.Logger
	validate *validator.Validate
	handlers map[string]handlerFunc
}

// New creates a Gateway with empty state. emitter performs deliveries and
// connections lists the live sessions used for global broadcasts.
func New(emitter Emitter, connections ConnectionLister, logger *slog.Logger, opts ...Option) *Gateway {
	if logger == nil {
		logger = slog.Default()
	}
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	registry := presence.NewRegistry()
	roomOpts := []rooms.Option{rooms.WithClock(o.now)}
	if o.passwordCost > 0 {
		roomOpts = append(roomOpts, rooms.WithPasswordCost(o.passwordCost))
	}
	manager := rooms.NewManager(registry, roomOpts...)

	return &Gateway{
		registry: registry,
		rooms:    manager,
		router:   router.New(registry, manager, connections, router.WithClock(o.now)),
		emitter:  emitter,
		logger:   logger,
		validate: newValidator(),
		handlers: dispatchTable(),
	}
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name, _, _ := strings.Cut(field.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// Events lists the inbound event names the gateway understands.
func (g *Gateway) Events() []string {
	events := lo.Keys(g.handlers)
	slices.Sort(events)
	return events
}

// Handle runs the handler registered for event on behalf of session. The
// returned error is meant for the requesting session only.
func (g *Gateway) Handle(session presence.SessionID, event string, data json.RawMessage) (result any, err error) {
	handler, ok := g.handlers[event]
	if !ok {
		g.logger.Warn("unknown event", "event", event, "session", session)
		return nil, chaterr.Validation(event, "unknown event %q", event)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("handler panicked", "event", event, "session", session, "panic", r)
			result, err = nil, chaterr.Internal(event, "unexpected failure")
		}
	}()

	result, err = handler(g, session, data)
	if err != nil {
		g.logger.Warn("operation failed",
			"event", event,
			"session", session,
			"kind", chaterr.KindOf(err).String(),
			"error", err,
		)
	}
	return result, err
}

// OnConnect records a new connection. It changes no state.
func (g *Gateway) OnConnect(session presence.SessionID) {
	g.logger.Info("client connected", "session", session)
}

// OnDisconnect releases everything held by session: its identity binding and
// its room memberships. Remaining members of every affected room are told.
// The whole cascade runs under the gateway lock.
func (g *Gateway) OnDisconnect(session presence.SessionID) {
	g.mu.Lock()
	defer g.mu.Unlock()

	identity := g.registry.ResolveIdentity(session)
	g.registry.Unregister(session)
	departures := g.rooms.RemoveSessionFromAllRooms(session)

	for _, d := range departures {
		if d.Deleted {
			g.logger.Info("room deleted", "room", d.Room, "reason", "empty")
			continue
		}
		text := fmt.Sprintf("User %s left the room (disconnected)", identity)
		g.deliver(g.router.NotifyRoom(d.Room, text, ""))
	}

	g.logger.Info("client disconnected", "session", session, "identity", identity, "rooms", len(departures))
}

// Identity returns the identity bound to session, or the session handle when
// none is bound.
func (g *Gateway) Identity(session presence.SessionID) string {
	return g.registry.ResolveIdentity(session)
}

// PublicRooms returns the current public room listing.
func (g *Gateway) PublicRooms() []rooms.Summary {
	return g.rooms.ListPublicRooms()
}

func (g *Gateway) deliver(deliveries []router.Delivery) {
	for _, d := range deliveries {
		g.emit(d.Target, d.Event, d.Payload)
	}
}

// emit hands one event to the emitter. State has already changed when emit
// runs, so an emitter panic is logged and does not fail the operation.
func (g *Gateway) emit(session presence.SessionID, event string, payload any) {
	defer func() {
		if r := recover(); r != nil {
			g.logger.Error("emitter panicked", "event", event, "session", session, "panic", r)
		}
	}()
	g.emitter.Emit(session, event, payload)
}

// decode fills dst from data and validates it. A bare JSON string is accepted
// for payloads with a single required field.
func (g *Gateway) decode(op string, data json.RawMessage, dst any) error {
	raw := bytes.TrimSpace(data)
	switch {
	case len(raw) == 0 || bytes.Equal(raw, []byte("null")):
	case raw[0] == '"':
		short, ok := dst.(shorthand)
		if !ok {
			return chaterr.Validation(op, "payload must be an object")
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return chaterr.Validation(op, "malformed payload")
		}
		short.setShorthand(value)
	default:
		if err := json.Unmarshal(raw, dst); err != nil {
			return chaterr.Validation(op, "malformed payload")
		}
	}

	if err := g.validate.Struct(dst); err != nil {
		return fieldError(op, err)
	}
	return nil
}

func fieldError(op string, err error) error {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		if fe.Tag() == "required" {
			return chaterr.Validation(op, "%s is required", fe.Field())
		}
		return chaterr.Validation(op, "%s is invalid", fe.Field())
	}
	return chaterr.Validation(op, "invalid payload")
}
