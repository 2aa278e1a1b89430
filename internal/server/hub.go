package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/Tyrowin/roomchat/internal/gateway"
	"github.com/Tyrowin/roomchat/internal/presence"
)

type inboundEvent struct {
	client   *Client
	envelope Envelope
}

// Hub owns every live connection and is the single place where inbound
// events are dispatched to the gateway. It implements gateway.Emitter and
// gateway.ConnectionLister for the gateway it drives.
type Hub struct {
	cfg        Config
	logger     *slog.Logger
	gateway    *gateway.Gateway
	clients    map[presence.SessionID]*Client
	register   chan *Client
	unregister chan *Client
	inbound    chan inboundEvent
	mutex      sync.RWMutex
	dropMu     sync.Mutex
	dropped    []*Client
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
}

// NewHub creates a Hub and the gateway behind it. The returned Hub is ready
// once Run has been started.
func NewHub(cfg Config, logger *slog.Logger, opts ...gateway.Option) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Hub{
		cfg:        cfg.sanitize(),
		logger:     logger,
		clients:    make(map[presence.SessionID]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		inbound:    make(chan inboundEvent),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
	}
	gwOpts := append([]gateway.Option{gateway.WithPasswordCost(h.cfg.PasswordCost)}, opts...)
	h.gateway = gateway.New(h, h, logger, gwOpts...)
	return h
}

// Gateway returns the gateway driven by the hub.
func (h *Hub) Gateway() *gateway.Gateway {
	return h.gateway
}

// ClientCount returns the number of live connections.
func (h *Hub) ClientCount() int {
	h.mutex.RLock()
	defer h.mutex.RUnlock()
	return len(h.clients)
}

// ConnectedSessions returns the session handles of all live connections.
func (h *Hub) ConnectedSessions() []presence.SessionID {
	h.mutex.RLock()
	sessions := lo.Keys(h.clients)
	h.mutex.RUnlock()
	slices.Sort(sessions)
	return sessions
}

// Emit queues event for session. It never blocks: a connection whose buffer
// is full is dropped once the current event has been handled.
func (h *Hub) Emit(session presence.SessionID, event string, payload any) {
	h.mutex.RLock()
	client, ok := h.clients[session]
	h.mutex.RUnlock()
	if !ok {
		return
	}
	h.reply(client, Frame{Event: event, Data: payload})
}

// reply encodes frame and queues it for client.
func (h *Hub) reply(client *Client, frame Frame) {
	message, err := json.Marshal(frame)
	if err != nil {
		h.logger.Error("encode frame", "event", frame.Event, "error", err)
		return
	}
	if !h.safeSend(client, message) {
		h.markDropped(client)
	}
}

func (h *Hub) safeSend(client *Client, message []byte) bool {
	defer func() {
		if r := recover(); r != nil {
			h.logger.Error("recovered from panic in safeSend", "panic", r)
		}
	}()

	// Hold the lock during the entire send so the channel cannot be closed underneath.
	h.mutex.RLock()
	defer h.mutex.RUnlock()

	if current, exists := h.clients[client.session]; !exists || current != client || client.closed {
		return false
	}

	select {
	case client.send <- message:
		return true
	default:
		return false
	}
}

func (h *Hub) markDropped(client *Client) {
	h.dropMu.Lock()
	defer h.dropMu.Unlock()
	if !slices.Contains(h.dropped, client) {
		h.dropped = append(h.dropped, client)
	}
}

// reapDropped disconnects every client whose send buffer overflowed. The
// disconnect cascade may overflow further buffers, so it loops until idle.
func (h *Hub) reapDropped() {
	for {
		h.dropMu.Lock()
		batch := h.dropped
		h.dropped = nil
		h.dropMu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, client := range batch {
			if h.disconnect(client) {
				client.logger.Warn("client removed due to full send buffer")
			}
		}
	}
}

// Run starts the hub's main event loop. It should be called in a separate
// goroutine and returns once Shutdown is called.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			if client == nil {
				h.logger.Warn("received nil client registration; skipping")
				continue
			}
			h.attach(client)
			h.startPumps(client)

		case client := <-h.unregister:
			h.disconnect(client)
			h.reapDropped()

		case in := <-h.inbound:
			h.dispatch(in.client, in.envelope)
			h.reapDropped()
		}
	}
}

// attach records client as live and tells the gateway.
func (h *Hub) attach(client *Client) {
	h.mutex.Lock()
	client.closed = false
	h.clients[client.session] = client
	clientCount := len(h.clients)
	h.mutex.Unlock()

	h.gateway.OnConnect(client.session)
	client.logger.Info("client registered", "clients", clientCount)
}

func (h *Hub) startPumps(client *Client) {
	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// dispatch runs one inbound event and replies to its sender with an ack or
// an exception. Events without an id get no ack.
func (h *Hub) dispatch(client *Client, env Envelope) {
	h.mutex.RLock()
	_, live := h.clients[client.session]
	h.mutex.RUnlock()
	if !live {
		return
	}

	result, err := h.gateway.Handle(client.session, env.Event, env.Data)
	if err != nil {
		h.reply(client, exceptionFrame(env, err))
		return
	}
	if env.ID != nil {
		h.reply(client, Frame{Event: EventAck, ID: env.ID, Data: result})
	}
}

// disconnect removes client and runs the gateway's disconnect cascade. It
// reports whether the client was still live.
func (h *Hub) disconnect(client *Client) bool {
	h.mutex.Lock()
	current, ok := h.clients[client.session]
	if !ok || current != client {
		h.mutex.Unlock()
		return false
	}
	delete(h.clients, client.session)
	client.closed = true
	clientCount := len(h.clients)
	h.mutex.Unlock()

	// Close the channel after releasing the lock.
	close(client.send)
	h.gateway.OnDisconnect(client.session)
	client.logger.Info("client unregistered", "clients", clientCount)
	return true
}

// shutdownClients closes every live connection. The gateway state is
// discarded with the process, so no disconnect cascade runs.
func (h *Hub) shutdownClients() {
	h.logger.Info("shutting down all client connections")

	h.mutex.Lock()
	clients := lo.Values(h.clients)
	for _, client := range clients {
		client.closed = true
		close(client.send)
	}
	clear(h.clients)
	h.mutex.Unlock()

	for _, client := range clients {
		if client.conn == nil {
			continue
		}
		if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
			client.logger.Warn("close client connection", "error", err)
		}
	}

	h.logger.Info("closed client connections", "count", len(clients))
}

// Shutdown initiates graceful shutdown of the hub and waits for all goroutines to complete.
// It returns after all client connections are closed and goroutines have finished,
// or when the timeout is reached.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.logger.Info("initiating hub shutdown")

	h.cancel()
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case <-h.done:
	case <-deadline.C:
		h.logger.Warn("hub shutdown timeout reached before the event loop stopped")
		return context.DeadlineExceeded
	}

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		h.logger.Info("hub shutdown completed")
		return nil
	case <-deadline.C:
		h.logger.Warn("hub shutdown timeout reached, some goroutines may still be running")
		return context.DeadlineExceeded
	}
}
