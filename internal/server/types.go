package server

import (
	"encoding/json"
	"strings"

	"github.com/Tyrowin/roomchat/internal/chaterr"
)

// Reply event names.
const (
	EventAck       = "ack"
	EventException = "exception"
)

// Envelope is an inbound frame. ID is optional and echoed in the reply.
type Envelope struct {
	Event string          `json:"event"`
	ID    *uint64         `json:"id,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

// Frame is an outbound frame.
type Frame struct {
	Event string  `json:"event"`
	ID    *uint64 `json:"id,omitempty"`
	Data  any     `json:"data,omitempty"`
}

// ErrorBody is the data of an exception frame.
type ErrorBody struct {
	Status  string `json:"status"`
	Kind    string `json:"kind"`
	Event   string `json:"event,omitempty"`
	Message string `json:"message"`
}

func exceptionFrame(env Envelope, err error) Frame {
	return Frame{
		Event: EventException,
		ID:    env.ID,
		Data: ErrorBody{
			Status:  "error",
			Kind:    chaterr.KindOf(err).String(),
			Event:   env.Event,
			Message: chaterr.MessageOf(err),
		},
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
