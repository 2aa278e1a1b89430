//go:generate go run go.uber.org/mock/mockgen -source=emitter.go -destination=../mocks/mock_emitter.go -package=mocks
package gateway

import "github.com/Tyrowin/roomchat/internal/presence"

// Emitter delivers one event to one live session. Implementations must not
// block: delivery is fire-and-forget.
type Emitter interface {
	Emit(session presence.SessionID, event string, payload any)
}

// ConnectionLister enumerates every live connection, registered or not.
type ConnectionLister interface {
	ConnectedSessions() []presence.SessionID
}
