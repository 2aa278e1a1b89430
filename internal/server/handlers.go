package server

import (
	"encoding/json"
	"fmt"
	"net/http"
)

// WebSocketHandler upgrades the request, creates a Client with a fresh
// session handle and hands it to the hub, which launches the pumps.
func (s *Server) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "addr", r.RemoteAddr, "error", err)
		return
	}

	client := NewClient(conn, s.hub, r.RemoteAddr)

	select {
	case s.hub.register <- client:
	case <-s.hub.ctx.Done():
		_ = conn.Close()
	}
}

// HealthHandler provides a simple health check endpoint that returns server status.
func HealthHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = fmt.Fprint(w, "Room chat server is running!")
}

// RoomsHandler lists public rooms as JSON.
func (s *Server) RoomsHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	body := struct {
		Rooms any `json:"rooms"`
	}{Rooms: s.hub.Gateway().PublicRooms()}
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Warn("write rooms response", "error", err)
	}
}

// TestPageHandler serves an HTML page for exercising the event protocol by hand.
func (s *Server) TestPageHandler(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/html")
	if _, err := fmt.Fprint(w, testPage); err != nil {
		s.logger.Warn("write HTML response", "error", err)
	}
}

const testPage = `<!DOCTYPE html>
<html>
<head>
    <title>Room Chat Test</title>
    <style>
        body { font-family: Arial, sans-serif; margin: 20px; }
        #messages { border: 1px solid #ccc; height: 300px; padding: 10px; overflow-y: scroll; margin: 10px 0; background-color: #f9f9f9; font-family: monospace; }
        input[type="text"] { width: 400px; padding: 5px; margin-right: 10px; }
        select, button { padding: 5px 10px; }
        .connected { color: #155724; }
        .disconnected { color: #721c24; }
    </style>
</head>
<body>
    <h1>Room Chat Test</h1>
    <div id="status" class="disconnected">Disconnected</div>
    <div>
        <button id="connectButton" onclick="toggleConnection()">Connect</button>
    </div>
    <div>
        <select id="event">
            <option>register</option>
            <option>create-room</option>
            <option>join-room</option>
            <option>leave-room</option>
            <option>list-rooms</option>
            <option>room-members</option>
            <option>send-to-user</option>
            <option>send-to-all</option>
            <option>send-to-room</option>
        </select>
        <input type="text" id="data" placeholder='{"identity":"alice"}'>
        <button onclick="sendEvent()">Send</button>
    </div>
    <div id="messages"></div>
    <script>
        let ws = null;
        let nextId = 1;
        const messagesDiv = document.getElementById('messages');
        const statusDiv = document.getElementById('status');

        function addLine(prefix, text) {
            const line = document.createElement('div');
            line.textContent = prefix + ' ' + text;
            messagesDiv.appendChild(line);
            messagesDiv.scrollTop = messagesDiv.scrollHeight;
        }

        function setStatus(connected) {
            statusDiv.textContent = connected ? 'Connected' : 'Disconnected';
            statusDiv.className = connected ? 'connected' : 'disconnected';
            document.getElementById('connectButton').textContent = connected ? 'Disconnect' : 'Connect';
        }

        function toggleConnection() {
            if (ws && ws.readyState === WebSocket.OPEN) {
                ws.close();
                return;
            }
            const scheme = location.protocol === 'https:' ? 'wss://' : 'ws://';
            ws = new WebSocket(scheme + location.host + '/ws');
            ws.onopen = () => { addLine('--', 'connected'); setStatus(true); };
            ws.onmessage = (e) => addLine('<<', e.data);
            ws.onclose = () => { addLine('--', 'closed'); setStatus(false); ws = null; };
        }

        function sendEvent() {
            if (!ws || ws.readyState !== WebSocket.OPEN) return;
            const raw = document.getElementById('data').value.trim();
            const frame = { event: document.getElementById('event').value, id: nextId++ };
            if (raw) {
                try { frame.data = JSON.parse(raw); } catch (e) { frame.data = raw; }
            }
            const text = JSON.stringify(frame);
            ws.send(text);
            addLine('>>', text);
        }
    </script>
</body>
</html>`
