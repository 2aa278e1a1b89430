package server

import (
	"net/http"

	"github.com/gorilla/mux"
)

// SetupRoutes registers the health check, the WebSocket endpoint, the test
// page and the public room listing.
func (s *Server) SetupRoutes() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/", HealthHandler)
	r.HandleFunc("/ws", s.WebSocketHandler).Methods(http.MethodGet)
	r.HandleFunc("/test", s.TestPageHandler).Methods(http.MethodGet)
	r.HandleFunc("/rooms", s.RoomsHandler).Methods(http.MethodGet)
	return r
}
