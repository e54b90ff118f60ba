package api

import (
	"net/http"

	"github.com/gorilla/mux"
)

// Routes mounts the REST surface on a fresh mux router. The websocket
// endpoint is attached by the caller so this package stays free of
// transport concerns beyond HTTP.
func (h *Handler) Routes() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/api/register", h.Register).Methods(http.MethodPost)
	r.HandleFunc("/api/login", h.Login).Methods(http.MethodPost)

	r.HandleFunc("/api/conversation", h.CreateConversation).Methods(http.MethodPost)
	r.HandleFunc("/api/conversations/{userId}", h.ListConversations).Methods(http.MethodGet)

	r.HandleFunc("/api/message", h.SendMessage).Methods(http.MethodPost)
	r.HandleFunc("/api/message/{conversationId}", h.GetMessages).Methods(http.MethodGet)

	r.HandleFunc("/api/users/{userId}", h.ListUsers).Methods(http.MethodGet)
	r.HandleFunc("/api/search", h.Search).Methods(http.MethodGet)

	return r
}
