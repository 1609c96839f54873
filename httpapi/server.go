// Package httpapi exposes the collaborator REST surface: message
// creation and history, read acknowledgements, unread counts, and push
// subscription registration.
package httpapi

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/gorilla/mux"

	"directory-chat/auth"
	"directory-chat/contract"
	"directory-chat/errors"
	"directory-chat/push"
	"directory-chat/services"
)

type Server struct {
	log      *slog.Logger
	chat     services.IChatService
	subs     push.SubscriptionStore
	validate *validator.Validate
	pageSize int
}

func NewServer(log *slog.Logger, chat services.IChatService, subs push.SubscriptionStore, pageSize int) *Server {
	return &Server{
		log:      log,
		chat:     chat,
		subs:     subs,
		validate: validator.New(),
		pageSize: pageSize,
	}
}

// Router assembles the full routing table. The live channel endpoint is
// mounted unauthenticated: its handshake happens in-band over the
// connection, not via the bearer middleware.
func (s *Server) Router(sessions contract.SessionValidator, live http.Handler) *mux.Router {
	router := mux.NewRouter()
	router.Handle("/ws", live)

	api := router.PathPrefix("/api").Subrouter()
	api.Use(auth.Middleware(sessions))
	api.HandleFunc("/groups/{id:[0-9]+}/messages", s.createMessage).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}/messages", s.listMessages).Methods(http.MethodGet)
	api.HandleFunc("/groups/{id:[0-9]+}/read", s.markGroupRead).Methods(http.MethodPost)
	api.HandleFunc("/groups/{id:[0-9]+}/unread", s.groupUnread).Methods(http.MethodGet)
	api.HandleFunc("/unread", s.globalUnread).Methods(http.MethodGet)
	api.HandleFunc("/push/subscriptions", s.subscribePush).Methods(http.MethodPost)
	api.HandleFunc("/push/subscriptions/{token}", s.unsubscribePush).Methods(http.MethodDelete)
	return router
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status == http.StatusInternalServerError {
		s.log.Error("Request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}
