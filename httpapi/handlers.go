package httpapi

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/samber/lo"

	"directory-chat/auth"
	"directory-chat/domain"
)

type createMessageRequest struct {
	Content string `json:"content" validate:"required"`
}

type subscribeRequest struct {
	Token    string `json:"token" validate:"required"`
	Platform string `json:"platform" validate:"required"`
}

type listMessagesResponse struct {
	Messages []domain.Message `json:"messages"`
	Total    int              `json:"total"`
}

type countResponse struct {
	Count int `json:"count"`
}

// createMessage persists a message and triggers both dispatchers. A
// 201 here means durably stored; fan-out outcome is invisible by design.
func (s *Server) createMessage(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := s.identify(w, r)
	if !ok {
		return
	}
	var req createMessageRequest
	if !s.decode(w, r, &req) {
		return
	}

	message, err := s.chat.CreateMessage(r.Context(), groupID, userID, req.Content)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, message)
}

// listMessages serves the most recent page: newest first, paginated
// from the tail of the ascending log. Direction is presentation only;
// the store contract stays ascending.
func (s *Server) listMessages(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := s.identify(w, r)
	if !ok {
		return
	}
	limit := queryInt(r, "limit", s.pageSize)
	offset := queryInt(r, "offset", 0)

	total, err := s.chat.CountMessages(groupID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	start := total - offset - limit
	if start < 0 {
		limit += start
		start = 0
	}
	var messages []domain.Message
	if limit > 0 {
		messages, err = s.chat.ListMessages(groupID, userID, limit, start)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}
	writeJSON(w, http.StatusOK, listMessagesResponse{
		Messages: lo.Reverse(messages),
		Total:    total,
	})
}

func (s *Server) markGroupRead(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := s.identify(w, r)
	if !ok {
		return
	}
	if err := s.chat.MarkGroupRead(groupID, userID); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) groupUnread(w http.ResponseWriter, r *http.Request) {
	userID, groupID, ok := s.identify(w, r)
	if !ok {
		return
	}
	count, err := s.chat.UnreadCount(groupID, userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (s *Server) globalUnread(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	count, err := s.chat.GlobalUnread(userID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Count: count})
}

func (s *Server) subscribePush(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	var req subscribeRequest
	if !s.decode(w, r, &req) {
		return
	}
	sub := domain.PushSubscription{
		UserID:    userID,
		Token:     req.Token,
		Platform:  req.Platform,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.subs.Save(sub); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sub)
}

func (s *Server) unsubscribePush(w http.ResponseWriter, r *http.Request) {
	if _, ok := auth.UserIDFrom(r.Context()); !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return
	}
	token := mux.Vars(r)["token"]
	if err := s.subs.DeleteToken(token); err != nil {
		s.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// identify extracts the authenticated caller and the {id} route group.
func (s *Server) identify(w http.ResponseWriter, r *http.Request) (string, int64, bool) {
	userID, ok := auth.UserIDFrom(r.Context())
	if !ok {
		http.Error(w, "authentication required", http.StatusUnauthorized)
		return "", 0, false
	}
	groupID, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		http.Error(w, "invalid group id", http.StatusBadRequest)
		return "", 0, false
	}
	return userID, groupID, true
}

// decode unmarshals and validates a JSON request body.
func (s *Server) decode(w http.ResponseWriter, r *http.Request, target any) bool {
	if err := json.NewDecoder(r.Body).Decode(target); err != nil {
		http.Error(w, "malformed request body", http.StatusBadRequest)
		return false
	}
	if err := s.validate.Struct(target); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func queryInt(r *http.Request, name string, fallback int) int {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil || value < 0 {
		return fallback
	}
	return value
}
