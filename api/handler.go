// Package api is the HTTP surface: registration, login, conversation and
// message queries, the user directory, and full-text search. Realtime
// traffic does not pass through here; it lives on the websocket.
package api

import (
	"encoding/json"
	stderrors "errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"

	"you-chat/domain"
	"you-chat/errors"
	"you-chat/runtime"
	"you-chat/services"
)

type Handler struct {
	auth  services.IAuthService
	chat  services.IChatService
	users services.IUserService
	log   *slog.Logger
}

func NewHandler(
	auth services.IAuthService,
	chat services.IChatService,
	users services.IUserService,
	log *slog.Logger,
) *Handler {
	return &Handler{auth: auth, chat: chat, users: users, log: log}
}

type registerRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type conversationRequest struct {
	SenderID   string `json:"senderId"`
	ReceiverID string `json:"receiverId"`
}

type messageRequest struct {
	ConversationID string `json:"conversationId"`
	SenderID       string `json:"senderId"`
	ReceiverID     string `json:"receiverId"`
	Body           string `json:"message"`
}

type userResponse struct {
	ID        string    `json:"id"`
	FullName  string    `json:"fullName"`
	Email     string    `json:"email"`
	Token     string    `json:"token"`
	CreatedAt time.Time `json:"createdAt"`
}

type messageResponse struct {
	ID             string    `json:"id"`
	ConversationID string    `json:"conversationId"`
	SenderID       string    `json:"senderId"`
	Body           string    `json:"message"`
	CreatedAt      time.Time `json:"createdAt"`
}

type messagesResponse struct {
	Messages   []services.MessageView `json:"messages"`
	NextCursor *string                `json:"nextCursor,omitempty"`
}

type conversationResponse struct {
	ID        string    `json:"id"`
	Members   []string  `json:"members"`
	CreatedAt time.Time `json:"createdAt"`
}

func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ErrMissingFields)
		return
	}

	user, err := h.auth.Register(req.FullName, req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toUserResponse(user))
}

func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ErrMissingFields)
		return
	}

	user, err := h.auth.Login(req.Email, req.Password)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

func (h *Handler) CreateConversation(w http.ResponseWriter, r *http.Request) {
	var req conversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.SenderID == "" || req.ReceiverID == "" {
		h.writeError(w, errors.ErrMissingFields)
		return
	}

	conv, err := h.chat.CreateConversation(req.SenderID, req.ReceiverID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, toConversationResponse(conv))
}

func (h *Handler) ListConversations(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	views, err := h.chat.GetConversations(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if views == nil {
		views = []services.ConversationView{}
	}
	h.writeJSON(w, http.StatusOK, views)
}

// SendMessage routes a message exactly like the websocket path does, so a
// REST-only client still triggers live delivery for connected receivers.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.ErrMissingFields)
		return
	}

	result, err := h.chat.SendMessage(r.Context(), runtime.SendCommand{
		SenderID:       req.SenderID,
		ReceiverID:     req.ReceiverID,
		ConversationID: req.ConversationID,
		Body:           req.Body,
	})
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, toMessageResponse(result.Message))
}

// GetMessages serves a conversation's history. The "new" sentinel means
// the client never learned a conversation id: with senderId/receiverId
// query parameters the pair is resolved read-only, and a pair that never
// talked gets an empty history, not an error.
func (h *Handler) GetMessages(w http.ResponseWriter, r *http.Request) {
	conversationID := mux.Vars(r)["conversationId"]

	if conversationID == runtime.NewConversation {
		senderID := r.URL.Query().Get("senderId")
		receiverID := r.URL.Query().Get("receiverId")
		if senderID == "" || receiverID == "" {
			h.writeJSON(w, http.StatusOK, messagesResponse{Messages: []services.MessageView{}})
			return
		}
		conv, err := h.chat.FindConversation(senderID, receiverID)
		if stderrors.Is(err, errors.ErrConversationNotFound) {
			h.writeJSON(w, http.StatusOK, messagesResponse{Messages: []services.MessageView{}})
			return
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		conversationID = conv.ID
	}

	var cursor *string
	if c := r.URL.Query().Get("cursor"); c != "" {
		cursor = &c
	}

	messages, next, err := h.chat.GetMessages(conversationID, cursor)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if messages == nil {
		messages = []services.MessageView{}
	}
	h.writeJSON(w, http.StatusOK, messagesResponse{Messages: messages, NextCursor: next})
}

func (h *Handler) ListUsers(w http.ResponseWriter, r *http.Request) {
	userID := mux.Vars(r)["userId"]

	profiles, err := h.users.ListOthers(userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if profiles == nil {
		profiles = []domain.Profile{}
	}
	h.writeJSON(w, http.StatusOK, profiles)
}

func (h *Handler) Search(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query().Get("q")
	if query == "" {
		h.writeError(w, errors.ErrMissingFields)
		return
	}
	conversationID := r.URL.Query().Get("conversationId")
	page := 0
	if p := r.URL.Query().Get("page"); p != "" {
		parsed, err := strconv.Atoi(p)
		if err != nil || parsed < 0 {
			h.writeError(w, errors.ErrMissingFields)
			return
		}
		page = parsed
	}

	hits, total, err := h.chat.Search(r.Context(), query, conversationID, page)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]any{
		"hits":  hits,
		"total": total,
	})
}

func toUserResponse(u domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		FullName:  u.FullName,
		Email:     u.Email,
		Token:     u.Token,
		CreatedAt: u.CreatedAt,
	}
}

func toMessageResponse(m domain.Message) messageResponse {
	return messageResponse{
		ID:             m.ID.String(),
		ConversationID: m.ConversationID,
		SenderID:       m.SenderID,
		Body:           m.Body,
		CreatedAt:      m.CreatedAt,
	}
}

func toConversationResponse(c domain.Conversation) conversationResponse {
	return conversationResponse{
		ID:        c.ID,
		Members:   []string{c.Members[0], c.Members[1]},
		CreatedAt: c.CreatedAt,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.log.Error("Failed to encode response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	status := errors.MapToHTTPStatus(err)
	if status >= http.StatusInternalServerError {
		h.log.Error("Request failed", "error", err)
	}
	h.writeJSON(w, status, map[string]string{"error": err.Error()})
}
