package handlers

import (
	"nearme-service/internal/api/dto"
	"nearme-service/internal/ports"
	"nearme-service/internal/services"
	"net/http"

	"github.com/go-chi/chi/v5"
)

type ChatHandler struct {
	Chats  *services.ChatService
	Source ports.ChatSnapshotSource
}

// Create returns the chat between the caller and the requested user,
// creating it on first contact.
func (h *ChatHandler) Create(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateChatRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	chat, err := h.Chats.CreateChat(r.Context(), userID, req.UserID, req.UserName)
	if err != nil {
		writeServiceError(w, r, "create chat", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewChatResponse(*chat))
}

func (h *ChatHandler) List(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	chats, err := h.Chats.ListChats(r.Context(), userID)
	if err != nil {
		writeServiceError(w, r, "list chats", err)
		return
	}

	res := dto.ListChatResponse{Chats: make([]dto.ChatResponse, 0, len(chats))}
	for _, c := range chats {
		res.Chats = append(res.Chats, dto.NewChatResponse(c))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *ChatHandler) WithUser(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	chat, err := h.Chats.GetChatWithUser(r.Context(), userID, chi.URLParam(r, "userID"))
	if err != nil {
		writeServiceError(w, r, "get chat", err)
		return
	}
	writeJSON(w, r, http.StatusOK, dto.NewChatResponse(*chat))
}

func (h *ChatHandler) Messages(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	msgs, err := h.Chats.ListMessages(r.Context(), userID, chi.URLParam(r, "chatID"))
	if err != nil {
		writeServiceError(w, r, "list messages", err)
		return
	}

	res := dto.ListMessageResponse{Messages: make([]dto.MessageResponse, 0, len(msgs))}
	for _, m := range msgs {
		res.Messages = append(res.Messages, dto.NewMessageResponse(m))
	}
	writeJSON(w, r, http.StatusOK, res)
}

func (h *ChatHandler) Send(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	var req dto.SendMessageRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	msg, err := h.Chats.SendMessage(r.Context(), userID, chi.URLParam(r, "chatID"), req.Content)
	if err != nil {
		writeServiceError(w, r, "send message", err)
		return
	}
	writeJSON(w, r, http.StatusCreated, dto.NewMessageResponse(*msg))
}

func (h *ChatHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	userID, ok := currentUser(w, r)
	if !ok {
		return
	}

	if err := h.Chats.MarkRead(r.Context(), userID, chi.URLParam(r, "chatID")); err != nil {
		writeServiceError(w, r, "mark read", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
