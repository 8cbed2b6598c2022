package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/shopdesk/shopdesk-core/internal/message"
)

type sendMessageRequest struct {
	Phone    string `json:"phone"`
	Body     string `json:"body"`
	ThreadID string `json:"thread_id,omitempty"`
}

// handleListMessages returns the message history for a phone number.
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	phone := r.URL.Query().Get("phone")
	if phone == "" {
		writeBadRequest(w, "phone query parameter is required")
		return
	}
	limit, offset := pageParams(r)

	msgs, err := s.messages.ByPhone(r.Context(), phone, limit, offset)
	if err != nil {
		s.logger.Error("list messages failed", "phone", phone, "error", err)
		writeInternalError(w, "failed to list messages")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": msgs,
		"count":    len(msgs),
		"limit":    limit,
		"offset":   offset,
	})
}

// handleSendMessage queues an outbound message to a customer.
func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeBadRequest(w, "invalid JSON body")
		return
	}

	msg, err := s.messages.Send(r.Context(), req.Phone, req.Body, req.ThreadID)
	if err != nil {
		switch {
		case errors.Is(err, message.ErrEmptyPhone), errors.Is(err, message.ErrEmptyBody):
			writeBadRequest(w, err.Error())
		default:
			s.logger.Error("send message failed", "phone", req.Phone, "error", err)
			writeInternalError(w, "failed to send message")
		}
		return
	}

	writeJSON(w, http.StatusCreated, msg)
}

// handleConversations returns the latest message per phone number.
func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request) {
	limit, _ := pageParams(r)

	convs, err := s.messages.Conversations(r.Context(), limit)
	if err != nil {
		s.logger.Error("list conversations failed", "error", err)
		writeInternalError(w, "failed to list conversations")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"conversations": convs,
		"count":         len(convs),
	})
}

// handleThread returns all messages in a conversation thread.
func (s *Server) handleThread(w http.ResponseWriter, r *http.Request) {
	threadID := chi.URLParam(r, "threadID")

	msgs, err := s.messages.ByThread(r.Context(), threadID)
	if err != nil {
		s.logger.Error("list thread failed", "thread_id", threadID, "error", err)
		writeInternalError(w, "failed to list thread")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"thread_id": threadID,
		"messages":  msgs,
		"count":     len(msgs),
	})
}
