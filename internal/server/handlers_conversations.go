package server

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
	"github.com/beesaferoot/tenantly/internal/store"
)

const streamBuffer = 64

type startConversationRequest struct {
	ParticipantID string `json:"participant_id"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

// UnreadResponse reports unread messages in total and per conversation.
type UnreadResponse struct {
	Total          int64            `json:"total"`
	ByConversation map[string]int64 `json:"by_conversation"`
}

// MessageEvent is pushed to stream clients for every new or changed message.
type MessageEvent struct {
	Type    gateway.EventType `json:"type"`
	Message model.Message     `json:"message"`
}

// conversationFor returns the conversation when userID takes part in it.
func (s *Server) conversationFor(ctx context.Context, userID, id string) (*model.Conversation, error) {
	conv := s.conversations.GetConversation(ctx, id)
	if conv == nil || (conv.Participant1ID != userID && conv.Participant2ID != userID) {
		return nil, apperr.ErrNotFound
	}
	return conv, nil
}

func (s *Server) handleConversations(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	writeJSON(w, http.StatusOK, s.conversations.GetUserConversations(r.Context(), sess.Auth.UserID()))
}

func (s *Server) handleStartConversation(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	var in startConversationRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	id, err := s.conversations.GetOrCreateConversation(r.Context(), sess.Auth.UserID(), in.ParticipantID)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"id": id})
}

func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	conv, err := s.conversationFor(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"])
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		if limit, err = strconv.Atoi(v); err != nil || limit < 0 {
			s.errs.HandleError(w, r, apperr.Invalid("limit", "must be a non-negative integer"))
			return
		}
	}
	writeJSON(w, http.StatusOK, s.conversations.GetConversationMessages(r.Context(), conv.ID, limit))
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	userID := sess.Auth.UserID()
	conv, err := s.conversationFor(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	var in sendMessageRequest
	if err := decodeJSON(r, &in); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	receiver := conv.Participant1ID
	if receiver == userID {
		receiver = conv.Participant2ID
	}
	msg, err := s.conversations.SendMessage(r.Context(), conv.ID, userID, receiver, in.Content)
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	userID := sess.Auth.UserID()
	conv, err := s.conversationFor(r.Context(), userID, mux.Vars(r)["id"])
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	if err := s.conversations.MarkConversationAsRead(r.Context(), conv.ID, userID); err != nil {
		s.errs.HandleError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleUnread(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	userID := sess.Auth.UserID()
	writeJSON(w, http.StatusOK, UnreadResponse{
		Total:          s.conversations.GetUnreadCount(r.Context(), userID),
		ByConversation: s.conversations.GetUnreadCountByConversation(r.Context(), userID),
	})
}

// handleStream upgrades to a websocket and pushes message inserts and updates
// for one conversation until the client goes away.
func (s *Server) handleStream(w http.ResponseWriter, r *http.Request, sess *store.Session) {
	conv, err := s.conversationFor(r.Context(), sess.Auth.UserID(), mux.Vars(r)["id"])
	if err != nil {
		s.errs.HandleError(w, r, err)
		return
	}

	opts := &websocket.AcceptOptions{}
	if origins := wsOriginPatterns(s.cfg.Server.AllowedOrigins); len(origins) > 0 {
		opts.OriginPatterns = origins
	}
	conn, err := websocket.Accept(w, r, opts)
	if err != nil {
		return
	}
	defer conn.CloseNow()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	ctx = conn.CloseRead(ctx)

	events := make(chan MessageEvent, streamBuffer)
	push := func(typ gateway.EventType) func(model.Message) {
		return func(m model.Message) {
			select {
			case events <- MessageEvent{Type: typ, Message: m}:
			case <-ctx.Done():
			}
		}
	}

	inserts, err := s.conversations.SubscribeToConversation(ctx, conv.ID, push(gateway.EventInsert))
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer s.conversations.Unsubscribe(inserts)
	updates, err := s.conversations.SubscribeToMessageUpdates(ctx, conv.ID, push(gateway.EventUpdate))
	if err != nil {
		_ = conn.Close(websocket.StatusInternalError, "subscribe failed")
		return
	}
	defer s.conversations.Unsubscribe(updates)

	s.logger.Debug("conversation stream opened", zap.String("conversation_id", conv.ID))
	for {
		select {
		case <-ctx.Done():
			_ = conn.Close(websocket.StatusNormalClosure, "closed")
			return
		case ev := <-events:
			writeCtx, cancelWrite := context.WithTimeout(ctx, 5*time.Second)
			err := wsjson.Write(writeCtx, conn, ev)
			cancelWrite()
			if err != nil {
				_ = conn.Close(websocket.StatusNormalClosure, "write_failed")
				return
			}
		}
	}
}

// wsOriginPatterns turns the CORS origins into websocket origin patterns.
// A wildcard disables the origin check.
func wsOriginPatterns(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if o == "*" {
			return []string{"*"}
		}
		if u, err := url.Parse(o); err == nil && u.Host != "" {
			out = append(out, u.Host)
		}
	}
	return out
}
