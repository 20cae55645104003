package repository

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/beesaferoot/tenantly/internal/apperr"
	"github.com/beesaferoot/tenantly/internal/gateway"
	"github.com/beesaferoot/tenantly/internal/model"
)

const (
	conversationsTable = "conversations"
	messagesTable      = "messages"

	DefaultMessageLimit = 50
)

type ConversationRepository struct {
	base
}

func NewConversationRepository(gw *gateway.Client, logger *zap.Logger) *ConversationRepository {
	return &ConversationRepository{base: newBase(gw, logger)}
}

// GetOrCreateConversation returns the id of the conversation between a and b,
// creating it on first contact. Argument order does not matter. Concurrent
// callers for the same pair converge on one row: the insert skips on a
// pair_key conflict and the existing row is fetched instead.
func (r *ConversationRepository) GetOrCreateConversation(ctx context.Context, a, b string) (id string, err error) {
	done := r.track("conversations.get_or_create")
	defer func() { done(err) }()

	if a == "" || b == "" {
		return "", apperr.ErrNotAuthenticated
	}
	if a == b {
		return "", apperr.Invalid("participant", "cannot start a conversation with yourself")
	}

	key := model.PairKey(a, b)
	if existing, err := r.findByPair(ctx, key); err == nil {
		return existing.ID, nil
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return "", r.writeFailed("conversations.get_or_create", err, zap.String("pair", key))
	}

	conv := &model.Conversation{
		Participant1ID: a,
		Participant2ID: b,
		PairKey:        key,
	}
	res := r.db(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "pair_key"}}, DoNothing: true}).
		Create(conv)
	if res.Error != nil {
		return "", r.writeFailed("conversations.get_or_create", res.Error, zap.String("pair", key))
	}

	if res.RowsAffected == 0 {
		existing, err := r.findByPair(ctx, key)
		if err != nil {
			return "", r.writeFailed("conversations.get_or_create", err, zap.String("pair", key))
		}
		return existing.ID, nil
	}

	r.gw.Notify(ctx, conversationsTable, gateway.EventInsert, conv)
	return conv.ID, nil
}

func (r *ConversationRepository) findByPair(ctx context.Context, key string) (*model.Conversation, error) {
	var conv model.Conversation
	if err := r.db(ctx).Where("pair_key = ?", key).First(&conv).Error; err != nil {
		return nil, err
	}
	return &conv, nil
}

// GetUserConversations lists the user's conversations with both participant
// profiles, most recently active first.
func (r *ConversationRepository) GetUserConversations(ctx context.Context, userID string) []model.Conversation {
	done := r.track("conversations.list")

	var convs []model.Conversation
	err := r.db(ctx).
		Preload("Participant1").
		Preload("Participant2").
		Where("participant1_id = ? OR participant2_id = ?", userID, userID).
		Order("last_message_at IS NULL").
		Order("last_message_at DESC").
		Order("created_at DESC").
		Find(&convs).Error
	done(err)
	if err != nil {
		r.readFailed("conversations.list", err, zap.String("user_id", userID))
		return []model.Conversation{}
	}
	return convs
}

func (r *ConversationRepository) GetConversation(ctx context.Context, id string) *model.Conversation {
	done := r.track("conversations.get")

	var conv model.Conversation
	err := r.db(ctx).
		Preload("Participant1").
		Preload("Participant2").
		Where("id = ?", id).
		First(&conv).Error
	done(err)
	if err != nil {
		r.readFailed("conversations.get", err, zap.String("conversation_id", id))
		return nil
	}
	return &conv
}

// GetConversationMessages returns up to limit messages, oldest first.
func (r *ConversationRepository) GetConversationMessages(ctx context.Context, conversationID string, limit int) []model.Message {
	if limit <= 0 {
		limit = DefaultMessageLimit
	}
	done := r.track("messages.list")

	var msgs []model.Message
	err := r.db(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at ASC").
		Limit(limit).
		Find(&msgs).Error
	done(err)
	if err != nil {
		r.readFailed("messages.list", err, zap.String("conversation_id", conversationID))
		return []model.Message{}
	}
	return msgs
}

// SendMessage stores a trimmed message and bumps the conversation preview.
func (r *ConversationRepository) SendMessage(ctx context.Context, conversationID, senderID, receiverID, content string) (msg *model.Message, err error) {
	done := r.track("messages.insert")
	defer func() { done(err) }()

	if err := requireActor(senderID); err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperr.Invalid("content", "must not be empty")
	}

	msg = &model.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		ReceiverID:     receiverID,
		Content:        content,
	}
	var conv model.Conversation
	err = r.db(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", conversationID).First(&conv).Error; err != nil {
			return apperr.Remote("messages.insert", err)
		}
		if err := tx.Create(msg).Error; err != nil {
			return err
		}
		at := msg.CreatedAt
		if err := tx.Model(&conv).Updates(map[string]interface{}{
			"last_message":    content,
			"last_message_at": &at,
		}).Error; err != nil {
			return err
		}
		conv.LastMessage = &content
		conv.LastMessageAt = &at
		return nil
	})
	if err != nil {
		return nil, r.writeFailed("messages.insert", err, zap.String("conversation_id", conversationID))
	}

	r.gw.Notify(ctx, messagesTable, gateway.EventInsert, msg)
	r.gw.Notify(ctx, conversationsTable, gateway.EventUpdate, &conv)
	return msg, nil
}

func (r *ConversationRepository) MarkMessageAsRead(ctx context.Context, messageID string) (err error) {
	done := r.track("messages.mark_read")
	defer func() { done(err) }()

	now := time.Now()
	res := r.db(ctx).Model(&model.Message{}).
		Where("id = ?", messageID).
		Updates(map[string]interface{}{"read": true, "read_at": &now})
	if res.Error != nil {
		return r.writeFailed("messages.mark_read", res.Error, zap.String("message_id", messageID))
	}
	if res.RowsAffected == 0 {
		return nil
	}

	var msg model.Message
	if err := r.db(ctx).Where("id = ?", messageID).First(&msg).Error; err == nil {
		r.gw.Notify(ctx, messagesTable, gateway.EventUpdate, &msg)
	}
	return nil
}

// MarkConversationAsRead marks every unread message addressed to userID in the
// conversation as read.
func (r *ConversationRepository) MarkConversationAsRead(ctx context.Context, conversationID, userID string) (err error) {
	done := r.track("messages.mark_conversation_read")
	defer func() { done(err) }()

	if err := requireActor(userID); err != nil {
		return err
	}

	var ids []string
	err = r.db(ctx).Model(&model.Message{}).
		Where("conversation_id = ? AND receiver_id = ? AND read = ?", conversationID, userID, false).
		Pluck("id", &ids).Error
	if err != nil {
		return r.writeFailed("messages.mark_conversation_read", err, zap.String("conversation_id", conversationID))
	}
	if len(ids) == 0 {
		return nil
	}

	now := time.Now()
	err = r.db(ctx).Model(&model.Message{}).
		Where("id IN ?", ids).
		Updates(map[string]interface{}{"read": true, "read_at": &now}).Error
	if err != nil {
		return r.writeFailed("messages.mark_conversation_read", err, zap.String("conversation_id", conversationID))
	}

	var updated []model.Message
	if err := r.db(ctx).Where("id IN ?", ids).Order("created_at ASC").Find(&updated).Error; err == nil {
		rows := make([]interface{}, 0, len(updated))
		for i := range updated {
			rows = append(rows, &updated[i])
		}
		r.gw.Notify(ctx, messagesTable, gateway.EventUpdate, rows...)
	}
	return nil
}

func (r *ConversationRepository) GetUnreadCount(ctx context.Context, userID string) int64 {
	done := r.track("messages.unread_count")

	var n int64
	err := r.db(ctx).Model(&model.Message{}).
		Where("receiver_id = ? AND read = ?", userID, false).
		Count(&n).Error
	done(err)
	if err != nil {
		r.readFailed("messages.unread_count", err, zap.String("user_id", userID))
		return 0
	}
	return n
}

// GetUnreadCountByConversation maps conversation id to unread count. The
// values sum to GetUnreadCount for the same user.
func (r *ConversationRepository) GetUnreadCountByConversation(ctx context.Context, userID string) map[string]int64 {
	done := r.track("messages.unread_by_conversation")

	var rows []struct {
		ConversationID string
		N              int64
	}
	err := r.db(ctx).Model(&model.Message{}).
		Select("conversation_id, COUNT(*) AS n").
		Where("receiver_id = ? AND read = ?", userID, false).
		Group("conversation_id").
		Scan(&rows).Error
	done(err)

	counts := make(map[string]int64, len(rows))
	if err != nil {
		r.readFailed("messages.unread_by_conversation", err, zap.String("user_id", userID))
		return counts
	}
	for _, row := range rows {
		if row.ConversationID != "" {
			counts[row.ConversationID] = row.N
		}
	}
	return counts
}

// SubscribeToConversation calls cb once for every message inserted into the
// conversation until the subscription is released.
func (r *ConversationRepository) SubscribeToConversation(ctx context.Context, conversationID string, cb func(model.Message)) (*gateway.Subscription, error) {
	return r.subscribe(ctx, conversationID, gateway.EventInsert, cb)
}

// SubscribeToMessageUpdates calls cb for every message update, such as read
// receipts, in the conversation.
func (r *ConversationRepository) SubscribeToMessageUpdates(ctx context.Context, conversationID string, cb func(model.Message)) (*gateway.Subscription, error) {
	return r.subscribe(ctx, conversationID, gateway.EventUpdate, cb)
}

func (r *ConversationRepository) subscribe(ctx context.Context, conversationID string, ev gateway.EventType, cb func(model.Message)) (*gateway.Subscription, error) {
	filter := gateway.Filter{
		Table:  messagesTable,
		Event:  ev,
		Column: "conversation_id",
		Value:  conversationID,
	}
	sub, err := r.gw.Realtime.Subscribe(ctx, filter, func(change gateway.ChangeEvent) {
		var msg model.Message
		if err := change.Decode(&msg); err != nil {
			r.logger.Warn("dropping undecodable message event", zap.String("filter", filter.String()), zap.Error(err))
			return
		}
		cb(msg)
	})
	if err != nil {
		return nil, r.writeFailed("messages.subscribe", err, zap.String("conversation_id", conversationID))
	}
	return sub, nil
}

// Unsubscribe releases a subscription. A nil subscription is ignored.
func (r *ConversationRepository) Unsubscribe(sub *gateway.Subscription) {
	sub.Unsubscribe()
}

// OtherParticipant returns the participant that is not userID, or nil when the
// participant profiles were not loaded.
func OtherParticipant(conv *model.Conversation, userID string) *model.Profile {
	if conv == nil || conv.Participant1 == nil || conv.Participant2 == nil {
		return nil
	}
	if conv.Participant1ID == userID {
		return conv.Participant2
	}
	return conv.Participant1
}
