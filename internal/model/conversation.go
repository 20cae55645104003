package model

import "time"

// Conversation is a thread between an unordered pair of profiles
type Conversation struct {
	Base
	Participant1ID string     `gorm:"column:participant1_id;size:36;index;not null" json:"participant1_id"`
	Participant2ID string     `gorm:"column:participant2_id;size:36;index;not null" json:"participant2_id"`
	PairKey        string     `gorm:"size:80;uniqueIndex;not null" json:"-"`
	LastMessage    *string    `gorm:"type:text" json:"last_message,omitempty"`
	LastMessageAt  *time.Time `gorm:"index" json:"last_message_at,omitempty"`
	Participant1   *Profile   `gorm:"foreignKey:Participant1ID" json:"participant1,omitempty"`
	Participant2   *Profile   `gorm:"foreignKey:Participant2ID" json:"participant2,omitempty"`
}

// PairKey normalizes an unordered participant pair so (a,b) and (b,a) collide
func PairKey(a, b string) string {
	if b < a {
		a, b = b, a
	}
	return a + ":" + b
}

// Message belongs to one conversation
type Message struct {
	Base
	ConversationID string     `gorm:"size:36;index;not null" json:"conversation_id"`
	SenderID       string     `gorm:"size:36;not null" json:"sender_id"`
	ReceiverID     string     `gorm:"size:36;index;not null" json:"receiver_id"`
	Content        string     `gorm:"type:text;not null" json:"content"`
	Read           bool       `gorm:"index" json:"read"`
	ReadAt         *time.Time `json:"read_at,omitempty"`
}
