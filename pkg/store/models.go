package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence.
type UserModel struct {
	ID           int64  `gorm:"primaryKey;autoIncrement"`
	Username     string `gorm:"uniqueIndex;not null"`
	PasswordHash string `gorm:"not null"`
	Role         string `gorm:"not null"`
	Status       string `gorm:"not null;index"`
	LastSeen     time.Time
	CreatedAt    time.Time `gorm:"not null"`
}

type MessageModel struct {
	ID          int64  `gorm:"primaryKey;autoIncrement"`
	SenderID    int64  `gorm:"not null;index:idx_messages_pair"`
	ReceiverID  int64  `gorm:"not null;index:idx_messages_pair"`
	Content     string `gorm:"type:text"`
	MessageType string `gorm:"not null"`
	ImageData   string
	Status      string         `gorm:"not null"`
	IsRead      bool           `gorm:"not null;index"`
	Time        time.Time      `gorm:"not null;index"`
	Attachment  datatypes.JSON `gorm:"type:jsonb"`
}

type HistoryModel struct {
	ID        int64  `gorm:"primaryKey;autoIncrement"`
	UserID    int64  `gorm:"not null;index"`
	Action    string `gorm:"not null"`
	Details   string
	Timestamp time.Time `gorm:"not null"`
}

type ChatModel struct {
	ID              int64 `gorm:"primaryKey;autoIncrement"`
	User1ID         int64 `gorm:"not null;uniqueIndex:idx_chats_pair"`
	User2ID         int64 `gorm:"not null;uniqueIndex:idx_chats_pair"`
	LastMessage     string
	LastMessageTime time.Time `gorm:"not null"`
}
