package domain

import "time"

type UserStatus string

const (
	StatusOnline  UserStatus = "ONLINE"
	StatusOffline UserStatus = "OFFLINE"
)

type UserRole string

const (
	RoleUser  UserRole = "USER"
	RoleAdmin UserRole = "ADMIN"
)

type MessageStatus string

// Message delivery lifecycle. Transitions are forward-only:
// SENT -> DELIVERED -> SEEN.
const (
	MessageSent      MessageStatus = "SENT"
	MessageDelivered MessageStatus = "DELIVERED"
	MessageSeen      MessageStatus = "SEEN"
)

type MessageType string

const (
	TypeText  MessageType = "TEXT"
	TypeImage MessageType = "IMAGE"
)

type HistoryAction string

const (
	ActionLogin       HistoryAction = "LOGIN"
	ActionLogout      HistoryAction = "LOGOUT"
	ActionMessageSent HistoryAction = "MESSAGE_SENT"
	ActionImageSent   HistoryAction = "IMAGE_SENT"
)

type User struct {
	ID           int64      `json:"id"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"-"`
	Role         UserRole   `json:"role"`
	Status       UserStatus `json:"status"`
	LastSeen     time.Time  `json:"lastSeen"`
	CreatedAt    time.Time  `json:"createdAt"`
}

// Attachment carries upload metadata for IMAGE messages that went through
// the multipart upload path.
type Attachment struct {
	Filename    string `json:"filename"`
	ContentType string `json:"contentType"`
	SizeBytes   int64  `json:"sizeBytes"`
}

type Message struct {
	ID          int64         `json:"id"`
	SenderID    int64         `json:"senderId"`
	ReceiverID  int64         `json:"receiverId"`
	Content     string        `json:"content"`
	MessageType MessageType   `json:"messageType"`
	ImageData   string        `json:"imageData,omitempty"` // blob store key, IMAGE only
	Status      MessageStatus `json:"status"`
	IsRead      bool          `json:"isRead"`
	Time        time.Time     `json:"time"`
	Attachment  *Attachment   `json:"attachment,omitempty"`
}

// History is an append-only audit record of a user or message event.
type History struct {
	ID        int64         `json:"id"`
	UserID    int64         `json:"userId"`
	Action    HistoryAction `json:"action"`
	Details   string        `json:"details"`
	Timestamp time.Time     `json:"timestamp"`
}

// Chat is a denormalized most-recent-message pointer per user pair,
// maintained best-effort on every send.
type Chat struct {
	ID              int64     `json:"id"`
	User1ID         int64     `json:"user1Id"`
	User2ID         int64     `json:"user2Id"`
	LastMessage     string    `json:"lastMessage"`
	LastMessageTime time.Time `json:"lastMessageTime"`
}

// Typing is an ephemeral typing indicator. It is never persisted.
type Typing struct {
	SenderID   int64 `json:"senderId"`
	ReceiverID int64 `json:"receiverId"`
	IsTyping   bool  `json:"isTyping"`
}
