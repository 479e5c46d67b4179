package store

import (
	"errors"
	"time"

	"pairchat/pkg/domain"
)

// ErrDuplicateUsername is returned by CreateUser when the username is taken.
// Implementations must enforce uniqueness on write, not only by pre-check.
var ErrDuplicateUsername = errors.New("username already exists")

// Store defines persistence operations for users, messages, history and
// chat summaries. Lookups report absence with a found flag; only
// infrastructure failures surface as errors.
type Store interface {
	// users
	CreateUser(u domain.User) (domain.User, error)
	GetUserByID(id int64) (domain.User, bool, error)
	GetUserByUsername(username string) (domain.User, bool, error)
	ListUsers() ([]domain.User, error)
	ListUsersByStatus(status domain.UserStatus) ([]domain.User, error)
	// SetPresence applies a presence transition (status + lastSeen) as a
	// single atomic update. Returns false when the user does not exist.
	SetPresence(id int64, status domain.UserStatus, lastSeen time.Time) (bool, error)
	// TouchLastSeen updates lastSeen only (heartbeat).
	TouchLastSeen(id int64, lastSeen time.Time) (bool, error)

	// messages
	CreateMessage(m domain.Message) (domain.Message, error)
	GetMessageByID(id int64) (domain.Message, bool, error)
	// ListConversation returns messages between the two users in either
	// direction, ascending by time, id as tie-break.
	ListConversation(userA, userB int64) ([]domain.Message, error)
	ListMessagesByReceiver(receiverID int64) ([]domain.Message, error)
	UnreadCount(receiverID, senderID int64) (int64, error)
	// MarkConversationRead sets isRead=true and status=SEEN on every
	// unread message from sender to receiver in one atomic update.
	// Returns the number of rows changed; zero is not an error.
	MarkConversationRead(receiverID, senderID int64) (int64, error)
	// MarkMessageSeen unconditionally moves a message to SEEN/read.
	// Returns false when the message does not exist.
	MarkMessageSeen(id int64) (bool, error)
	// MarkMessageDelivered moves a message from SENT to DELIVERED.
	// Messages already DELIVERED or SEEN are left untouched (no
	// regression). Returns false when the message does not exist.
	MarkMessageDelivered(id int64) (bool, error)

	// history
	AppendHistory(h domain.History) (domain.History, error)
	ListHistoryByUser(userID int64) ([]domain.History, error)

	// chat summaries
	UpsertChat(user1, user2 int64, lastMessage string, at time.Time) error
	ListChatsByUser(userID int64) ([]domain.Chat, error)
}

// SessionStore persists login tokens.
type SessionStore interface {
	NewSession(userID int64) (string, error)
	GetUserIDByToken(token string) (int64, bool, error)
	DeleteSession(token string) error
}
