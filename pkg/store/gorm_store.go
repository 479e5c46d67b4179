package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"

	"pairchat/pkg/domain"
)

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore opens the DB and runs auto-migrations.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         gormLog,
		TranslateError: true,
	})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := db.AutoMigrate(&UserModel{}, &MessageModel{}, &HistoryModel{}, &ChatModel{}); err != nil {
		return nil, fmt.Errorf("auto migrate: %w", err)
	}
	return &GormStore{db: db}, nil
}

// CreateUser inserts a user; the unique index on username rejects
// concurrent duplicate registrations.
func (s *GormStore) CreateUser(u domain.User) (domain.User, error) {
	model := userToModel(u)
	if err := s.db.Create(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return domain.User{}, ErrDuplicateUsername
		}
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// GetUserByID returns a user by ID.
func (s *GormStore) GetUserByID(id int64) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// GetUserByUsername looks up a user by username.
func (s *GormStore) GetUserByUsername(username string) (domain.User, bool, error) {
	var model UserModel
	if err := s.db.Where("username = ?", username).First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.User{}, false, nil
		}
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns all users ordered by id.
func (s *GormStore) ListUsers() ([]domain.User, error) {
	return s.listUsers(nil)
}

// ListUsersByStatus returns users filtered by presence status.
func (s *GormStore) ListUsersByStatus(status domain.UserStatus) ([]domain.User, error) {
	return s.listUsers(map[string]any{"status": string(status)})
}

func (s *GormStore) listUsers(conds map[string]any) ([]domain.User, error) {
	var models []UserModel
	tx := s.db.Order("id ASC")
	if len(conds) > 0 {
		tx = tx.Where(conds)
	}
	if err := tx.Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.User, 0, len(models))
	for _, m := range models {
		res = append(res, userFromModel(m))
	}
	return res, nil
}

// SetPresence applies status and lastSeen in a single UPDATE.
func (s *GormStore) SetPresence(id int64, status domain.UserStatus, lastSeen time.Time) (bool, error) {
	tx := s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":    string(status),
			"last_seen": lastSeen.UTC(),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// TouchLastSeen updates only the lastSeen column.
func (s *GormStore) TouchLastSeen(id int64, lastSeen time.Time) (bool, error) {
	tx := s.db.Model(&UserModel{}).
		Where("id = ?", id).
		Update("last_seen", lastSeen.UTC())
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// CreateMessage persists a message and returns it with its assigned id.
func (s *GormStore) CreateMessage(m domain.Message) (domain.Message, error) {
	model, err := messageToModel(m)
	if err != nil {
		return domain.Message{}, err
	}
	if err := s.db.Create(&model).Error; err != nil {
		return domain.Message{}, err
	}
	return messageFromModel(model), nil
}

// GetMessageByID retrieves a message.
func (s *GormStore) GetMessageByID(id int64) (domain.Message, bool, error) {
	var model MessageModel
	if err := s.db.First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return domain.Message{}, false, nil
		}
		return domain.Message{}, false, err
	}
	return messageFromModel(model), true, nil
}

// ListConversation returns both directions of a pair, oldest first.
func (s *GormStore) ListConversation(userA, userB int64) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.
		Where("(sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?)",
			userA, userB, userB, userA).
		Order("time ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return messagesFromModels(models)
}

// ListMessagesByReceiver returns all messages addressed to a user.
func (s *GormStore) ListMessagesByReceiver(receiverID int64) ([]domain.Message, error) {
	var models []MessageModel
	if err := s.db.
		Where("receiver_id = ?", receiverID).
		Order("time ASC").
		Order("id ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	return messagesFromModels(models)
}

// UnreadCount counts unread messages from sender to receiver.
func (s *GormStore) UnreadCount(receiverID, senderID int64) (int64, error) {
	var count int64
	if err := s.db.Model(&MessageModel{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// MarkConversationRead flips every unread message of the pair in one
// statement, so a concurrent MarkMessageSeen cannot lose the flag.
func (s *GormStore) MarkConversationRead(receiverID, senderID int64) (int64, error) {
	tx := s.db.Model(&MessageModel{}).
		Where("receiver_id = ? AND sender_id = ? AND is_read = ?", receiverID, senderID, false).
		Updates(map[string]any{
			"is_read": true,
			"status":  string(domain.MessageSeen),
		})
	if tx.Error != nil {
		return 0, tx.Error
	}
	return tx.RowsAffected, nil
}

// MarkMessageSeen moves a message to SEEN and sets the read flag.
func (s *GormStore) MarkMessageSeen(id int64) (bool, error) {
	tx := s.db.Model(&MessageModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"is_read": true,
			"status":  string(domain.MessageSeen),
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

// MarkMessageDelivered upgrades SENT to DELIVERED without regressing
// messages that already reached SEEN.
func (s *GormStore) MarkMessageDelivered(id int64) (bool, error) {
	tx := s.db.Model(&MessageModel{}).
		Where("id = ? AND status = ?", id, string(domain.MessageSent)).
		Update("status", string(domain.MessageDelivered))
	if tx.Error != nil {
		return false, tx.Error
	}
	if tx.RowsAffected > 0 {
		return true, nil
	}
	// No rows: either absent or already past SENT.
	var count int64
	if err := s.db.Model(&MessageModel{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// AppendHistory records an audit entry.
func (s *GormStore) AppendHistory(h domain.History) (domain.History, error) {
	model := historyToModel(h)
	if err := s.db.Create(&model).Error; err != nil {
		return domain.History{}, err
	}
	return historyFromModel(model), nil
}

// ListHistoryByUser returns all audit entries for a user.
func (s *GormStore) ListHistoryByUser(userID int64) ([]domain.History, error) {
	var models []HistoryModel
	if err := s.db.Where("user_id = ?", userID).Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.History, 0, len(models))
	for _, m := range models {
		res = append(res, historyFromModel(m))
	}
	return res, nil
}

// UpsertChat refreshes the last-message pointer for a user pair.
func (s *GormStore) UpsertChat(user1, user2 int64, lastMessage string, at time.Time) error {
	lo, hi := orderPair(user1, user2)
	model := ChatModel{
		User1ID:         lo,
		User2ID:         hi,
		LastMessage:     lastMessage,
		LastMessageTime: at.UTC(),
	}
	return s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user1_id"}, {Name: "user2_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"last_message", "last_message_time"}),
	}).Create(&model).Error
}

// ListChatsByUser returns chat summaries the user takes part in,
// most recent first.
func (s *GormStore) ListChatsByUser(userID int64) ([]domain.Chat, error) {
	var models []ChatModel
	if err := s.db.
		Where("user1_id = ? OR user2_id = ?", userID, userID).
		Order("last_message_time DESC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	res := make([]domain.Chat, 0, len(models))
	for _, m := range models {
		res = append(res, chatFromModel(m))
	}
	return res, nil
}

func orderPair(a, b int64) (int64, int64) {
	if a > b {
		return b, a
	}
	return a, b
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		ID:           u.ID,
		Username:     u.Username,
		PasswordHash: u.PasswordHash,
		Role:         string(u.Role),
		Status:       string(u.Status),
		LastSeen:     u.LastSeen,
		CreatedAt:    u.CreatedAt,
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		ID:           m.ID,
		Username:     m.Username,
		PasswordHash: m.PasswordHash,
		Role:         domain.UserRole(m.Role),
		Status:       domain.UserStatus(m.Status),
		LastSeen:     m.LastSeen,
		CreatedAt:    m.CreatedAt,
	}
}

func messageToModel(m domain.Message) (MessageModel, error) {
	model := MessageModel{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: string(m.MessageType),
		ImageData:   m.ImageData,
		Status:      string(m.Status),
		IsRead:      m.IsRead,
		Time:        m.Time,
	}
	if m.Attachment != nil {
		raw, err := json.Marshal(m.Attachment)
		if err != nil {
			return MessageModel{}, fmt.Errorf("marshal attachment: %w", err)
		}
		model.Attachment = raw
	}
	return model, nil
}

func messageFromModel(m MessageModel) domain.Message {
	msg := domain.Message{
		ID:          m.ID,
		SenderID:    m.SenderID,
		ReceiverID:  m.ReceiverID,
		Content:     m.Content,
		MessageType: domain.MessageType(m.MessageType),
		ImageData:   m.ImageData,
		Status:      domain.MessageStatus(m.Status),
		IsRead:      m.IsRead,
		Time:        m.Time,
	}
	if len(m.Attachment) > 0 {
		var att domain.Attachment
		if err := json.Unmarshal(m.Attachment, &att); err == nil {
			msg.Attachment = &att
		}
	}
	return msg
}

func messagesFromModels(models []MessageModel) ([]domain.Message, error) {
	res := make([]domain.Message, 0, len(models))
	for _, m := range models {
		res = append(res, messageFromModel(m))
	}
	return res, nil
}

func historyToModel(h domain.History) HistoryModel {
	return HistoryModel{
		ID:        h.ID,
		UserID:    h.UserID,
		Action:    string(h.Action),
		Details:   h.Details,
		Timestamp: h.Timestamp,
	}
}

func historyFromModel(m HistoryModel) domain.History {
	return domain.History{
		ID:        m.ID,
		UserID:    m.UserID,
		Action:    domain.HistoryAction(m.Action),
		Details:   m.Details,
		Timestamp: m.Timestamp,
	}
}

func chatFromModel(m ChatModel) domain.Chat {
	return domain.Chat{
		ID:              m.ID,
		User1ID:         m.User1ID,
		User2ID:         m.User2ID,
		LastMessage:     m.LastMessage,
		LastMessageTime: m.LastMessageTime,
	}
}
