package store

import (
	"sort"
	"sync"
	"time"

	"pairchat/pkg/domain"
)

// MemoryStore keeps everything in-process. Used by tests and local runs
// without Postgres.
type MemoryStore struct {
	mu       sync.RWMutex
	users    map[int64]domain.User
	byName   map[string]int64
	messages []domain.Message
	history  []domain.History
	chats    map[[2]int64]domain.Chat

	nextUserID    int64
	nextMessageID int64
	nextHistoryID int64
	nextChatID    int64
}

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:  make(map[int64]domain.User),
		byName: make(map[string]int64),
		chats:  make(map[[2]int64]domain.Chat),
	}
}

// CreateUser assigns the next id; uniqueness is enforced under the lock.
func (m *MemoryStore) CreateUser(u domain.User) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.byName[u.Username]; exists {
		return domain.User{}, ErrDuplicateUsername
	}
	m.nextUserID++
	u.ID = m.nextUserID
	m.users[u.ID] = u
	m.byName[u.Username] = u.ID
	return u, nil
}

func (m *MemoryStore) GetUserByID(id int64) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	return u, ok, nil
}

func (m *MemoryStore) GetUserByUsername(username string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.byName[username]
	if !ok {
		return domain.User{}, false, nil
	}
	return m.users[id], true, nil
}

func (m *MemoryStore) ListUsers() ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listUsersLocked(func(domain.User) bool { return true }), nil
}

func (m *MemoryStore) ListUsersByStatus(status domain.UserStatus) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.listUsersLocked(func(u domain.User) bool { return u.Status == status }), nil
}

func (m *MemoryStore) listUsersLocked(keep func(domain.User) bool) []domain.User {
	res := make([]domain.User, 0, len(m.users))
	for _, u := range m.users {
		if keep(u) {
			res = append(res, u)
		}
	}
	sort.Slice(res, func(i, j int) bool { return res[i].ID < res[j].ID })
	return res
}

func (m *MemoryStore) SetPresence(id int64, status domain.UserStatus, lastSeen time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.Status = status
	u.LastSeen = lastSeen.UTC()
	m.users[id] = u
	return true, nil
}

func (m *MemoryStore) TouchLastSeen(id int64, lastSeen time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return false, nil
	}
	u.LastSeen = lastSeen.UTC()
	m.users[id] = u
	return true, nil
}

func (m *MemoryStore) CreateMessage(msg domain.Message) (domain.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextMessageID++
	msg.ID = m.nextMessageID
	m.messages = append(m.messages, msg)
	return msg, nil
}

func (m *MemoryStore) GetMessageByID(id int64) (domain.Message, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, msg := range m.messages {
		if msg.ID == id {
			return msg, true, nil
		}
	}
	return domain.Message{}, false, nil
}

func (m *MemoryStore) ListConversation(userA, userB int64) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			res = append(res, msg)
		}
	}
	sortMessages(res)
	return res, nil
}

func (m *MemoryStore) ListMessagesByReceiver(receiverID int64) ([]domain.Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Message, 0)
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID {
			res = append(res, msg)
		}
	}
	sortMessages(res)
	return res, nil
}

func sortMessages(msgs []domain.Message) {
	sort.SliceStable(msgs, func(i, j int) bool {
		if msgs[i].Time.Equal(msgs[j].Time) {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Time.Before(msgs[j].Time)
	})
}

func (m *MemoryStore) UnreadCount(receiverID, senderID int64) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var count int64
	for _, msg := range m.messages {
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.IsRead {
			count++
		}
	}
	return count, nil
}

func (m *MemoryStore) MarkConversationRead(receiverID, senderID int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var changed int64
	for i := range m.messages {
		msg := &m.messages[i]
		if msg.ReceiverID == receiverID && msg.SenderID == senderID && !msg.IsRead {
			msg.IsRead = true
			msg.Status = domain.MessageSeen
			changed++
		}
	}
	return changed, nil
}

func (m *MemoryStore) MarkMessageSeen(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			m.messages[i].IsRead = true
			m.messages[i].Status = domain.MessageSeen
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) MarkMessageDelivered(id int64) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := range m.messages {
		if m.messages[i].ID == id {
			if m.messages[i].Status == domain.MessageSent {
				m.messages[i].Status = domain.MessageDelivered
			}
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) AppendHistory(h domain.History) (domain.History, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextHistoryID++
	h.ID = m.nextHistoryID
	m.history = append(m.history, h)
	return h, nil
}

func (m *MemoryStore) ListHistoryByUser(userID int64) ([]domain.History, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.History, 0)
	for _, h := range m.history {
		if h.UserID == userID {
			res = append(res, h)
		}
	}
	return res, nil
}

func (m *MemoryStore) UpsertChat(user1, user2 int64, lastMessage string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	lo, hi := orderPair(user1, user2)
	key := [2]int64{lo, hi}
	chat, ok := m.chats[key]
	if !ok {
		m.nextChatID++
		chat = domain.Chat{ID: m.nextChatID, User1ID: lo, User2ID: hi}
	}
	chat.LastMessage = lastMessage
	chat.LastMessageTime = at.UTC()
	m.chats[key] = chat
	return nil
}

func (m *MemoryStore) ListChatsByUser(userID int64) ([]domain.Chat, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	res := make([]domain.Chat, 0)
	for _, c := range m.chats {
		if c.User1ID == userID || c.User2ID == userID {
			res = append(res, c)
		}
	}
	sort.Slice(res, func(i, j int) bool {
		return res[i].LastMessageTime.After(res[j].LastMessageTime)
	})
	return res, nil
}
