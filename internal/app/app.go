package app

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"pairchat/internal/broadcast"
	"pairchat/pkg/auth"
	"pairchat/pkg/domain"
	"pairchat/pkg/storage"
	"pairchat/pkg/store"
)

// Config holds runtime configuration for the core application.
type Config struct {
	DatabaseURL string
	Store       store.Store
	Sessions    store.SessionStore
	Images      storage.ImageStore
	Hub         *broadcast.Hub
	Mirror      broadcast.Sink

	// ValidateParticipants rejects messages referencing unknown user
	// ids. Off by default: the wire behavior tolerates unknown ids.
	ValidateParticipants bool
}

// App is the core application service wiring together storage,
// presence, the message pipeline and broadcast fan-out.
type App struct {
	store                store.Store
	sessions             store.SessionStore
	images               storage.ImageStore
	hub                  *broadcast.Hub
	mirror               broadcast.Sink
	validateParticipants bool
}

// New constructs the application. A Store and a Hub are required;
// sessions and image storage are optional capabilities.
func New(cfg Config) (*App, error) {
	dataStore := cfg.Store
	if dataStore == nil {
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("store or database URL required")
		}
		var err error
		dataStore, err = store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			return nil, fmt.Errorf("init postgres store: %w", err)
		}
	}
	hub := cfg.Hub
	if hub == nil {
		hub = broadcast.NewHub()
	}
	return &App{
		store:                dataStore,
		sessions:             cfg.Sessions,
		images:               cfg.Images,
		hub:                  hub,
		mirror:               cfg.Mirror,
		validateParticipants: cfg.ValidateParticipants,
	}, nil
}

// Hub exposes the broadcast hub for subscriber endpoints.
func (a *App) Hub() *broadcast.Hub {
	return a.hub
}

// Register creates a user with role USER and presence OFFLINE.
func (a *App) Register(username, password string) (domain.User, error) {
	username = strings.TrimSpace(username)
	if username == "" || password == "" {
		return domain.User{}, fmt.Errorf("%w: username and password required", ErrInvalidInput)
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, err
	}
	user := domain.User{
		Username:     username,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusOffline,
		LastSeen:     time.Now().UTC(),
		CreatedAt:    time.Now().UTC(),
	}
	created, err := a.store.CreateUser(user)
	if err != nil {
		if errors.Is(err, store.ErrDuplicateUsername) {
			return domain.User{}, ErrDuplicateUsername
		}
		return domain.User{}, fmt.Errorf("save user: %w", err)
	}
	return created, nil
}

// Login validates credentials, marks the user ONLINE, appends a LOGIN
// history record and issues a session token when a session store is
// configured.
func (a *App) Login(username, password string) (domain.User, string, error) {
	username = strings.TrimSpace(username)
	user, ok, err := a.store.GetUserByUsername(username)
	if err != nil {
		return domain.User{}, "", fmt.Errorf("fetch user: %w", err)
	}
	if !ok || !auth.CheckPassword(password, user.PasswordHash) {
		return domain.User{}, "", ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if _, err := a.store.SetPresence(user.ID, domain.StatusOnline, now); err != nil {
		return domain.User{}, "", fmt.Errorf("set presence: %w", err)
	}
	user.Status = domain.StatusOnline
	user.LastSeen = now
	if _, err := a.store.AppendHistory(domain.History{
		UserID:    user.ID,
		Action:    domain.ActionLogin,
		Details:   "User logged in",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return domain.User{}, "", fmt.Errorf("append history: %w", err)
	}
	token := ""
	if a.sessions != nil {
		token, err = a.sessions.NewSession(user.ID)
		if err != nil {
			return domain.User{}, "", fmt.Errorf("issue session: %w", err)
		}
	}
	return user, token, nil
}

// Logout marks the user OFFLINE and appends a LOGOUT history record.
func (a *App) Logout(userID int64, token string) error {
	now := time.Now().UTC()
	found, err := a.store.SetPresence(userID, domain.StatusOffline, now)
	if err != nil {
		return fmt.Errorf("set presence: %w", err)
	}
	if !found {
		return ErrUserNotFound
	}
	if _, err := a.store.AppendHistory(domain.History{
		UserID:    userID,
		Action:    domain.ActionLogout,
		Details:   "User logged out",
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return fmt.Errorf("append history: %w", err)
	}
	if a.sessions != nil && token != "" {
		if err := a.sessions.DeleteSession(token); err != nil {
			slog.Warn("failed to delete session on logout", "user_id", userID, "err", err)
		}
	}
	return nil
}

// Heartbeat refreshes lastSeen only. No status change, no history.
func (a *App) Heartbeat(userID int64) error {
	found, err := a.store.TouchLastSeen(userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("touch last seen: %w", err)
	}
	if !found {
		return ErrUserNotFound
	}
	return nil
}

// UserFromToken resolves a user from a session token.
func (a *App) UserFromToken(token string) (domain.User, bool) {
	if a.sessions == nil {
		return domain.User{}, false
	}
	uid, ok, err := a.sessions.GetUserIDByToken(token)
	if err != nil || !ok {
		return domain.User{}, false
	}
	user, found, err := a.store.GetUserByID(uid)
	if err != nil || !found {
		return domain.User{}, false
	}
	return user, true
}

// GetUser returns a user by id.
func (a *App) GetUser(id int64) (domain.User, error) {
	user, ok, err := a.store.GetUserByID(id)
	if err != nil {
		return domain.User{}, fmt.Errorf("fetch user: %w", err)
	}
	if !ok {
		return domain.User{}, ErrUserNotFound
	}
	return user, nil
}

// ListUsers returns all users.
func (a *App) ListUsers() ([]domain.User, error) {
	return a.store.ListUsers()
}

// OnlineUsers returns users whose presence is ONLINE.
func (a *App) OnlineUsers() ([]domain.User, error) {
	return a.store.ListUsersByStatus(domain.StatusOnline)
}

// HistoryForUser returns the audit trail of a user. Store-natural
// order; callers needing chronology sort by timestamp.
func (a *App) HistoryForUser(userID int64) ([]domain.History, error) {
	return a.store.ListHistoryByUser(userID)
}

// ChatsForUser returns the chat summaries a user takes part in.
func (a *App) ChatsForUser(userID int64) ([]domain.Chat, error) {
	return a.store.ListChatsByUser(userID)
}
