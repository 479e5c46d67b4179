package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"pairchat/internal/app"
	"pairchat/internal/ratelimit"
	"pairchat/internal/util"
	"pairchat/pkg/domain"
	"pairchat/pkg/storage"
)

// Config wires required dependencies for the HTTP server.
type Config struct {
	App *app.App

	// Files, when set, serves uploaded images straight from disk
	// instead of redirecting to a presigned URL.
	Files *storage.FileImageStore

	// AuthLimiter, when set, throttles register/login per client IP.
	AuthLimiter    *ratelimit.FixedWindowLimiter
	TrustedProxies *util.TrustedProxies
}

// Server exposes the HTTP and websocket endpoints.
type Server struct {
	app         *app.App
	files       *storage.FileImageStore
	authLimiter *ratelimit.FixedWindowLimiter
	trusted     *util.TrustedProxies
	mux         *http.ServeMux
}

// New constructs the server with routes configured.
func New(cfg Config) *Server {
	s := &Server{
		app:         cfg.App,
		files:       cfg.Files,
		authLimiter: cfg.AuthLimiter,
		trusted:     cfg.TrustedProxies,
		mux:         http.NewServeMux(),
	}
	s.routes()
	return s
}

// Router returns the configured handler with ambient middleware.
func (s *Server) Router() http.Handler {
	return util.WithSecurityHeaders(util.WithCORS(util.WithRequestID(util.WithRequestLog(s.mux))))
}

func (s *Server) routes() {
	s.mux.HandleFunc("GET /healthz", s.handleHealth)

	s.mux.Handle("POST /register", s.withAuthLimit(s.handleRegister))
	s.mux.Handle("POST /login", s.withAuthLimit(s.handleLogin))
	s.mux.HandleFunc("POST /logout/{id}", s.handleLogout)
	s.mux.HandleFunc("POST /heartbeat/{id}", s.handleHeartbeat)

	s.mux.HandleFunc("GET /users", s.handleListUsers)
	s.mux.HandleFunc("GET /users/online", s.handleOnlineUsers)
	s.mux.HandleFunc("GET /users/{id}", s.handleGetUser)

	s.mux.HandleFunc("POST /messages", s.handleSendMessage)
	s.mux.HandleFunc("POST /messages/image", s.handleSendImage)
	s.mux.HandleFunc("POST /messages/upload", s.handleUpload)
	s.mux.HandleFunc("GET /messages/{userId}", s.handleMessagesForUser)
	s.mux.HandleFunc("GET /messages/{user1}/{user2}", s.handleChatHistory)
	s.mux.HandleFunc("GET /messages/unread/{receiverId}/{senderId}", s.handleUnreadCount)
	s.mux.HandleFunc("PUT /messages/read/{receiverId}/{senderId}", s.handleMarkAllRead)
	s.mux.HandleFunc("PUT /messages/seen/{id}", s.handleMarkSeen)
	s.mux.HandleFunc("PUT /messages/delivered/{id}", s.handleMarkDelivered)

	s.mux.HandleFunc("GET /history/{userId}", s.handleHistory)
	s.mux.HandleFunc("GET /chats/{userId}", s.handleChats)
	s.mux.HandleFunc("GET /uploads/{key}", s.handleImage)

	s.mux.HandleFunc("GET /ws", s.handleWS)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) withAuthLimit(next http.HandlerFunc) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.authLimiter != nil {
			ip := util.ClientIP(r, s.trusted)
			if !s.authLimiter.Allow(ip) {
				writeError(w, http.StatusTooManyRequests, "too many requests")
				return
			}
		}
		next(w, r)
	})
}

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if _, err := s.app.Register(req.Username, req.Password); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"status": "created"})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	user, token, err := s.app.Login(req.Username, req.Password)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"userId": user.ID,
		"token":  token,
	})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	token, _ := bearerToken(r)
	if err := s.app.Logout(id, token); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHeartbeat(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.Heartbeat(id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleListUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.app.ListUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleOnlineUsers(w http.ResponseWriter, _ *http.Request) {
	users, err := s.app.OnlineUsers()
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, users)
}

func (s *Server) handleGetUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	user, err := s.app.GetUser(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, user)
}

type messageRequest struct {
	SenderID    int64              `json:"senderId"`
	ReceiverID  int64              `json:"receiverId"`
	Content     string             `json:"content"`
	MessageType domain.MessageType `json:"messageType"`
	ImageData   string             `json:"imageData"`
}

func (req messageRequest) toInput() app.SubmitInput {
	return app.SubmitInput{
		SenderID:    req.SenderID,
		ReceiverID:  req.ReceiverID,
		Content:     req.Content,
		MessageType: req.MessageType,
		ImageRef:    req.ImageData,
	}
}

func (s *Server) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	msg, err := s.app.SendMessage(req.toInput())
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleSendImage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	in := req.toInput()
	in.MessageType = domain.TypeImage
	msg, err := s.app.SendMessage(in)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

const maxUploadBytes = 10 << 20

func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	// Cap the whole request body; ParseMultipartForm alone only bounds
	// in-memory buffering and would spool oversized uploads to disk.
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	senderID, err := strconv.ParseInt(r.FormValue("senderId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "senderId is required")
		return
	}
	receiverID, err := strconv.ParseInt(r.FormValue("receiverId"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "receiverId is required")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()
	msg, err := s.app.UploadImage(r.Context(), senderID, receiverID,
		header.Filename, file, header.Size, header.Header.Get("Content-Type"))
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, msg)
}

func (s *Server) handleChatHistory(w http.ResponseWriter, r *http.Request) {
	user1, ok := pathID(w, r, "user1")
	if !ok {
		return
	}
	user2, ok := pathID(w, r, "user2")
	if !ok {
		return
	}
	msgs, err := s.app.ChatHistory(user1, user2)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleMessagesForUser(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	msgs, err := s.app.MessagesForUser(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, msgs)
}

func (s *Server) handleUnreadCount(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := pathID(w, r, "receiverId")
	if !ok {
		return
	}
	senderID, ok := pathID(w, r, "senderId")
	if !ok {
		return
	}
	count, err := s.app.UnreadCount(receiverID, senderID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, count)
}

func (s *Server) handleMarkAllRead(w http.ResponseWriter, r *http.Request) {
	receiverID, ok := pathID(w, r, "receiverId")
	if !ok {
		return
	}
	senderID, ok := pathID(w, r, "senderId")
	if !ok {
		return
	}
	if err := s.app.MarkAllRead(receiverID, senderID); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkSeen(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.MarkSeen(id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleMarkDelivered(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "id")
	if !ok {
		return
	}
	if err := s.app.MarkDelivered(id); err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	records, err := s.app.HistoryForUser(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, records)
}

func (s *Server) handleChats(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "userId")
	if !ok {
		return
	}
	chats, err := s.app.ChatsForUser(id)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chats)
}

func (s *Server) handleImage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if key == "" {
		writeError(w, http.StatusBadRequest, "key is required")
		return
	}
	if s.files != nil {
		http.ServeFile(w, r, s.files.Path(key))
		return
	}
	url, err := s.app.ImageURL(r.Context(), key)
	if err != nil {
		writeError(w, http.StatusNotFound, "image not available")
		return
	}
	http.Redirect(w, r, url, http.StatusFound)
}

func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(r.PathValue(name), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, name+" must be an integer")
		return 0, false
	}
	return id, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(io.LimitReader(r.Body, 1<<20)).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

func writeAppError(w http.ResponseWriter, err error) {
	writeError(w, errorStatus(err), err.Error())
}

func errorStatus(err error) int {
	switch {
	case errors.Is(err, app.ErrDuplicateUsername):
		return http.StatusConflict
	case errors.Is(err, app.ErrInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, app.ErrUserNotFound), errors.Is(err, app.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, app.ErrInvalidInput):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func bearerToken(r *http.Request) (string, bool) {
	authHeader := r.Header.Get("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return "", false
	}
	token := strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
	if token == "" {
		return "", false
	}
	return token, true
}
