package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"pairchat/internal/broadcast"
	"pairchat/pkg/domain"
)

const imageURLExpiry = 15 * time.Minute

// SubmitInput is an inbound message before validation.
type SubmitInput struct {
	SenderID    int64
	ReceiverID  int64
	Content     string
	MessageType domain.MessageType
	ImageRef    string
	Attachment  *domain.Attachment
}

// SendMessage runs the message pipeline: validate, timestamp, persist,
// audit, then broadcast. Nothing is audited or broadcast unless the
// persist succeeded.
func (a *App) SendMessage(in SubmitInput) (domain.Message, error) {
	if err := a.validateSubmit(&in); err != nil {
		return domain.Message{}, err
	}
	msg := domain.Message{
		SenderID:    in.SenderID,
		ReceiverID:  in.ReceiverID,
		Content:     in.Content,
		MessageType: in.MessageType,
		ImageData:   in.ImageRef,
		Status:      domain.MessageSent,
		IsRead:      false,
		Time:        time.Now().UTC(),
		Attachment:  in.Attachment,
	}
	saved, err := a.store.CreateMessage(msg)
	if err != nil {
		return domain.Message{}, fmt.Errorf("save message: %w", err)
	}

	action := domain.ActionMessageSent
	if saved.MessageType == domain.TypeImage {
		action = domain.ActionImageSent
	}
	if _, err := a.store.AppendHistory(domain.History{
		UserID:    saved.SenderID,
		Action:    action,
		Details:   fmt.Sprintf("Message to user %d", saved.ReceiverID),
		Timestamp: time.Now().UTC(),
	}); err != nil {
		return domain.Message{}, fmt.Errorf("append history: %w", err)
	}

	// Chat summary is best-effort and must never fail the send.
	preview := saved.Content
	if saved.MessageType == domain.TypeImage {
		preview = "[image]"
	}
	if err := a.store.UpsertChat(saved.SenderID, saved.ReceiverID, preview, saved.Time); err != nil {
		slog.Warn("failed to update chat summary", "sender_id", saved.SenderID,
			"receiver_id", saved.ReceiverID, "err", err)
	}

	a.publish(broadcast.Event{Type: broadcast.EventMessage, Message: &saved})
	return saved, nil
}

func (a *App) validateSubmit(in *SubmitInput) error {
	if in.SenderID <= 0 || in.ReceiverID <= 0 {
		return fmt.Errorf("%w: senderId and receiverId required", ErrInvalidInput)
	}
	if in.MessageType == "" {
		in.MessageType = domain.TypeText
	}
	switch in.MessageType {
	case domain.TypeText:
		if strings.TrimSpace(in.Content) == "" {
			return fmt.Errorf("%w: content required for TEXT messages", ErrInvalidInput)
		}
	case domain.TypeImage:
		if strings.TrimSpace(in.ImageRef) == "" {
			return fmt.Errorf("%w: image reference required for IMAGE messages", ErrInvalidInput)
		}
	default:
		return fmt.Errorf("%w: unknown message type %q", ErrInvalidInput, in.MessageType)
	}
	if a.validateParticipants {
		for _, id := range []int64{in.SenderID, in.ReceiverID} {
			_, ok, err := a.store.GetUserByID(id)
			if err != nil {
				return fmt.Errorf("check participant: %w", err)
			}
			if !ok {
				return fmt.Errorf("%w: unknown user %d", ErrInvalidInput, id)
			}
		}
	}
	return nil
}

// UploadImage stores the blob under a fresh key, then runs the pipeline
// with an IMAGE message referencing it.
func (a *App) UploadImage(ctx context.Context, senderID, receiverID int64, filename string, r io.Reader, size int64, contentType string) (domain.Message, error) {
	if a.images == nil {
		return domain.Message{}, fmt.Errorf("image storage not configured")
	}
	if senderID <= 0 || receiverID <= 0 {
		return domain.Message{}, fmt.Errorf("%w: senderId and receiverId required", ErrInvalidInput)
	}
	base := filepath.Base(strings.TrimSpace(filename))
	if base == "" || base == "." {
		return domain.Message{}, fmt.Errorf("%w: filename required", ErrInvalidInput)
	}
	key := uuid.NewString() + "_" + base
	if err := a.images.Put(ctx, key, r, size, contentType); err != nil {
		return domain.Message{}, fmt.Errorf("store image: %w", err)
	}
	return a.SendMessage(SubmitInput{
		SenderID:    senderID,
		ReceiverID:  receiverID,
		MessageType: domain.TypeImage,
		ImageRef:    key,
		Attachment: &domain.Attachment{
			Filename:    base,
			ContentType: contentType,
			SizeBytes:   size,
		},
	})
}

// ImageURL resolves a stored image key to a fetchable URL.
func (a *App) ImageURL(ctx context.Context, key string) (string, error) {
	if a.images == nil {
		return "", fmt.Errorf("image storage not configured")
	}
	return a.images.GetURL(ctx, key, imageURLExpiry)
}

// Typing publishes an ephemeral typing signal. Fire-and-forget: not
// persisted, not audited, lost when nobody is subscribed.
func (a *App) Typing(t domain.Typing) error {
	if t.SenderID <= 0 || t.ReceiverID <= 0 {
		return fmt.Errorf("%w: senderId and receiverId required", ErrInvalidInput)
	}
	a.publish(broadcast.Event{Type: broadcast.EventTyping, Typing: &t})
	return nil
}

func (a *App) publish(ev broadcast.Event) {
	a.hub.Publish(ev)
	if a.mirror != nil {
		if err := a.mirror.Publish(ev); err != nil {
			slog.Warn("broadcast mirror publish failed", "type", string(ev.Type), "err", err)
		}
	}
}

// ChatHistory returns both directions of a pair, ascending by time.
// Argument order does not matter.
func (a *App) ChatHistory(userA, userB int64) ([]domain.Message, error) {
	return a.store.ListConversation(userA, userB)
}

// MessagesForUser returns all messages addressed to a receiver.
func (a *App) MessagesForUser(receiverID int64) ([]domain.Message, error) {
	return a.store.ListMessagesByReceiver(receiverID)
}

// UnreadCount counts unread messages from sender to receiver.
func (a *App) UnreadCount(receiverID, senderID int64) (int64, error) {
	return a.store.UnreadCount(receiverID, senderID)
}

// MarkAllRead flips every unread message of the pair to read/SEEN.
// Zero matches is success, and the call is idempotent.
func (a *App) MarkAllRead(receiverID, senderID int64) error {
	changed, err := a.store.MarkConversationRead(receiverID, senderID)
	if err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}
	slog.Debug("marked conversation read", "receiver_id", receiverID,
		"sender_id", senderID, "changed", changed)
	return nil
}

// MarkSeen moves a single message to SEEN and sets its read flag.
// Idempotent after the first call.
func (a *App) MarkSeen(messageID int64) error {
	found, err := a.store.MarkMessageSeen(messageID)
	if err != nil {
		return fmt.Errorf("mark seen: %w", err)
	}
	if !found {
		return ErrMessageNotFound
	}
	return nil
}

// MarkDelivered upgrades a message from SENT to DELIVERED. Messages
// already DELIVERED or SEEN are left as-is.
func (a *App) MarkDelivered(messageID int64) error {
	found, err := a.store.MarkMessageDelivered(messageID)
	if err != nil {
		return fmt.Errorf("mark delivered: %w", err)
	}
	if !found {
		return ErrMessageNotFound
	}
	return nil
}
