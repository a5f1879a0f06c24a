package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

// Real-time event types pushed to chat participants.
const (
	EventMessageCreated   = "message.created"
	EventConversationRead = "conversation.read"
)

// ChatService runs direct messaging between two users.
type ChatService struct {
	conversations repository.ConversationRepository
	products      repository.ProductRepository
	notifier      Notifier
	logger        *slog.Logger
}

// NewChatService creates a new chat service.
func NewChatService(
	conversations repository.ConversationRepository,
	products repository.ProductRepository,
	notifier Notifier,
	logger *slog.Logger,
) *ChatService {
	return &ChatService{
		conversations: conversations,
		products:      products,
		notifier:      notifier,
		logger:        logger,
	}
}

// ConversationSummary is a conversation as seen by one participant.
type ConversationSummary struct {
	domain.Conversation
	OtherUserID string `json:"other_user_id"`
	UnreadCount int    `json:"unread_count"`
}

// ReadReceipt is the payload of a conversation.read notification.
type ReadReceipt struct {
	ConversationID string    `json:"conversation_id"`
	ReaderID       string    `json:"reader_id"`
	ReadAt         time.Time `json:"read_at"`
}

// StartConversation returns the conversation between the two users about
// productID, creating it on first contact.
func (s *ChatService) StartConversation(ctx context.Context, initiatorID, recipientID string, productID *string) (*domain.Conversation, error) {
	if recipientID == "" {
		return nil, apperrors.InvalidInput("recipient id is required")
	}
	if initiatorID == recipientID {
		return nil, apperrors.InvalidInput("cannot start a conversation with yourself")
	}

	if productID != nil && *productID == "" {
		productID = nil
	}
	if productID != nil {
		if _, err := s.products.GetByID(ctx, *productID); err != nil {
			if errors.Is(err, apperrors.ErrNotFound) {
				return nil, apperrors.NotFoundMessage("product not found")
			}
			return nil, fmt.Errorf("get product for conversation: %w", err)
		}
	}

	a, b := domain.OrderedParticipants(initiatorID, recipientID)
	now := time.Now().UTC()
	conv, created, err := s.conversations.GetOrCreate(ctx, &domain.Conversation{
		ID:           uuid.NewString(),
		ParticipantA: a,
		ParticipantB: b,
		ProductID:    productID,
		CreatedAt:    now,
		UpdatedAt:    now,
	})
	if err != nil {
		return nil, fmt.Errorf("start conversation: %w", err)
	}

	if created {
		s.logger.InfoContext(ctx, "conversation started",
			slog.String("conversation_id", conv.ID),
			slog.String("initiator_id", initiatorID),
		)
	}
	return conv, nil
}

// SendMessage stores a message from senderID and notifies the other
// participant. A failed notification is logged, not returned.
func (s *ChatService) SendMessage(ctx context.Context, conversationID, senderID, body string) (*domain.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, apperrors.InvalidInput("message body is required")
	}
	if utf8.RuneCountInString(body) > domain.MaxMessageLength {
		return nil, apperrors.InvalidInput(fmt.Sprintf("message body must be at most %d characters", domain.MaxMessageLength))
	}

	conv, err := s.participantConversation(ctx, conversationID, senderID)
	if err != nil {
		return nil, err
	}
	recipientID := conv.OtherParticipant(senderID)

	msg := &domain.Message{
		ID:             uuid.NewString(),
		ConversationID: conv.ID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      time.Now().UTC(),
	}
	if err := s.conversations.AppendMessage(ctx, msg, recipientID); err != nil {
		return nil, fmt.Errorf("send message: %w", err)
	}

	if err := s.notifier.Notify(ctx, recipientID, EventMessageCreated, msg); err != nil {
		s.logger.WarnContext(ctx, "failed to push message notification",
			slog.String("conversation_id", conv.ID),
			slog.String("recipient_id", recipientID),
			slog.String("error", err.Error()),
		)
	}
	return msg, nil
}

// ListConversations returns userID's conversations, most recent first.
func (s *ChatService) ListConversations(ctx context.Context, userID string, page pagination.Params) (*pagination.Envelope[ConversationSummary], error) {
	page = page.Normalize()

	convs, total, err := s.conversations.ListByUser(ctx, userID, page)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}

	summaries := make([]ConversationSummary, 0, len(convs))
	for _, c := range convs {
		summaries = append(summaries, ConversationSummary{
			Conversation: c,
			OtherUserID:  c.OtherParticipant(userID),
			UnreadCount:  c.UnreadFor(userID),
		})
	}

	env := pagination.NewEnvelope(summaries, total, page)
	return &env, nil
}

// ListMessages returns a page of messages, newest first. Only participants
// may read a conversation.
func (s *ChatService) ListMessages(ctx context.Context, conversationID, userID string, page pagination.Params) (*pagination.Envelope[domain.Message], error) {
	if _, err := s.participantConversation(ctx, conversationID, userID); err != nil {
		return nil, err
	}

	page = page.Normalize()
	msgs, total, err := s.conversations.ListMessages(ctx, conversationID, page)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}

	env := pagination.NewEnvelope(msgs, total, page)
	return &env, nil
}

// MarkRead resets userID's unread counter and sends a read receipt to the
// other participant.
func (s *ChatService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, err := s.participantConversation(ctx, conversationID, userID)
	if err != nil {
		return err
	}

	if err := s.conversations.ResetUnread(ctx, conv.ID, userID); err != nil {
		return fmt.Errorf("mark conversation read: %w", err)
	}

	receipt := ReadReceipt{ConversationID: conv.ID, ReaderID: userID, ReadAt: time.Now().UTC()}
	if err := s.notifier.Notify(ctx, conv.OtherParticipant(userID), EventConversationRead, receipt); err != nil {
		s.logger.WarnContext(ctx, "failed to push read receipt",
			slog.String("conversation_id", conv.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// UnreadCount returns the total unread messages for userID.
func (s *ChatService) UnreadCount(ctx context.Context, userID string) (int, error) {
	n, err := s.conversations.TotalUnread(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("count unread messages: %w", err)
	}
	return n, nil
}

func (s *ChatService) participantConversation(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, apperrors.NotFoundMessage("conversation not found")
		}
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	if !conv.HasParticipant(userID) {
		return nil, apperrors.Forbidden("you are not a participant in this conversation")
	}
	return conv, nil
}
