package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/utafrali/marketplace/internal/domain"
	"github.com/utafrali/marketplace/internal/repository"
	"github.com/utafrali/marketplace/pkg/database"
	apperrors "github.com/utafrali/marketplace/pkg/errors"
	"github.com/utafrali/marketplace/pkg/pagination"
)

const conversationColumns = `id, participant_a, participant_b, product_id, unread_a, unread_b,
	last_message, last_message_at, created_at, updated_at`

const messageColumns = `id, conversation_id, sender_id, body, created_at`

// ConversationRepository implements chat persistence using PostgreSQL.
type ConversationRepository struct {
	db database.DBTX
}

// NewConversationRepository creates a new PostgreSQL-backed conversation repository.
func NewConversationRepository(db database.DBTX) *ConversationRepository {
	return &ConversationRepository{db: db}
}

var _ repository.ConversationRepository = (*ConversationRepository)(nil)

// GetOrCreate inserts conv unless a conversation for the same pair and
// product exists, in which case the existing row is returned.
func (r *ConversationRepository) GetOrCreate(ctx context.Context, conv *domain.Conversation) (result *domain.Conversation, created bool, err error) {
	insert := `
		INSERT INTO conversations (` + conversationColumns + `)
		VALUES ($1, $2, $3, $4, 0, 0, NULL, NULL, $5, $6)
		ON CONFLICT DO NOTHING
		RETURNING ` + conversationColumns

	ctx, end := database.TraceQuery(ctx, "conversations.get_or_create", insert)
	defer func() { end(err) }()

	result, err = scanConversation(r.db.QueryRow(ctx, insert,
		conv.ID, conv.ParticipantA, conv.ParticipantB, conv.ProductID, conv.CreatedAt, conv.UpdatedAt,
	))
	if err == nil {
		return result, true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, fmt.Errorf("insert conversation: %w", err)
	}

	lookup := `
		SELECT ` + conversationColumns + `
		FROM conversations
		WHERE participant_a = $1 AND participant_b = $2 AND product_id IS NOT DISTINCT FROM $3`

	result, err = scanConversation(r.db.QueryRow(ctx, lookup, conv.ParticipantA, conv.ParticipantB, conv.ProductID))
	if err != nil {
		return nil, false, fmt.Errorf("get existing conversation: %w", err)
	}
	return result, false, nil
}

// GetByID retrieves a conversation by its ID.
func (r *ConversationRepository) GetByID(ctx context.Context, id string) (c *domain.Conversation, err error) {
	query := `SELECT ` + conversationColumns + ` FROM conversations WHERE id = $1`

	ctx, end := database.TraceQuery(ctx, "conversations.get", query)
	defer func() { end(err) }()

	c, err = scanConversation(r.db.QueryRow(ctx, query, id))
	if isMissingRow(err) {
		return nil, apperrors.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation %s: %w", id, err)
	}
	return c, nil
}

// ListByUser returns the user's conversations, most recently active first.
func (r *ConversationRepository) ListByUser(ctx context.Context, userID string, page pagination.Params) (convs []domain.Conversation, total int, err error) {
	page = page.Normalize()
	query := `
		SELECT ` + conversationColumns + `, count(*) OVER() AS total_count
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1
		ORDER BY last_message_at DESC NULLS LAST, created_at DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "conversations.list_by_user", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, userID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	convs = []domain.Conversation{}
	for rows.Next() {
		var c domain.Conversation
		if err := rows.Scan(append(conversationDest(&c), &total)...); err != nil {
			return nil, 0, fmt.Errorf("scan conversation row: %w", err)
		}
		convs = append(convs, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate conversation rows: %w", err)
	}
	return convs, total, nil
}

// AppendMessage stores msg and bumps the conversation preview and the
// recipient's unread counter atomically.
func (r *ConversationRepository) AppendMessage(ctx context.Context, msg *domain.Message, recipientID string) (err error) {
	insert := `INSERT INTO messages (` + messageColumns + `) VALUES ($1, $2, $3, $4, $5)`
	bump := `
		UPDATE conversations
		SET last_message = $1,
		    last_message_at = $2,
		    updated_at = $2,
		    unread_a = unread_a + CASE WHEN participant_a = $3 THEN 1 ELSE 0 END,
		    unread_b = unread_b + CASE WHEN participant_b = $3 THEN 1 ELSE 0 END
		WHERE id = $4`

	ctx, end := database.TraceQuery(ctx, "conversations.append_message", insert)
	defer func() { end(err) }()

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin message transaction: %w", err)
	}

	if _, err = tx.Exec(ctx, insert, msg.ID, msg.ConversationID, msg.SenderID, msg.Body, msg.CreatedAt); err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("insert message: %w", err)
	}

	ct, err := tx.Exec(ctx, bump, msg.Body, msg.CreatedAt, recipientID, msg.ConversationID)
	if err != nil {
		_ = tx.Rollback(ctx)
		return fmt.Errorf("update conversation preview: %w", err)
	}
	if ct.RowsAffected() == 0 {
		_ = tx.Rollback(ctx)
		return apperrors.ErrNotFound
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit message transaction: %w", err)
	}
	return nil
}

// ListMessages returns messages of a conversation, newest first.
func (r *ConversationRepository) ListMessages(ctx context.Context, conversationID string, page pagination.Params) (msgs []domain.Message, total int, err error) {
	page = page.Normalize()
	query := `
		SELECT ` + messageColumns + `, count(*) OVER() AS total_count
		FROM messages
		WHERE conversation_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3`

	ctx, end := database.TraceQuery(ctx, "messages.list", query)
	defer func() { end(err) }()

	rows, err := r.db.Query(ctx, query, conversationID, page.Limit, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	msgs = []domain.Message{}
	for rows.Next() {
		var m domain.Message
		if err := rows.Scan(&m.ID, &m.ConversationID, &m.SenderID, &m.Body, &m.CreatedAt, &total); err != nil {
			return nil, 0, fmt.Errorf("scan message row: %w", err)
		}
		msgs = append(msgs, m)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate message rows: %w", err)
	}
	return msgs, total, nil
}

// ResetUnread zeroes userID's unread counter on the conversation.
func (r *ConversationRepository) ResetUnread(ctx context.Context, conversationID, userID string) (err error) {
	query := `
		UPDATE conversations
		SET unread_a = CASE WHEN participant_a = $2 THEN 0 ELSE unread_a END,
		    unread_b = CASE WHEN participant_b = $2 THEN 0 ELSE unread_b END,
		    updated_at = $3
		WHERE id = $1 AND (participant_a = $2 OR participant_b = $2)`

	ctx, end := database.TraceQuery(ctx, "conversations.reset_unread", query)
	defer func() { end(err) }()

	ct, err := r.db.Exec(ctx, query, conversationID, userID, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	if ct.RowsAffected() == 0 {
		return apperrors.ErrNotFound
	}
	return nil
}

// TotalUnread sums userID's unread counters across all conversations.
func (r *ConversationRepository) TotalUnread(ctx context.Context, userID string) (total int, err error) {
	query := `
		SELECT COALESCE(SUM(CASE WHEN participant_a = $1 THEN unread_a ELSE unread_b END), 0)::int
		FROM conversations
		WHERE participant_a = $1 OR participant_b = $1`

	ctx, end := database.TraceQuery(ctx, "conversations.total_unread", query)
	defer func() { end(err) }()

	if err = r.db.QueryRow(ctx, query, userID).Scan(&total); err != nil {
		return 0, fmt.Errorf("count unread: %w", err)
	}
	return total, nil
}

func conversationDest(c *domain.Conversation) []any {
	return []any{
		&c.ID, &c.ParticipantA, &c.ParticipantB, &c.ProductID, &c.UnreadA, &c.UnreadB,
		&c.LastMessage, &c.LastMessageAt, &c.CreatedAt, &c.UpdatedAt,
	}
}

func scanConversation(row pgx.Row) (*domain.Conversation, error) {
	var c domain.Conversation
	if err := row.Scan(conversationDest(&c)...); err != nil {
		return nil, err
	}
	return &c, nil
}
