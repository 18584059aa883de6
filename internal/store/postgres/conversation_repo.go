package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"servicehub/internal/domain"
)

type ConversationRepo struct {
	pool *pgxpool.Pool
}

func NewConversationRepo(pool *pgxpool.Pool) *ConversationRepo {
	return &ConversationRepo{pool: pool}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationSelect = `
	SELECT c.id, c.customer_id, c.provider_id, c.service_id, c.last_message, c.last_message_at,
		c.customer_unread, c.provider_unread, c.created_at, c.updated_at,
		COALESCE(cp.full_name, ''), cp.avatar_url, COALESCE(pp.full_name, ''), pp.avatar_url, s.title
	FROM conversations c
	LEFT JOIN profiles cp ON cp.id = c.customer_id
	LEFT JOIN profiles pp ON pp.id = c.provider_id
	LEFT JOIN services s ON s.id = c.service_id
`

func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, c *domain.Conversation, initial *domain.Message) (bool, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	tag, err := tx.Exec(ctx, `
		INSERT INTO conversations (
			id, customer_id, provider_id, service_id, last_message, last_message_at,
			customer_unread, provider_unread, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (customer_id, provider_id) DO NOTHING
	`,
		c.ID, c.CustomerID, c.ProviderID, nullString(c.ServiceID), c.LastMessage, c.LastMessageAt,
		c.CustomerUnread, c.ProviderUnread, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert conversation: %w", err)
	}

	if tag.RowsAffected() == 0 {
		existing, err := scanConversation(tx.QueryRow(ctx,
			conversationSelect+` WHERE c.customer_id = $1 AND c.provider_id = $2`, c.CustomerID, c.ProviderID))
		if err != nil {
			return false, fmt.Errorf("load existing conversation: %w", err)
		}
		*c = *existing
		return false, tx.Commit(ctx)
	}

	if initial != nil {
		initial.ConversationID = c.ID
		if err := insertMessage(ctx, tx, initial); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx, conversationSelect+` WHERE c.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, customerID, providerID string) (*domain.Conversation, error) {
	c, err := scanConversation(r.pool.QueryRow(ctx,
		conversationSelect+` WHERE c.customer_id = $1 AND c.provider_id = $2`, customerID, providerID))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by pair: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return r.list(ctx, conversationSelect+`
		WHERE c.customer_id = $1 OR c.provider_id = $1
		ORDER BY c.updated_at DESC
	`, userID)
}

func (r *ConversationRepo) ListByRole(ctx context.Context, userID string, role domain.Role) ([]*domain.Conversation, error) {
	return r.list(ctx, conversationSelect+`
		WHERE c.`+role.Column()+` = $1
		ORDER BY c.updated_at DESC
	`, userID)
}

func (r *ConversationRepo) list(ctx context.Context, query string, params ...any) ([]*domain.Conversation, error) {
	rows, err := r.pool.Query(ctx, query, params...)
	if err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	defer rows.Close()

	var res []*domain.Conversation
	for rows.Next() {
		c, err := scanConversation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ConversationRepo) AppendMessage(ctx context.Context, m *domain.Message, recipient domain.Role) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Lock the row first so a missing parent surfaces as not found rather than an FK error.
	var exists bool
	err = tx.QueryRow(ctx, `SELECT TRUE FROM conversations WHERE id = $1 FOR UPDATE`, m.ConversationID).Scan(&exists)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("lock conversation: %w", err)
	}

	if err := insertMessage(ctx, tx, m); err != nil {
		return err
	}

	counter := unreadColumn(recipient)
	_, err = tx.Exec(ctx, `
		UPDATE conversations
		SET last_message = $1, last_message_at = $2, updated_at = $2, `+counter+` = `+counter+` + 1
		WHERE id = $3
	`, m.Text, m.CreatedAt, m.ConversationID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, id string, role domain.Role) error {
	_, err := r.pool.Exec(ctx, `UPDATE conversations SET `+unreadColumn(role)+` = 0 WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

func (r *ConversationRepo) TotalUnread(ctx context.Context, userID string, role domain.Role) (int, error) {
	var total int
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(`+unreadColumn(role)+`), 0)::INTEGER
		FROM conversations
		WHERE `+role.Column()+` = $1
	`, userID).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("total unread: %w", err)
	}
	return total, nil
}

func unreadColumn(role domain.Role) string {
	if role == domain.RoleProvider {
		return "provider_unread"
	}
	return "customer_unread"
}

func insertMessage(ctx context.Context, tx pgx.Tx, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, message, client_id, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, m.ID, m.ConversationID, m.SenderID, m.Text, nullString(m.ClientID), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func scanConversation(s scanner) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	err := s.Scan(
		&c.ID,
		&c.CustomerID,
		&c.ProviderID,
		&c.ServiceID,
		&c.LastMessage,
		&c.LastMessageAt,
		&c.CustomerUnread,
		&c.ProviderUnread,
		&c.CreatedAt,
		&c.UpdatedAt,
		&c.CustomerName,
		&c.CustomerAvatar,
		&c.ProviderName,
		&c.ProviderAvatar,
		&c.ServiceTitle,
	)
	if err != nil {
		return nil, err
	}
	return c, nil
}
