package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"servicehub/internal/domain"
)

type ConversationRepo struct {
	db *sql.DB
}

func NewConversationRepo(db *sql.DB) *ConversationRepo {
	return &ConversationRepo{db: db}
}

var _ domain.ConversationRepository = (*ConversationRepo)(nil)

const conversationSelect = `
	SELECT c.id, c.customer_id, c.provider_id, c.service_id, c.last_message, c.last_message_at,
		c.customer_unread, c.provider_unread, c.created_at, c.updated_at,
		cp.full_name, cp.avatar_url, pp.full_name, pp.avatar_url, s.title
	FROM conversations c
	LEFT JOIN profiles cp ON cp.id = c.customer_id
	LEFT JOIN profiles pp ON pp.id = c.provider_id
	LEFT JOIN services s ON s.id = c.service_id
`

func (r *ConversationRepo) CreateIfAbsent(ctx context.Context, c *domain.Conversation, initial *domain.Message) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	c.CreatedAt, c.UpdatedAt = now, now

	res, err := tx.ExecContext(ctx, `
		INSERT INTO conversations (
			id, customer_id, provider_id, service_id, last_message, last_message_at,
			customer_unread, provider_unread, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (customer_id, provider_id) DO NOTHING
	`,
		c.ID, c.CustomerID, c.ProviderID, nullString(c.ServiceID), c.LastMessage, c.LastMessageAt,
		c.CustomerUnread, c.ProviderUnread, c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return false, fmt.Errorf("insert conversation: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}

	if n == 0 {
		existing, err := scanConversation(tx.QueryRowContext(ctx,
			conversationSelect+` WHERE c.customer_id = ? AND c.provider_id = ?`, c.CustomerID, c.ProviderID))
		if err != nil {
			return false, fmt.Errorf("load existing conversation: %w", err)
		}
		*c = *existing
		return false, tx.Commit()
	}

	if initial != nil {
		initial.ConversationID = c.ID
		if err := insertMessage(ctx, tx, initial); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func (r *ConversationRepo) GetByID(ctx context.Context, id string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx, conversationSelect+` WHERE c.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) GetByPair(ctx context.Context, customerID, providerID string) (*domain.Conversation, error) {
	c, err := scanConversation(r.db.QueryRowContext(ctx,
		conversationSelect+` WHERE c.customer_id = ? AND c.provider_id = ?`, customerID, providerID))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get conversation by pair: %w", err)
	}
	return c, nil
}

func (r *ConversationRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	return r.list(ctx, conversationSelect+`
		WHERE c.customer_id = ? OR c.provider_id = ?
		ORDER BY c.updated_at DESC
	`, userID, userID)
}

func (r *ConversationRepo) ListByRole(ctx context.Context, userID string, role domain.Role) ([]*domain.Conversation, error) {
	return r.list(ctx, conversationSelect+`
		WHERE c.`+role.Column()+` = ?
		ORDER BY c.updated_at DESC
	`, userID)
}

func (r *ConversationRepo) list(ctx context.Context, query string, args ...any) ([]*domain.Conversation, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
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
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertMessage(ctx, tx, m); err != nil {
		return err
	}

	counter := unreadColumn(recipient)
	res, err := tx.ExecContext(ctx, `
		UPDATE conversations
		SET last_message = ?, last_message_at = ?, updated_at = ?, `+counter+` = `+counter+` + 1
		WHERE id = ?
	`, m.Text, m.CreatedAt, m.CreatedAt, m.ConversationID)
	if err != nil {
		return fmt.Errorf("update conversation: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *ConversationRepo) ResetUnread(ctx context.Context, id string, role domain.Role) error {
	_, err := r.db.ExecContext(ctx, `UPDATE conversations SET `+unreadColumn(role)+` = 0 WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("reset unread: %w", err)
	}
	return nil
}

func (r *ConversationRepo) TotalUnread(ctx context.Context, userID string, role domain.Role) (int, error) {
	var total int
	err := r.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(`+unreadColumn(role)+`), 0)
		FROM conversations
		WHERE `+role.Column()+` = ?
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

func insertMessage(ctx context.Context, tx *sql.Tx, m *domain.Message) error {
	if m.ID == "" {
		m.ID = uuid.NewString()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, conversation_id, sender_id, message, client_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, m.ID, m.ConversationID, m.SenderID, m.Text, nullString(m.ClientID), m.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func scanConversation(s scanner) (*domain.Conversation, error) {
	c := &domain.Conversation{}
	var customerName, providerName sql.NullString
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
		&customerName,
		&c.CustomerAvatar,
		&providerName,
		&c.ProviderAvatar,
		&c.ServiceTitle,
	)
	if err != nil {
		return nil, err
	}
	c.CustomerName = customerName.String
	c.ProviderName = providerName.String
	return c, nil
}
