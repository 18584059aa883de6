package service

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/security"
)

// MaxMessageLength is the longest message text accepted, in runes.
const MaxMessageLength = 5000

// ConversationService manages customer/provider threads and their messages.
// Message text and last_message are encrypted at rest when enc is non-nil.
type ConversationService struct {
	conversations domain.ConversationRepository
	messages      domain.MessageRepository
	profiles      domain.ProfileRepository
	enc           *security.Encryptor
	pub           realtime.Publisher

	Now Clock
}

func NewConversationService(
	conversations domain.ConversationRepository,
	messages domain.MessageRepository,
	profiles domain.ProfileRepository,
	enc *security.Encryptor,
	pub realtime.Publisher,
) *ConversationService {
	return &ConversationService{
		conversations: conversations,
		messages:      messages,
		profiles:      profiles,
		enc:           enc,
		pub:           publisherOrNop(pub),
	}
}

// CreateConversationInput names both sides of the pair. InitiatedBy is the
// side opening the thread and sending InitialMessage; empty means customer.
type CreateConversationInput struct {
	CustomerID     string
	ProviderID     string
	ServiceID      *string
	InitialMessage string
	InitiatedBy    domain.Role
}

// CreateOrGet returns the conversation of the (customer, provider) pair,
// creating it when absent. The initial message is only appended to a new
// conversation; on an existing one it is ignored. A provider-initiated
// thread requires the provider side to hold the provider role.
func (s *ConversationService) CreateOrGet(ctx context.Context, in CreateConversationInput) (*domain.Conversation, error) {
	if in.CustomerID == "" || in.ProviderID == "" {
		return nil, domain.Invalidf("customer_id and provider_id are required")
	}
	if in.CustomerID == in.ProviderID {
		return nil, domain.Invalidf("cannot start a conversation with yourself")
	}
	if in.InitiatedBy == "" {
		in.InitiatedBy = domain.RoleCustomer
	}
	if !in.InitiatedBy.Valid() {
		return nil, domain.Invalidf("invalid role %q", in.InitiatedBy)
	}
	if utf8.RuneCountInString(in.InitialMessage) > MaxMessageLength {
		return nil, domain.Invalidf("message exceeds %d characters", MaxMessageLength)
	}
	provider, err := s.profiles.GetByID(ctx, in.ProviderID)
	if err != nil {
		return nil, fmt.Errorf("get provider: %w", err)
	}
	if provider == nil {
		return nil, domain.NotFoundf("provider %s", in.ProviderID)
	}
	if in.InitiatedBy == domain.RoleProvider && provider.UserType != domain.RoleProvider {
		return nil, fmt.Errorf("only providers can start a conversation with a customer: %w", domain.ErrForbidden)
	}

	c := &domain.Conversation{
		CustomerID: in.CustomerID,
		ProviderID: in.ProviderID,
		ServiceID:  emptyToNil(in.ServiceID),
	}

	var initial *domain.Message
	if strings.TrimSpace(in.InitialMessage) != "" {
		enc, err := s.enc.Encrypt(in.InitialMessage)
		if err != nil {
			return nil, fmt.Errorf("encrypt message: %w", err)
		}
		now := clockOrNow(s.Now)().UTC()
		c.LastMessage = &enc
		c.LastMessageAt = &now
		sender := in.CustomerID
		if in.InitiatedBy == domain.RoleProvider {
			sender = in.ProviderID
			c.CustomerUnread = 1
		} else {
			c.ProviderUnread = 1
		}
		initial = &domain.Message{
			SenderID:  sender,
			Text:      enc,
			CreatedAt: now,
		}
	}

	created, err := s.conversations.CreateIfAbsent(ctx, c, initial)
	if err != nil {
		return nil, fmt.Errorf("create conversation: %w", err)
	}
	if !created {
		s.decryptConversation(c)
		return c, nil
	}

	conv, err := s.load(ctx, c.ID)
	if err != nil {
		return nil, err
	}
	s.pub.Publish(conversationChange(realtime.EventInsert, conv))
	if initial != nil {
		msg := *initial
		msg.Text = in.InitialMessage
		s.pub.Publish(messageChange(&msg))
	}
	return conv, nil
}

type SendMessageInput struct {
	ConversationID string
	SenderID       string
	Text           string
	ClientID       *string
}

// Send appends a message and bumps the recipient's unread counter.
func (s *ConversationService) Send(ctx context.Context, in SendMessageInput) (*domain.Message, error) {
	if strings.TrimSpace(in.Text) == "" {
		return nil, domain.Invalidf("message cannot be empty")
	}
	if utf8.RuneCountInString(in.Text) > MaxMessageLength {
		return nil, domain.Invalidf("message exceeds %d characters", MaxMessageLength)
	}

	conv, role, err := s.participant(ctx, in.ConversationID, in.SenderID)
	if err != nil {
		return nil, err
	}
	recipient := domain.RoleProvider
	if role == domain.RoleProvider {
		recipient = domain.RoleCustomer
	}

	enc, err := s.enc.Encrypt(in.Text)
	if err != nil {
		return nil, fmt.Errorf("encrypt message: %w", err)
	}
	m := &domain.Message{
		ConversationID: conv.ID,
		SenderID:       in.SenderID,
		Text:           enc,
		ClientID:       emptyToNil(in.ClientID),
		CreatedAt:      clockOrNow(s.Now)().UTC(),
	}
	if err := s.conversations.AppendMessage(ctx, m, recipient); err != nil {
		return nil, fmt.Errorf("append message: %w", err)
	}

	saved, err := s.messages.GetByID(ctx, m.ID)
	if err != nil {
		return nil, fmt.Errorf("reload message: %w", err)
	}
	if saved == nil {
		saved = m
	}
	saved.Text = in.Text
	s.pub.Publish(messageChange(saved))

	if updated, err := s.load(ctx, conv.ID); err == nil {
		s.pub.Publish(conversationChange(realtime.EventUpdate, updated))
	}
	return saved, nil
}

// MarkRead zeroes the unread counter of the caller's side only.
func (s *ConversationService) MarkRead(ctx context.Context, conversationID, userID string) error {
	conv, role, err := s.participant(ctx, conversationID, userID)
	if err != nil {
		return err
	}
	if err := s.conversations.ResetUnread(ctx, conv.ID, role); err != nil {
		return err
	}
	if updated, err := s.load(ctx, conv.ID); err == nil {
		s.pub.Publish(conversationChange(realtime.EventUpdate, updated))
	}
	return nil
}

// Messages returns the thread in chronological order.
func (s *ConversationService) Messages(ctx context.Context, conversationID, userID string) ([]*domain.Message, error) {
	if _, _, err := s.participant(ctx, conversationID, userID); err != nil {
		return nil, err
	}
	msgs, err := s.messages.ListForConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	for _, m := range msgs {
		m.Text = s.enc.DecryptOrRaw(m.Text)
	}
	return msgs, nil
}

func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]*domain.Conversation, error) {
	convs, err := s.conversations.ListForUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	for _, c := range convs {
		s.decryptConversation(c)
	}
	return convs, nil
}

// TotalUnread sums the caller's unread counters on the given side.
func (s *ConversationService) TotalUnread(ctx context.Context, userID string, role domain.Role) (int, error) {
	if !role.Valid() {
		return 0, domain.Invalidf("invalid role %q", role)
	}
	return s.conversations.TotalUnread(ctx, userID, role)
}

func (s *ConversationService) Get(ctx context.Context, conversationID, userID string) (*domain.Conversation, error) {
	conv, _, err := s.participant(ctx, conversationID, userID)
	if err != nil {
		return nil, err
	}
	s.decryptConversation(conv)
	return conv, nil
}

// IsParticipant reports whether userID is on either side of the conversation.
// A missing conversation is reported as false.
func (s *ConversationService) IsParticipant(ctx context.Context, conversationID, userID string) (bool, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return false, err
	}
	if conv == nil {
		return false, nil
	}
	_, ok := conv.RoleOf(userID)
	return ok, nil
}

func (s *ConversationService) participant(ctx context.Context, conversationID, userID string) (*domain.Conversation, domain.Role, error) {
	conv, err := s.conversations.GetByID(ctx, conversationID)
	if err != nil {
		return nil, "", fmt.Errorf("get conversation: %w", err)
	}
	if conv == nil {
		return nil, "", domain.NotFoundf("conversation %s", conversationID)
	}
	role, ok := conv.RoleOf(userID)
	if !ok {
		return nil, "", fmt.Errorf("not a participant of this conversation: %w", domain.ErrForbidden)
	}
	return conv, role, nil
}

func (s *ConversationService) load(ctx context.Context, id string) (*domain.Conversation, error) {
	conv, err := s.conversations.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("reload conversation: %w", err)
	}
	if conv == nil {
		return nil, domain.NotFoundf("conversation %s", id)
	}
	s.decryptConversation(conv)
	return conv, nil
}

func (s *ConversationService) decryptConversation(c *domain.Conversation) {
	if c.LastMessage != nil {
		c.LastMessage = ptr(s.enc.DecryptOrRaw(*c.LastMessage))
	}
}
