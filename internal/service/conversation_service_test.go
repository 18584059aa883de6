package service_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/security"
	"servicehub/internal/service"
)

func newConversationService(t *testing.T, repos domain.Repositories, enc *security.Encryptor, pub realtime.Publisher) *service.ConversationService {
	t.Helper()
	return service.NewConversationService(repos.Conversations, repos.Messages, repos.Profiles, enc, pub)
}

func TestCreateOrGet(t *testing.T) {
	repos := openRepos(t)
	ctx := context.Background()
	customer := seedProfile(t, repos, "cathy", domain.RoleCustomer)
	provider := seedProfile(t, repos, "pete", domain.RoleProvider)
	pub := &recorder{}
	svc := newConversationService(t, repos, nil, pub)

	t.Run("NewWithInitialMessage", func(t *testing.T) {
		conv, err := svc.CreateOrGet(ctx, service.CreateConversationInput{
			CustomerID:     customer.ID,
			ProviderID:     provider.ID,
			InitialMessage: "Hi",
		})
		require.NoError(t, err)
		assert.Equal(t, 1, conv.ProviderUnread)
		assert.Equal(t, 0, conv.CustomerUnread)
		require.NotNil(t, conv.LastMessage)
		assert.Equal(t, "Hi", *conv.LastMessage)
		assert.Equal(t, "pete", conv.ProviderName)

		msgs, err := svc.Messages(ctx, conv.ID, customer.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, customer.ID, msgs[0].SenderID)
		assert.Equal(t, "Hi", msgs[0].Text)

		assert.Len(t, pub.forTable(service.TableConversations), 1)
		assert.Len(t, pub.forTable(service.TableMessages), 1)
	})

	t.Run("ExistingPairIsReturnedUnchanged", func(t *testing.T) {
		first, err := svc.CreateOrGet(ctx, service.CreateConversationInput{CustomerID: customer.ID, ProviderID: provider.ID})
		require.NoError(t, err)
		second, err := svc.CreateOrGet(ctx, service.CreateConversationInput{
			CustomerID:     customer.ID,
			ProviderID:     provider.ID,
			InitialMessage: "Hello again",
		})
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID)
		assert.Equal(t, "Hi", *second.LastMessage)
		assert.Equal(t, 1, second.ProviderUnread)

		msgs, err := svc.Messages(ctx, first.ID, provider.ID)
		require.NoError(t, err)
		assert.Len(t, msgs, 1)
	})

	t.Run("ProviderInitiated", func(t *testing.T) {
		dana := seedProfile(t, repos, "dana", domain.RoleCustomer)
		conv, err := svc.CreateOrGet(ctx, service.CreateConversationInput{
			CustomerID:     dana.ID,
			ProviderID:     provider.ID,
			InitialMessage: "Hi",
			InitiatedBy:    domain.RoleProvider,
		})
		require.NoError(t, err)
		assert.Equal(t, 0, conv.ProviderUnread)
		assert.Equal(t, 1, conv.CustomerUnread)

		msgs, err := svc.Messages(ctx, conv.ID, dana.ID)
		require.NoError(t, err)
		require.Len(t, msgs, 1)
		assert.Equal(t, provider.ID, msgs[0].SenderID)

		// A customer cannot take the provider side.
		_, err = svc.CreateOrGet(ctx, service.CreateConversationInput{
			CustomerID:     dana.ID,
			ProviderID:     customer.ID,
			InitialMessage: "I owe you money",
			InitiatedBy:    domain.RoleProvider,
		})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = svc.CreateOrGet(ctx, service.CreateConversationInput{
			CustomerID:  dana.ID,
			ProviderID:  provider.ID,
			InitiatedBy: domain.Role("admin"),
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Validation", func(t *testing.T) {
		_, err := svc.CreateOrGet(ctx, service.CreateConversationInput{CustomerID: customer.ID, ProviderID: customer.ID})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.CreateOrGet(ctx, service.CreateConversationInput{CustomerID: customer.ID, ProviderID: "missing"})
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestSendAndMarkRead(t *testing.T) {
	repos := openRepos(t)
	ctx := context.Background()
	customer := seedProfile(t, repos, "cathy", domain.RoleCustomer)
	provider := seedProfile(t, repos, "pete", domain.RoleProvider)
	stranger := seedProfile(t, repos, "sam", domain.RoleCustomer)
	pub := &recorder{}
	svc := newConversationService(t, repos, nil, pub)

	conv, err := svc.CreateOrGet(ctx, service.CreateConversationInput{CustomerID: customer.ID, ProviderID: provider.ID})
	require.NoError(t, err)

	clientID := "tmp-1"
	msg, err := svc.Send(ctx, service.SendMessageInput{
		ConversationID: conv.ID,
		SenderID:       customer.ID,
		Text:           "Are you free Monday?",
		ClientID:       &clientID,
	})
	require.NoError(t, err)
	require.NotNil(t, msg.ClientID)
	assert.Equal(t, "tmp-1", *msg.ClientID)
	assert.Equal(t, "cathy", msg.SenderName)

	_, err = svc.Send(ctx, service.SendMessageInput{ConversationID: conv.ID, SenderID: provider.ID, Text: "Yes"})
	require.NoError(t, err)
	_, err = svc.Send(ctx, service.SendMessageInput{ConversationID: conv.ID, SenderID: provider.ID, Text: "9am works"})
	require.NoError(t, err)

	got, err := svc.Get(ctx, conv.ID, customer.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, got.ProviderUnread)
	assert.Equal(t, 2, got.CustomerUnread)
	assert.Equal(t, "9am works", *got.LastMessage)

	unread, err := svc.TotalUnread(ctx, customer.ID, domain.RoleCustomer)
	require.NoError(t, err)
	assert.Equal(t, 2, unread)

	msgs := pub.forTable(service.TableMessages)
	require.Len(t, msgs, 3)
	assert.Equal(t, conv.ID, msgs[0].Keys["conversation_id"])
	assert.Equal(t, customer.ID, msgs[0].Keys["sender_id"])
	assert.Equal(t, "Are you free Monday?", msgs[0].Record.(*domain.Message).Text)

	t.Run("MarkReadZeroesOnlyCallerSide", func(t *testing.T) {
		require.NoError(t, svc.MarkRead(ctx, conv.ID, customer.ID))
		got, err := svc.Get(ctx, conv.ID, provider.ID)
		require.NoError(t, err)
		assert.Equal(t, 0, got.CustomerUnread)
		assert.Equal(t, 1, got.ProviderUnread)
	})

	t.Run("Rejections", func(t *testing.T) {
		_, err := svc.Send(ctx, service.SendMessageInput{ConversationID: conv.ID, SenderID: stranger.ID, Text: "hey"})
		assert.ErrorIs(t, err, domain.ErrForbidden)

		_, err = svc.Send(ctx, service.SendMessageInput{ConversationID: conv.ID, SenderID: customer.ID, Text: "   "})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.Send(ctx, service.SendMessageInput{ConversationID: conv.ID, SenderID: customer.ID, Text: strings.Repeat("é", 5001)})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)

		_, err = svc.Send(ctx, service.SendMessageInput{ConversationID: "missing", SenderID: customer.ID, Text: "hi"})
		assert.ErrorIs(t, err, domain.ErrNotFound)

		_, err = svc.Messages(ctx, conv.ID, stranger.ID)
		assert.ErrorIs(t, err, domain.ErrForbidden)

		ok, err := svc.IsParticipant(ctx, conv.ID, stranger.ID)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("ListForUser", func(t *testing.T) {
		list, err := svc.ListForUser(ctx, provider.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, conv.ID, list[0].ID)
	})
}

func TestMessagesEncryptedAtRest(t *testing.T) {
	repos := openRepos(t)
	ctx := context.Background()
	customer := seedProfile(t, repos, "cathy", domain.RoleCustomer)
	provider := seedProfile(t, repos, "pete", domain.RoleProvider)

	key, err := security.GenerateKey()
	require.NoError(t, err)
	enc, err := security.NewEncryptor(key, nil)
	require.NoError(t, err)
	svc := newConversationService(t, repos, enc, nil)

	conv, err := svc.CreateOrGet(ctx, service.CreateConversationInput{
		CustomerID:     customer.ID,
		ProviderID:     provider.ID,
		InitialMessage: "my address is 1 Main St",
	})
	require.NoError(t, err)
	assert.Equal(t, "my address is 1 Main St", *conv.LastMessage)

	raw, err := repos.Messages.ListForConversation(ctx, conv.ID)
	require.NoError(t, err)
	require.Len(t, raw, 1)
	assert.NotContains(t, raw[0].Text, "Main St")

	stored, err := repos.Conversations.GetByID(ctx, conv.ID)
	require.NoError(t, err)
	assert.NotContains(t, *stored.LastMessage, "Main St")

	msgs, err := svc.Messages(ctx, conv.ID, provider.ID)
	require.NoError(t, err)
	assert.Equal(t, "my address is 1 Main St", msgs[0].Text)
}
