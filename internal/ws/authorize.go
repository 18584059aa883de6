package ws

import (
	"context"
	"errors"
	"fmt"

	"servicehub/internal/realtime"
	"servicehub/internal/service"
)

var errNotAllowed = errors.New("subscription not allowed")

// publicTables carry catalogue data anyone may watch unfiltered.
var publicTables = map[string]bool{
	service.TableServices: true,
	service.TableReviews:  true,
}

var knownTables = map[string]bool{
	service.TableProfiles:      true,
	service.TableServices:      true,
	service.TableBookings:      true,
	service.TableConversations: true,
	service.TableMessages:      true,
	service.TableReviews:       true,
}

// authorize restricts a subscription to rows the caller may see. Private
// tables need a filter naming the caller or a conversation they are in.
func authorize(ctx context.Context, convs Conversations, userID string, sub realtime.Subscription) error {
	if !knownTables[sub.Table] {
		return fmt.Errorf("unknown table %q", sub.Table)
	}
	if publicTables[sub.Table] {
		return nil
	}

	f := sub.Filter
	switch f.Column {
	case "":
		return fmt.Errorf("%w: %s requires a filter", errNotAllowed, sub.Table)
	case "customer_id", "provider_id", "sender_id":
		if f.Value == userID {
			return nil
		}
	case "conversation_id":
		return requireParticipant(ctx, convs, f.Value, userID)
	case "id":
		if sub.Table == service.TableConversations {
			return requireParticipant(ctx, convs, f.Value, userID)
		}
		if f.Value == userID {
			return nil
		}
	}
	return fmt.Errorf("%w: filter %s", errNotAllowed, f)
}

func requireParticipant(ctx context.Context, convs Conversations, convID, userID string) error {
	ok, err := convs.IsParticipant(ctx, convID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: not a participant of %s", errNotAllowed, convID)
	}
	return nil
}
