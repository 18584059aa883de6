package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"servicehub/internal/domain"
	"servicehub/internal/realtime"
	"servicehub/internal/security"
	"servicehub/internal/service"
)

const maxSubscriptions = 32

// Feed is the change stream sockets subscribe to.
type Feed interface {
	Subscribe(sub realtime.Subscription, fn func(realtime.Change)) (func(), error)
}

// Conversations is the messaging surface the socket exposes.
type Conversations interface {
	Send(ctx context.Context, in service.SendMessageInput) (*domain.Message, error)
	Get(ctx context.Context, conversationID, userID string) (*domain.Conversation, error)
	IsParticipant(ctx context.Context, conversationID, userID string) (bool, error)
}

// inbound is any client frame; fields are used per type.
type inbound struct {
	Type           string  `json:"type"`
	ID             string  `json:"id"`
	Table          string  `json:"table"`
	Event          string  `json:"event"`
	Filter         string  `json:"filter"`
	ConversationID string  `json:"conversation_id"`
	Text           string  `json:"text"`
	ClientID       *string `json:"client_id"`
}

type changeFrame struct {
	Type         string             `json:"type"`
	Subscription string             `json:"subscription"`
	Table        string             `json:"table"`
	Event        realtime.EventType `json:"event"`
	Record       any                `json:"record"`
	At           time.Time          `json:"at"`
}

type errorFrame struct {
	Type     string  `json:"type"`
	ID       string  `json:"id,omitempty"`
	ClientID *string `json:"client_id,omitempty"`
	Message  string  `json:"message"`
}

type wsAuthError struct {
	status int
	msg    string
}

func (e wsAuthError) Error() string {
	return e.msg
}

func normalizeAllowedOrigins(origins []string) map[string]struct{} {
	res := make(map[string]struct{}, len(origins))
	for _, origin := range origins {
		o := strings.TrimSpace(strings.ToLower(origin))
		if o != "" {
			res[o] = struct{}{}
		}
	}
	return res
}

// makeCheckOrigin allows listed browser origins. "*" allows any origin,
// including clients that send none.
func makeCheckOrigin(allowedOrigins []string) func(r *http.Request) bool {
	allowed := normalizeAllowedOrigins(allowedOrigins)
	if _, wildcard := allowed["*"]; wildcard {
		return func(*http.Request) bool { return true }
	}
	if len(allowed) == 0 {
		return func(r *http.Request) bool {
			return false
		}
	}

	return func(r *http.Request) bool {
		origin := strings.TrimSpace(strings.ToLower(r.Header.Get("Origin")))
		if origin == "" {
			return false
		}
		if _, ok := allowed[origin]; ok {
			return true
		}

		u, err := url.Parse(origin)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return false
		}
		normalized := strings.ToLower(fmt.Sprintf("%s://%s", u.Scheme, u.Host))
		_, ok := allowed[normalized]
		return ok
	}
}

func extractTokenFromWSRequest(r *http.Request) (string, error) {
	authHeader := strings.TrimSpace(r.Header.Get("Authorization"))
	if strings.HasPrefix(strings.ToLower(authHeader), "bearer ") {
		token := strings.TrimSpace(authHeader[len("Bearer "):])
		if token != "" {
			return token, nil
		}
	}

	protocolHeader := r.Header.Get("Sec-WebSocket-Protocol")
	if protocolHeader != "" {
		parts := strings.Split(protocolHeader, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if len(parts) >= 2 && strings.EqualFold(parts[0], "bearer") {
			token := parts[1]
			if token != "" {
				return token, nil
			}
		}
	}

	return "", wsAuthError{status: http.StatusUnauthorized, msg: "missing bearer token"}
}

// MakeHandler returns an HTTP handler for the /ws endpoint.
// Authenticates via Bearer token (Authorization header or Sec-WebSocket-Protocol), then dispatches frames:
//   - subscribe     -> start a filtered change feed, acknowledged with subscribed
//   - unsubscribe   -> stop one feed
//   - send_message  -> append to a conversation, acknowledged with message_ack
//   - typing        -> forward a typing indicator to the other participant
func MakeHandler(
	hub *Hub,
	tokens *security.TokenService,
	profiles domain.ProfileRepository,
	feed Feed,
	convs Conversations,
	allowedOrigins []string,
) http.HandlerFunc {
	checkOrigin := makeCheckOrigin(allowedOrigins)
	upgrader := websocket.Upgrader{
		CheckOrigin: checkOrigin,
		Subprotocols: []string{
			"bearer",
		},
	}

	return func(w http.ResponseWriter, r *http.Request) {
		if !checkOrigin(r) {
			http.Error(w, "origin not allowed", http.StatusForbidden)
			return
		}

		tokenStr, err := extractTokenFromWSRequest(r)
		if err != nil {
			var authErr wsAuthError
			if errors.As(err, &authErr) {
				http.Error(w, authErr.msg, authErr.status)
				return
			}
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}

		sub, err := tokens.Subject(tokenStr)
		if err != nil {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
		profile, err := profiles.GetByID(r.Context(), sub)
		if err != nil || profile == nil {
			http.Error(w, "profile not found", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		s := &session{
			client: newClient(profile.ID, conn),
			hub:    hub,
			feed:   feed,
			convs:  convs,
			subs:   make(map[string]func()),
		}
		hub.Register(s.client)
		go s.client.writePump()
		defer func() {
			s.unsubscribeAll()
			hub.Unregister(s.client)
			s.client.close()
		}()

		s.readLoop(ctx)
	}
}

// session is the per-connection state behind the read loop.
type session struct {
	client *Client
	hub    *Hub
	feed   Feed
	convs  Conversations

	mu   sync.Mutex
	subs map[string]func()
}

func (s *session) readLoop(ctx context.Context) {
	conn := s.client.conn
	conn.SetReadLimit(maxFrameSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("ws: read from %s: %v", s.client.userID, err)
			}
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))

		var in inbound
		if err := json.Unmarshal(data, &in); err != nil {
			s.sendError(in, "invalid frame")
			continue
		}

		switch in.Type {
		case "subscribe":
			s.subscribe(ctx, in)
		case "unsubscribe":
			s.unsubscribe(in)
		case "send_message":
			s.sendMessage(ctx, in)
		case "typing":
			s.typing(ctx, in)
		default:
			log.Printf("ws: unknown frame type %q from %s", in.Type, s.client.userID)
			s.sendError(in, "unknown frame type")
		}
	}
}

func (s *session) subscribe(ctx context.Context, in inbound) {
	if in.ID == "" || in.Table == "" {
		s.sendError(in, "subscribe requires id and table")
		return
	}
	filter, err := realtime.ParseFilter(in.Filter)
	if err != nil {
		s.sendError(in, err.Error())
		return
	}
	var events []realtime.EventType
	if in.Event != "" && in.Event != "*" {
		events = []realtime.EventType{realtime.EventType(in.Event)}
	}
	sub := realtime.Subscription{Table: in.Table, Events: events, Filter: filter}

	if err := authorize(ctx, s.convs, s.client.userID, sub); err != nil {
		s.sendError(in, err.Error())
		return
	}

	s.mu.Lock()
	_, taken := s.subs[in.ID]
	full := len(s.subs) >= maxSubscriptions
	s.mu.Unlock()
	if taken {
		s.sendError(in, "subscription id already in use")
		return
	}
	if full {
		s.sendError(in, "too many subscriptions")
		return
	}

	id := in.ID
	cancel, err := s.feed.Subscribe(sub, func(c realtime.Change) {
		s.client.enqueue(changeFrame{
			Type:         "change",
			Subscription: id,
			Table:        c.Table,
			Event:        c.Type,
			Record:       c.Record,
			At:           c.At,
		})
	})
	if err != nil {
		s.sendError(in, err.Error())
		return
	}

	s.mu.Lock()
	s.subs[id] = cancel
	s.mu.Unlock()
	s.client.enqueue(map[string]string{"type": "subscribed", "id": id})
}

func (s *session) unsubscribe(in inbound) {
	s.mu.Lock()
	cancel, ok := s.subs[in.ID]
	delete(s.subs, in.ID)
	s.mu.Unlock()
	if ok {
		cancel()
	}
	s.client.enqueue(map[string]string{"type": "unsubscribed", "id": in.ID})
}

func (s *session) unsubscribeAll() {
	s.mu.Lock()
	subs := s.subs
	s.subs = make(map[string]func())
	s.mu.Unlock()
	for _, cancel := range subs {
		cancel()
	}
}

func (s *session) sendMessage(ctx context.Context, in inbound) {
	msg, err := s.convs.Send(ctx, service.SendMessageInput{
		ConversationID: in.ConversationID,
		SenderID:       s.client.userID,
		Text:           in.Text,
		ClientID:       in.ClientID,
	})
	if err != nil {
		if !errors.Is(err, domain.ErrInvalidInput) && !errors.Is(err, domain.ErrForbidden) && !errors.Is(err, domain.ErrNotFound) {
			log.Printf("ws: send_message from %s: %v", s.client.userID, err)
			err = domain.ErrInternal
		}
		s.sendError(in, err.Error())
		return
	}
	s.client.enqueue(map[string]any{
		"type":      "message_ack",
		"client_id": in.ClientID,
		"message":   msg,
	})
}

func (s *session) typing(ctx context.Context, in inbound) {
	conv, err := s.convs.Get(ctx, in.ConversationID, s.client.userID)
	if err != nil {
		s.sendError(in, "not allowed for this conversation")
		return
	}
	other := conv.ProviderID
	if s.client.userID == conv.ProviderID {
		other = conv.CustomerID
	}
	s.hub.SendToUsers([]string{other}, map[string]string{
		"type":            "typing",
		"conversation_id": conv.ID,
		"user_id":         s.client.userID,
	})
}

func (s *session) sendError(in inbound, msg string) {
	s.client.enqueue(errorFrame{Type: "error", ID: in.ID, ClientID: in.ClientID, Message: msg})
}
