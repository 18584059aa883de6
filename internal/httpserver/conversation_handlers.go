package httpserver

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"servicehub/internal/domain"
	"servicehub/internal/service"
)

// conversationCreateRequest names the other party. A customer passes
// provider_id; a provider reaching out to a customer passes customer_id.
type conversationCreateRequest struct {
	ProviderID     string  `json:"provider_id"`
	CustomerID     string  `json:"customer_id"`
	ServiceID      *string `json:"service_id"`
	InitialMessage string  `json:"initial_message"`
}

type messageCreateRequest struct {
	Message  string  `json:"message"`
	ClientID *string `json:"client_id"`
}

// @Summary      Start or fetch a conversation
// @Description  Returns the existing conversation of the pair when there is one
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body conversationCreateRequest true "Other party and optional first message"
// @Success      200  {object}  domain.Conversation
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /conversations [post]
func handleCreateConversation(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req conversationCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		me := CurrentProfile(r)

		in := service.CreateConversationInput{
			CustomerID:     me.ID,
			ProviderID:     req.ProviderID,
			ServiceID:      req.ServiceID,
			InitialMessage: req.InitialMessage,
		}
		if req.ProviderID == "" && req.CustomerID != "" {
			in.CustomerID, in.ProviderID = req.CustomerID, me.ID
			in.InitiatedBy = domain.RoleProvider
		}

		conv, err := convSvc.CreateOrGet(r.Context(), in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, conv)
	}
}

// @Summary      List own conversations
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Success      200  {array}   domain.Conversation
// @Router       /conversations [get]
func handleListConversations(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		convs, err := convSvc.ListForUser(r.Context(), CurrentProfile(r).ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, convs)
	}
}

// @Summary      Total unread messages
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        role query string false "customer|provider"
// @Success      200  {object}  map[string]int
// @Router       /conversations/unread [get]
func handleUnreadCount(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		n, err := convSvc.TotalUnread(r.Context(), me.ID, roleFor(r, me))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"unread": n})
	}
}

// @Summary      List messages
// @Tags         conversations
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID path string true "Conversation ID"
// @Success      200  {array}   domain.Message
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [get]
func handleListMessages(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		msgs, err := convSvc.Messages(r.Context(), chi.URLParam(r, "conversationID"), CurrentProfile(r).ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		if msgs == nil {
			msgs = []*domain.Message{}
		}
		writeJSON(w, http.StatusOK, msgs)
	}
}

// @Summary      Send a message
// @Tags         conversations
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        conversationID path string true "Conversation ID"
// @Param        input body messageCreateRequest true "Message text and client correlation id"
// @Success      201  {object}  domain.Message
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/messages [post]
func handleCreateMessage(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req messageCreateRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		msg, err := convSvc.Send(r.Context(), service.SendMessageInput{
			ConversationID: chi.URLParam(r, "conversationID"),
			SenderID:       CurrentProfile(r).ID,
			Text:           req.Message,
			ClientID:       req.ClientID,
		})
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, msg)
	}
}

// @Summary      Mark conversation read
// @Description  Zeroes the caller's unread counter
// @Tags         conversations
// @Security     BearerAuth
// @Param        conversationID path string true "Conversation ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Router       /conversations/{conversationID}/read [post]
func handleMarkConversationRead(convSvc *service.ConversationService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := convSvc.MarkRead(r.Context(), chi.URLParam(r, "conversationID"), CurrentProfile(r).ID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
