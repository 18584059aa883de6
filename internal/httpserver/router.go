package httpserver

import (
	"context"
	_ "embed"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	httpSwagger "github.com/swaggo/http-swagger"

	"servicehub/internal/config"
	"servicehub/internal/domain"
	"servicehub/internal/llm"
	"servicehub/internal/security"
	"servicehub/internal/service"
)

//go:embed swagger.json
var swaggerDoc []byte

// ChatCompleter forwards chat messages to the assistant backend.
type ChatCompleter interface {
	Complete(ctx context.Context, messages []llm.Message) (json.RawMessage, error)
}

// Deps carries everything the router needs. Uploads and WS may be nil.
type Deps struct {
	Config        *config.Config
	Tokens        *security.TokenService
	Profiles      domain.ProfileRepository
	Auth          *service.AuthService
	ProfileSvc    *service.ProfileService
	Listings      *service.ListingService
	Bookings      *service.BookingService
	Conversations *service.ConversationService
	Reviews       *service.ReviewService
	Analytics     *service.AnalyticsService
	Chat          ChatCompleter
	Uploads       http.Handler
	WS            http.Handler
}

// NewRouter constructs the main HTTP router and wires routes, services, and middleware.
func NewRouter(d Deps) http.Handler {
	cfg := d.Config
	r := chi.NewRouter()

	// Middlewares
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// WebSocket endpoint authenticates on its own so browsers can pass the
	// token as a subprotocol. It stays outside the request timeout.
	if d.WS != nil {
		r.Get("/ws", d.WS.ServeHTTP)
	}

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(60 * time.Second))
		mountHTTP(r, d)
	})

	return r
}

func mountHTTP(r chi.Router, d Deps) {
	cfg := d.Config

	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"message": cfg.AppName + " API",
			"version": "1.0.0",
			"docs":    "/docs/index.html",
		})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "healthy"})
	})

	// Swagger documentation
	r.Get("/docs/doc.json", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(swaggerDoc)
	})
	r.Get("/docs/*", httpSwagger.Handler(
		httpSwagger.URL("/docs/doc.json"),
	))

	if d.Uploads != nil {
		r.Mount("/uploads", UploadRoutes(d.Uploads))
	}

	limiter := NewRateLimiter(cfg.ChatRateLimit, time.Minute)
	requireAuth := AuthMiddleware(d.Tokens, d.Profiles)

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", handleRegister(d.Auth))
		r.Post("/auth/login", handleLogin(d.Auth))
		r.Get("/listings", handleBrowseListings(d.Listings))
		r.Get("/listings/{listingID}", handleGetListing(d.Listings))
		r.Post("/listings/{listingID}/view", handleViewListing(d.Listings))
		r.Get("/listings/{listingID}/reviews", handleListingReviews(d.Reviews))
		r.With(RateLimit(limiter)).Post("/chat", handleChat(d.Chat))

		// Authenticated routes
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/me", handleMe())

			r.Route("/profile", func(r chi.Router) {
				r.Patch("/", handleUpdateProfile(d.ProfileSvc))
				r.Post("/role", handleSwitchRole(d.ProfileSvc))
				r.Post("/avatar", handleUploadAvatar(d.ProfileSvc))
			})

			r.Get("/me/listings", handleMyListings(d.Listings))
			r.Get("/me/listings/stats", handleListingStats(d.Listings))
			r.Post("/listings", handleCreateListing(d.Listings))
			r.Put("/listings/{listingID}", handleUpdateListing(d.Listings))
			r.Patch("/listings/{listingID}/status", handleUpdateListingStatus(d.Listings))
			r.Delete("/listings/{listingID}", handleDeleteListing(d.Listings))

			r.Route("/bookings", func(r chi.Router) {
				r.Post("/", handleCreateBooking(d.Bookings))
				r.Get("/", handleListBookings(d.Bookings))
				r.Get("/stats", handleBookingStats(d.Bookings))
				r.Get("/{bookingID}", handleGetBooking(d.Bookings))
				r.Patch("/{bookingID}/status", handleUpdateBookingStatus(d.Bookings))
				r.Post("/{bookingID}/cancel", handleCancelBooking(d.Bookings))
				r.Post("/{bookingID}/review", handleCreateReview(d.Reviews))
			})

			r.Route("/conversations", func(r chi.Router) {
				r.Post("/", handleCreateConversation(d.Conversations))
				r.Get("/", handleListConversations(d.Conversations))
				r.Get("/unread", handleUnreadCount(d.Conversations))
				r.Get("/{conversationID}/messages", handleListMessages(d.Conversations))
				r.Post("/{conversationID}/messages", handleCreateMessage(d.Conversations))
				r.Post("/{conversationID}/read", handleMarkConversationRead(d.Conversations))
			})

			r.Get("/analytics/dashboard", handleDashboard(d.Analytics))
		})
	})
}

// roleFor returns the role a role-scoped read runs as: the caller's
// user_type unless overridden with ?role=.
func roleFor(r *http.Request, p *domain.Profile) domain.Role {
	if q := r.URL.Query().Get("role"); q != "" {
		return domain.Role(q)
	}
	return p.UserType
}
