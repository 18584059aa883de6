package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"servicehub/internal/domain"
	"servicehub/internal/service"
)

type bookingStatusRequest struct {
	Status      domain.BookingStatus `json:"status"`
	TotalAmount *float64             `json:"total_amount"`
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

// @Summary      Create booking
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body service.BookingInput true "Booking request"
// @Success      201  {object}  domain.Booking
// @Failure      400  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /bookings [post]
func handleCreateBooking(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.BookingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		b, err := svc.Create(r.Context(), CurrentProfile(r).ID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, b)
	}
}

// @Summary      List bookings
// @Description  Role defaults to the caller's user_type
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        role       query string false "customer|provider"
// @Param        status     query string false "Booking status"
// @Param        date_from  query string false "YYYY-MM-DD, inclusive"
// @Param        date_to    query string false "YYYY-MM-DD, inclusive"
// @Param        service_id query string false "Listing ID"
// @Param        search     query string false "Case-insensitive search"
// @Param        limit      query int    false "Maximum rows"
// @Success      200  {array}   domain.Booking
// @Router       /bookings [get]
func handleListBookings(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		q := r.URL.Query()
		f := domain.BookingFilter{
			Status:    domain.BookingStatus(q.Get("status")),
			DateFrom:  q.Get("date_from"),
			DateTo:    q.Get("date_to"),
			ServiceID: q.Get("service_id"),
			Search:    q.Get("search"),
		}
		if s := q.Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n < 0 {
				writeError(w, http.StatusBadRequest, "invalid limit")
				return
			}
			f.Limit = n
		}
		items, err := svc.List(r.Context(), me.ID, roleFor(r, me), f)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// @Summary      Booking stats
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        role query string false "customer|provider"
// @Success      200  {object}  service.BookingStats
// @Router       /bookings/stats [get]
func handleBookingStats(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		st, err := svc.Stats(r.Context(), me.ID, roleFor(r, me))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// @Summary      Get booking
// @Tags         bookings
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path string true "Booking ID"
// @Success      200  {object}  domain.Booking
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /bookings/{bookingID} [get]
func handleGetBooking(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		b, err := svc.Get(r.Context(), chi.URLParam(r, "bookingID"), CurrentProfile(r).ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// @Summary      Change booking status
// @Description  total_amount is recorded only when completing
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path string true "Booking ID"
// @Param        input body bookingStatusRequest true "New status"
// @Success      200  {object}  domain.Booking
// @Failure      403  {object}  map[string]string
// @Router       /bookings/{bookingID}/status [patch]
func handleUpdateBookingStatus(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req bookingStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		b, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "bookingID"), CurrentProfile(r).ID, req.Status, req.TotalAmount)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// @Summary      Cancel booking
// @Tags         bookings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path string true "Booking ID"
// @Param        input body cancelRequest false "Optional reason"
// @Success      200  {object}  domain.Booking
// @Failure      403  {object}  map[string]string
// @Router       /bookings/{bookingID}/cancel [post]
func handleCancelBooking(svc *service.BookingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req cancelRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid JSON body")
			return
		}
		b, err := svc.Cancel(r.Context(), chi.URLParam(r, "bookingID"), CurrentProfile(r).ID, req.Reason)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, b)
	}
}

// @Summary      Review a completed booking
// @Tags         reviews
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        bookingID path string true "Booking ID"
// @Param        input body service.ReviewInput true "Rating 1..5 and comment"
// @Success      201  {object}  domain.Review
// @Failure      400  {object}  map[string]string
// @Failure      409  {object}  map[string]string
// @Router       /bookings/{bookingID}/review [post]
func handleCreateReview(svc *service.ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ReviewInput
		if !decodeJSON(w, r, &in) {
			return
		}
		rev, err := svc.Create(r.Context(), CurrentProfile(r).ID, chi.URLParam(r, "bookingID"), in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, rev)
	}
}
