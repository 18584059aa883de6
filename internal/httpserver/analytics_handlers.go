package httpserver

import (
	"net/http"

	"servicehub/internal/service"
)

// @Summary      Dashboard analytics
// @Description  Aggregates bookings, reviews, listings and conversations for the role
// @Tags         analytics
// @Produce      json
// @Security     BearerAuth
// @Param        role query string false "customer|provider"
// @Success      200  {object}  service.Dashboard
// @Failure      400  {object}  map[string]string
// @Router       /analytics/dashboard [get]
func handleDashboard(svc *service.AnalyticsService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		d, err := svc.Dashboard(r.Context(), me.ID, roleFor(r, me))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, d)
	}
}
