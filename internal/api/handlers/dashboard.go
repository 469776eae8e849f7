package handlers

import "net/http"

// GET /api/v1/dashboard
// GetDashboard godoc
// @Summary Summary counts, budget totals and recent tasks
// @Tags Dashboard
// @Produce json
// @Success 200 {object} utils.Payload
// @Failure 500 {object} utils.Payload
// @Router /api/v1/dashboard [get]
func (h *Handler) GetDashboard(w http.ResponseWriter, r *http.Request) {
	sum, err := h.dashboard.Summary(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond(w, http.StatusOK, "Dashboard retrieved", sum)
}
