package httpserver

import (
	"net/http"

	"servicehub/internal/domain"
	"servicehub/internal/service"
)

const maxAvatarBytes = 5 << 20

type switchRoleRequest struct {
	UserType domain.Role `json:"user_type"`
	service.ProfileUpdateInput
}

// @Summary      Update own profile
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body service.ProfileUpdateInput true "Fields to change"
// @Success      200  {object}  domain.Profile
// @Failure      400  {object}  map[string]string
// @Router       /profile [patch]
func handleUpdateProfile(svc *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		var in service.ProfileUpdateInput
		if !decodeJSON(w, r, &in) {
			return
		}
		p, err := svc.Update(r.Context(), me.ID, me.ID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// @Summary      Switch between customer and provider
// @Description  Becoming a provider may set business fields in the same call
// @Tags         profile
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        input body switchRoleRequest true "Target role and optional business fields"
// @Success      200  {object}  domain.Profile
// @Failure      400  {object}  map[string]string
// @Router       /profile/role [post]
func handleSwitchRole(svc *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		var req switchRoleRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		p, err := svc.SwitchRole(r.Context(), me.ID, req.UserType, req.ProfileUpdateInput)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}

// @Summary      Upload avatar
// @Tags         profile
// @Accept       multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        file formData file true "Avatar image"
// @Success      200  {object}  domain.Profile
// @Failure      400  {object}  map[string]string
// @Router       /profile/avatar [post]
func handleUploadAvatar(svc *service.ProfileService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		r.Body = http.MaxBytesReader(w, r.Body, maxAvatarBytes+(1<<20))
		if err := r.ParseMultipartForm(maxAvatarBytes); err != nil {
			writeError(w, http.StatusBadRequest, "failed to parse multipart form")
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			writeError(w, http.StatusBadRequest, "missing file")
			return
		}
		defer file.Close()

		p, err := svc.UploadAvatar(r.Context(), me.ID, header.Filename, header.Header.Get("Content-Type"), file)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, p)
	}
}
