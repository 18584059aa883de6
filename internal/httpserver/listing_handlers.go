package httpserver

import (
	"encoding/json"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"servicehub/internal/domain"
	"servicehub/internal/service"
)

const (
	maxListingForm   = 32 << 20
	maxListingImages = 10
)

type listingStatusRequest struct {
	Status domain.ListingStatus `json:"status"`
}

func listingFilter(r *http.Request) domain.ListingFilter {
	q := r.URL.Query()
	return domain.ListingFilter{
		Status:   domain.ListingStatus(q.Get("status")),
		Category: q.Get("category"),
		City:     q.Get("city"),
		Search:   q.Get("search"),
	}
}

// @Summary      Browse listings
// @Description  Public catalogue of active listings
// @Tags         listings
// @Produce      json
// @Param        category query string false "Category"
// @Param        city     query string false "City"
// @Param        search   query string false "Case-insensitive search"
// @Success      200  {array}   domain.Listing
// @Router       /listings [get]
func handleBrowseListings(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.Browse(r.Context(), listingFilter(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// @Summary      Get listing
// @Tags         listings
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Success      200  {object}  domain.Listing
// @Failure      404  {object}  map[string]string
// @Router       /listings/{listingID} [get]
func handleGetListing(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		l, err := svc.Get(r.Context(), chi.URLParam(r, "listingID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Count a listing view
// @Tags         listings
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Success      200  {object}  map[string]int
// @Failure      404  {object}  map[string]string
// @Router       /listings/{listingID}/view [post]
func handleViewListing(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		views, err := svc.View(r.Context(), chi.URLParam(r, "listingID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]int{"views": views})
	}
}

// @Summary      List own listings
// @Tags         listings
// @Produce      json
// @Security     BearerAuth
// @Param        status   query string false "active|paused|inactive"
// @Param        category query string false "Category"
// @Param        search   query string false "Case-insensitive search"
// @Success      200  {array}   domain.Listing
// @Router       /me/listings [get]
func handleMyListings(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		items, err := svc.List(r.Context(), me.ID, listingFilter(r))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}

// @Summary      Own listing stats
// @Tags         listings
// @Produce      json
// @Security     BearerAuth
// @Success      200  {object}  service.ListingStats
// @Router       /me/listings/stats [get]
func handleListingStats(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		st, err := svc.Stats(r.Context(), CurrentProfile(r).ID)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, st)
	}
}

// @Summary      Create listing
// @Description  Accepts a JSON body, or multipart with a JSON "data" field and up to ten "images"
// @Tags         listings
// @Accept       json,multipart/form-data
// @Produce      json
// @Security     BearerAuth
// @Param        input body service.ListingInput true "Listing"
// @Success      201  {object}  domain.Listing
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /listings [post]
func handleCreateListing(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		me := CurrentProfile(r)
		var (
			in     service.ListingInput
			images []service.Upload
		)

		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(maxListingForm); err != nil {
				writeError(w, http.StatusBadRequest, "failed to parse multipart form")
				return
			}
			defer r.MultipartForm.RemoveAll()

			if err := json.Unmarshal([]byte(r.FormValue("data")), &in); err != nil {
				writeError(w, http.StatusBadRequest, "invalid listing data")
				return
			}
			files := r.MultipartForm.File["images"]
			if len(files) > maxListingImages {
				writeError(w, http.StatusBadRequest, "too many images")
				return
			}
			opened, err := openUploads(files)
			defer closeAll(opened)
			if err != nil {
				writeError(w, http.StatusBadRequest, "could not read image")
				return
			}
			for i, fh := range files {
				images = append(images, service.Upload{
					Filename:    fh.Filename,
					ContentType: fh.Header.Get("Content-Type"),
					Body:        opened[i],
				})
			}
		} else if !decodeJSON(w, r, &in) {
			return
		}

		l, err := svc.Create(r.Context(), me.ID, in, images)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusCreated, l)
	}
}

func openUploads(files []*multipart.FileHeader) ([]multipart.File, error) {
	out := make([]multipart.File, 0, len(files))
	for _, fh := range files {
		f, err := fh.Open()
		if err != nil {
			return out, err
		}
		out = append(out, f)
	}
	return out, nil
}

func closeAll(files []multipart.File) {
	for _, f := range files {
		f.Close()
	}
}

// @Summary      Update listing
// @Tags         listings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        listingID path string true "Listing ID"
// @Param        input body service.ListingInput true "Listing"
// @Success      200  {object}  domain.Listing
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /listings/{listingID} [put]
func handleUpdateListing(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var in service.ListingInput
		if !decodeJSON(w, r, &in) {
			return
		}
		l, err := svc.Update(r.Context(), chi.URLParam(r, "listingID"), CurrentProfile(r).ID, in)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Change listing status
// @Tags         listings
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        listingID path string true "Listing ID"
// @Param        input body listingStatusRequest true "New status"
// @Success      200  {object}  domain.Listing
// @Failure      400  {object}  map[string]string
// @Failure      403  {object}  map[string]string
// @Router       /listings/{listingID}/status [patch]
func handleUpdateListingStatus(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req listingStatusRequest
		if !decodeJSON(w, r, &req) {
			return
		}
		l, err := svc.UpdateStatus(r.Context(), chi.URLParam(r, "listingID"), CurrentProfile(r).ID, req.Status)
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, l)
	}
}

// @Summary      Delete listing
// @Tags         listings
// @Security     BearerAuth
// @Param        listingID path string true "Listing ID"
// @Success      204
// @Failure      403  {object}  map[string]string
// @Failure      404  {object}  map[string]string
// @Router       /listings/{listingID} [delete]
func handleDeleteListing(svc *service.ListingService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.Delete(r.Context(), chi.URLParam(r, "listingID"), CurrentProfile(r).ID); err != nil {
			writeServiceError(w, r, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// @Summary      Reviews of a listing
// @Tags         reviews
// @Produce      json
// @Param        listingID path string true "Listing ID"
// @Success      200  {array}   domain.Review
// @Router       /listings/{listingID}/reviews [get]
func handleListingReviews(svc *service.ReviewService) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := svc.ListForService(r.Context(), chi.URLParam(r, "listingID"))
		if err != nil {
			writeServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, items)
	}
}
