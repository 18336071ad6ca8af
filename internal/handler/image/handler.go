package image

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/bulatminnakhmetov/canvas2image/internal/permission"
	mediarepo "github.com/bulatminnakhmetov/canvas2image/internal/repository/media"
	"github.com/bulatminnakhmetov/canvas2image/internal/service/image"
	storagemedia "github.com/bulatminnakhmetov/canvas2image/internal/storage/media"
)

const (
	defaultListLimit = 50
	maxListLimit     = 500
)

// MediaIndex is the read side of the media index
type MediaIndex interface {
	ListMedia(ctx context.Context, collection string, limit int) ([]mediarepo.Media, error)
	GetMediaByLocator(ctx context.Context, locator string) (*mediarepo.Media, error)
}

// ImageHandler handles requests for image operations
type ImageHandler struct {
	service        image.ImageService
	authorizer     permission.Authorizer
	index          MediaIndex
	maxRequestSize int64
}

// NewImageHandler creates a new instance of ImageHandler. index may be nil,
// in which case listing and lookup answer 503.
func NewImageHandler(service image.ImageService, authorizer permission.Authorizer, index MediaIndex, maxRequestSize int64) *ImageHandler {
	return &ImageHandler{
		service:        service,
		authorizer:     authorizer,
		index:          index,
		maxRequestSize: maxRequestSize,
	}
}

// @Summary      Save image
// @Description  Decode a base64 image and save it into the shared pictures collection
// @Tags         images
// @Accept       json
// @Produce      json
// @Param        request  body      SaveImageRequest   true  "Image data"
// @Success      201      {object}  SaveImageResponse
// @Failure      400      {string}  string  "Missing or undecodable image"
// @Failure      401      {string}  string  "Unauthorized"
// @Failure      403      {string}  string  "Permission denied"
// @Failure      413      {string}  string  "Image too large"
// @Failure      500      {string}  string  "Error while saving image"
// @Failure      503      {string}  string  "Media store unavailable"
// @Router       /images [post]
// @Security     BearerAuth
func (h *ImageHandler) SaveImage(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, h.maxRequestSize)

	var req SaveImageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Image too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	cb, results := image.ResultChan()
	h.service.SaveImage(r.Context(), image.ImageRequest{
		Payload: req.Data,
		Format:  image.ParseFormat(req.Format),
	}, h.authorizer, cb)

	var res image.Result
	select {
	case res = <-results:
	case <-r.Context().Done():
		return
	}

	if res.Err != nil {
		if image.ReasonOf(res.Err) == "" {
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}
		http.Error(w, image.Message(res.Err), statusFor(res.Err))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(SaveImageResponse{Locator: res.Locator})
}

func statusFor(err error) int {
	switch image.ReasonOf(err) {
	case image.ReasonMissingInput, image.ReasonDecodeFailed:
		return http.StatusBadRequest
	case image.ReasonPermissionDenied:
		return http.StatusForbidden
	case image.ReasonStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// @Summary      List images
// @Description  List indexed images of a collection, newest first
// @Tags         images
// @Produce      json
// @Param        collection  query     string  false  "Collection (default Pictures)"
// @Param        limit       query     int     false  "Max entries (default 50, max 500)"
// @Success      200         {array}   ImageEntryResponse
// @Failure      400         {string}  string  "Invalid limit"
// @Failure      401         {string}  string  "Unauthorized"
// @Failure      503         {string}  string  "Media index unavailable"
// @Router       /images [get]
// @Security     BearerAuth
func (h *ImageHandler) ListImages(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		http.Error(w, "Media index unavailable", http.StatusServiceUnavailable)
		return
	}

	collection := r.URL.Query().Get("collection")
	if collection == "" {
		collection = storagemedia.CollectionPictures
	}

	limit := defaultListLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = min(n, maxListLimit)
	}

	entries, err := h.index.ListMedia(r.Context(), collection, limit)
	if err != nil {
		log.Ctx(r.Context()).Error().Err(err).Str("collection", collection).Msg("failed to list images")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	response := make([]ImageEntryResponse, 0, len(entries))
	for _, m := range entries {
		response = append(response, newImageEntryResponse(m))
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}

// @Summary      Get image
// @Description  Look up an indexed image by its locator
// @Tags         images
// @Produce      json
// @Param        locator  query     string  true  "Image locator"
// @Success      200      {object}  ImageEntryResponse
// @Failure      400      {string}  string  "Missing locator"
// @Failure      401      {string}  string  "Unauthorized"
// @Failure      404      {string}  string  "Image not found"
// @Failure      503      {string}  string  "Media index unavailable"
// @Router       /images/entry [get]
// @Security     BearerAuth
func (h *ImageHandler) GetImage(w http.ResponseWriter, r *http.Request) {
	if h.index == nil {
		http.Error(w, "Media index unavailable", http.StatusServiceUnavailable)
		return
	}

	locator := r.URL.Query().Get("locator")
	if locator == "" {
		http.Error(w, "Missing locator", http.StatusBadRequest)
		return
	}

	m, err := h.index.GetMediaByLocator(r.Context(), locator)
	if err != nil {
		if errors.Is(err, mediarepo.ErrMediaNotFound) {
			http.Error(w, "Image not found", http.StatusNotFound)
			return
		}
		log.Ctx(r.Context()).Error().Err(err).Str("locator", locator).Msg("failed to get image")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(newImageEntryResponse(*m))
}

// @Summary      Delete image
// @Description  Remove a saved image from the media store and the index
// @Tags         images
// @Param        locator  query     string  true  "Image locator"
// @Success      204
// @Failure      400      {string}  string  "Missing locator"
// @Failure      401      {string}  string  "Unauthorized"
// @Failure      403      {string}  string  "Permission denied"
// @Failure      404      {string}  string  "Image not found"
// @Failure      503      {string}  string  "Media store unavailable"
// @Router       /images [delete]
// @Security     BearerAuth
func (h *ImageHandler) DeleteImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if h.authorizer.Required(ctx) && !h.authorizer.Granted(ctx) {
		http.Error(w, "Permission denied", http.StatusForbidden)
		return
	}

	err := h.service.DeleteImage(ctx, r.URL.Query().Get("locator"))
	switch {
	case err == nil:
		w.WriteHeader(http.StatusNoContent)
	case errors.Is(err, image.ErrMissingLocator):
		http.Error(w, "Missing locator", http.StatusBadRequest)
	case errors.Is(err, image.ErrImageNotFound):
		http.Error(w, "Image not found", http.StatusNotFound)
	default:
		log.Ctx(ctx).Error().Err(err).Msg("failed to delete image")
		http.Error(w, "Media store unavailable", http.StatusServiceUnavailable)
	}
}
