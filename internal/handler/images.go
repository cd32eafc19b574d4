package handler

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/ecoterra/siteapi/internal/domain"
	"github.com/ecoterra/siteapi/internal/service"
)

const (
	// multipartOverhead is the allowance for boundaries and form fields on top of the file
	multipartOverhead = 1 << 20
	// uploadMemory is how much of a multipart body is held in memory before spilling to disk
	uploadMemory = 1 << 20
	uploadField  = "image"
)

// ImageHandler serves the image map and uploads
type ImageHandler struct {
	svc    *service.ImageService
	rs     *Responder
	logger *slog.Logger
}

func NewImageHandler(svc *service.ImageService, rs *Responder, logger *slog.Logger) *ImageHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImageHandler{svc: svc, rs: rs, logger: logger}
}

type uploadForm struct {
	Key         string `json:"key" validate:"required,max=128,excludesall=/\\"`
	Category    string `json:"category" validate:"max=128"`
	Description string `json:"description" validate:"max=1024"`
}

// URLResponse is the body of GET /api/images/url/{key}
type URLResponse struct {
	URL string `json:"url"`
}

// ImagesResponse is the body of GET /api/images
type ImagesResponse struct {
	Images map[string]string `json:"images"`
}

// Upload handles POST /api/images/upload
func (h *ImageHandler) Upload(w http.ResponseWriter, r *http.Request) {
	limit := h.svc.MaxBytes() + multipartOverhead
	if r.ContentLength > limit {
		h.rs.Fail(w, r, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrPayloadTooLarge, limit))
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, limit)
	if err := r.ParseMultipartForm(uploadMemory); err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) || strings.Contains(err.Error(), "request body too large") {
			h.rs.Fail(w, r, fmt.Errorf("%w: request body exceeds %d bytes", domain.ErrPayloadTooLarge, limit))
			return
		}
		h.rs.Fail(w, r, domain.Invalid("request must be multipart/form-data"))
		return
	}
	defer func() {
		if err := r.MultipartForm.RemoveAll(); err != nil {
			h.logger.Warn("failed to remove multipart temp files", slog.String("error", err.Error()))
		}
	}()

	file, header, err := r.FormFile(uploadField)
	if err != nil {
		h.rs.Fail(w, r, domain.Invalid("no image file provided"))
		return
	}
	defer file.Close()

	form := uploadForm{
		Key:         r.FormValue("key"),
		Category:    r.FormValue("category"),
		Description: r.FormValue("description"),
	}
	if err := validateStruct(form); err != nil {
		h.rs.Fail(w, r, err)
		return
	}

	result, err := h.svc.Upload(r.Context(), service.UploadInput{
		Key:          form.Key,
		Category:     form.Category,
		Description:  form.Description,
		OriginalName: header.Filename,
		ContentType:  header.Header.Get("Content-Type"),
		Size:         header.Size,
		Body:         file,
	})
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusCreated, result)
}

// URL handles GET /api/images/url/{key}
func (h *ImageHandler) URL(w http.ResponseWriter, r *http.Request) {
	url, err := h.svc.ResolveURL(r.Context(), chi.URLParam(r, "key"))
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, URLResponse{URL: url})
}

// List handles GET /api/images
func (h *ImageHandler) List(w http.ResponseWriter, r *http.Request) {
	images, err := h.svc.List(r.Context())
	if err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.JSON(w, http.StatusOK, ImagesResponse{Images: images})
}

// Delete handles DELETE /api/images/{key}; absent keys succeed
func (h *ImageHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "key")); err != nil {
		h.rs.Fail(w, r, err)
		return
	}
	h.rs.Message(w, http.StatusOK, "Image deleted")
}
