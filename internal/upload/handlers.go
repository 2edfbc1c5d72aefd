package upload

import (
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"s3stream/internal/config"
	"s3stream/internal/multipart"
	"s3stream/internal/response"
	"s3stream/internal/s3"
)

type Handler struct {
	uploadService UploadService
	streamConfig  *config.StreamConfig
	logger        *slog.Logger
}

func NewHandler(uploadService UploadService, streamConfig *config.StreamConfig, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		uploadService: uploadService,
		streamConfig:  streamConfig,
		logger:        logger,
	}
}

// Register mounts the upload routes on mux behind middleware.
func (h *Handler) Register(mux *http.ServeMux, middleware func(http.Handler) http.Handler) {
	mux.Handle("PUT /v1/streams/{profile}/{key_base...}", middleware(http.HandlerFunc(h.HandleStream)))
	mux.Handle("GET /v1/uploads", middleware(http.HandlerFunc(h.HandleListUploads)))
	mux.Handle("DELETE /v1/uploads/{upload_path...}", middleware(http.HandlerFunc(h.HandleAbortMultipart)))
}

// HandleStream handles PUT /v1/streams/{profile}/{key_base...}
func (h *Handler) HandleStream(w http.ResponseWriter, r *http.Request) {
	profileName := r.PathValue("profile")
	profile := h.streamConfig.GetProfile(profileName)
	if profile == nil {
		response.WriteError(w, http.StatusNotFound, response.ErrNotFound,
			fmt.Sprintf("No configuration for profile: %s", profileName),
			"Configure profile in your stream config")
		return
	}

	// Reject declared oversize bodies before initiating anything.
	if profile.SizeMaxBytes > 0 && r.ContentLength > profile.SizeMaxBytes {
		response.WriteError(w, http.StatusRequestEntityTooLarge, response.ErrSizeTooLarge,
			fmt.Sprintf("body of %d bytes exceeds maximum: %d", r.ContentLength, profile.SizeMaxBytes),
			"Reduce the stream size or check size_max_bytes in configuration")
		return
	}

	resp, err := h.uploadService.Stream(r.Context(), &StreamRequest{
		Profile:     profileName,
		KeyBase:     r.PathValue("key_base"),
		ContentType: r.Header.Get("Content-Type"),
		Shard:       r.URL.Query().Get("shard"),
		Body:        r.Body,
	}, profile)
	if err != nil {
		h.writeServiceError(w, "stream upload failed", err)
		return
	}

	response.WriteJSON(w, http.StatusOK, resp)
}

// HandleListUploads handles GET /v1/uploads?prefix=
func (h *Handler) HandleListUploads(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.uploadService.ListUploads(r.Context(), r.URL.Query().Get("prefix"))
	if err != nil {
		h.writeServiceError(w, "list uploads failed", err)
		return
	}

	response.WriteJSON(w, http.StatusOK, ListUploadsResponse{Uploads: uploads})
}

// HandleAbortMultipart handles DELETE /v1/uploads/{object_key}/abort/{upload_id}
func (h *Handler) HandleAbortMultipart(w http.ResponseWriter, r *http.Request) {
	// Object keys may contain slashes, upload IDs never do.
	path := r.PathValue("upload_path")
	i := strings.LastIndex(path, "/abort/")
	if i <= 0 || i+len("/abort/") == len(path) {
		response.WriteError(w, http.StatusBadRequest, response.ErrBadRequest, "Invalid URL format", "Expected /v1/uploads/{object_key}/abort/{upload_id}")
		return
	}

	objectKey := path[:i]
	uploadID := path[i+len("/abort/"):]

	if err := h.uploadService.AbortUpload(r.Context(), objectKey, uploadID); err != nil {
		h.writeServiceError(w, "abort upload failed", err)
		return
	}

	response.WriteJSON(w, http.StatusOK, map[string]string{"status": "aborted", "object_key": objectKey, "upload_id": uploadID})
}

// writeServiceError maps a service failure onto a status code and logs it.
func (h *Handler) writeServiceError(w http.ResponseWriter, msg string, err error) {
	var uploadErr *multipart.UploadError
	orphaned := errors.As(err, &uploadErr) && uploadErr.AbortErr != nil

	switch {
	case errors.Is(err, ErrInvalidKey):
		response.WriteError(w, http.StatusBadRequest, response.ErrBadRequest, err.Error(), "")
		return
	case errors.Is(err, ErrMimeNotAllowed):
		response.WriteError(w, http.StatusUnsupportedMediaType, response.ErrMimeNotAllowed, err.Error(), "Check allowed_mimes in stream configuration")
		return
	case errors.Is(err, ErrSizeTooLarge) && !orphaned:
		response.WriteError(w, http.StatusRequestEntityTooLarge, response.ErrSizeTooLarge, err.Error(), "Reduce the stream size or check size_max_bytes in configuration")
		return
	}

	h.logger.Error(msg, "error", err)

	switch {
	case orphaned:
		response.WriteError(w, http.StatusBadGateway, response.ErrUploadOrphaned,
			fmt.Sprintf("upload failed and could not be aborted: %v", err),
			fmt.Sprintf("Abort it with DELETE /v1/uploads/%s/abort/%s", uploadErr.Key, uploadErr.UploadID))
	case s3.IsServiceCode(err, s3.CodeNoSuchUpload):
		response.WriteError(w, http.StatusNotFound, response.ErrNotFound, err.Error(), "")
	case s3.IsServiceCode(err, s3.CodeAccessDenied):
		response.WriteError(w, http.StatusForbidden, response.ErrStorageDenied, err.Error(), "Check bucket permissions for the service credentials")
	case s3.IsServiceCode(err, s3.CodeInvalidDigest), s3.IsServiceCode(err, s3.CodeInvalidPart):
		response.WriteError(w, http.StatusBadGateway, response.ErrStorageFailure, err.Error(), "A part failed the storage integrity check; retry the stream")
	case s3.IsTransport(err) || isServiceError(err):
		response.WriteError(w, http.StatusBadGateway, response.ErrStorageFailure, err.Error(), "")
	default:
		response.WriteError(w, http.StatusInternalServerError, response.ErrInternal, err.Error(), "")
	}
}

func isServiceError(err error) bool {
	var serviceErr *s3.ServiceError
	return errors.As(err, &serviceErr)
}
