package file

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wb-go/wbf/ginext"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/api/respond"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
	filesvc "github.com/Lalitha-balijepalli/FileFlexor/internal/service/file"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

// multipartOverhead is the room left in the request body for multipart
// boundaries and part headers on top of the file itself.
const multipartOverhead = 1 << 20

// timestampLayout is RFC 3339 with milliseconds, always in UTC.
const timestampLayout = "2006-01-02T15:04:05.000Z07:00"

var (
	errNoFile       = errors.New("No file uploaded")
	errInvalidBody  = errors.New("invalid request body")
	errInvalidName  = errors.New("invalid file name")
	errAPINotFound  = errors.New("API endpoint not found")
	errUploadFailed = errors.New("Error uploading file")
	errProcessFail  = errors.New("Error processing file")
	errDownloadFail = errors.New("Error downloading file")
)

// service defines the interface for file-related operations.
type service interface {
	MaxUploadSize() int64
	FormField() string
	Upload(ctx context.Context, in filesvc.UploadInput) (model.UploadedFile, error)
	Process(ctx context.Context, req model.ProcessingRequest) (model.ProcessedResult, error)
	Open(ctx context.Context, name string) (io.ReadCloser, storage.Info, error)
	MarkDownloaded(ctx context.Context, name string, size int64)
}

// Handler provides HTTP handlers for the upload, process and download
// endpoints.
type Handler struct {
	service service
}

// NewHandler creates a new Handler with the given service.
func NewHandler(s service) *Handler {
	return &Handler{service: s}
}

// Upload accepts a single multipart file and stores it in the intake area.
func (h *Handler) Upload(c *ginext.Context) {
	limit := h.service.MaxUploadSize()
	if c.Request.ContentLength > limit+multipartOverhead {
		zlog.Logger.Warn().Int64("content_length", c.Request.ContentLength).Msg("upload rejected: body too large")
		respond.Fail(c, http.StatusRequestEntityTooLarge, model.ErrPayloadTooLarge)
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit+multipartOverhead)

	header, err := c.FormFile(h.service.FormField())
	if err != nil {
		if isBodyTooLarge(err) {
			zlog.Logger.Warn().Msg("upload rejected: body too large")
			respond.Fail(c, http.StatusRequestEntityTooLarge, model.ErrPayloadTooLarge)
			return
		}

		zlog.Logger.Err(err).Msg("failed to retrieve the file")
		respond.Fail(c, http.StatusBadRequest, errNoFile)
		return
	}

	src, err := header.Open()
	if err != nil {
		zlog.Logger.Err(err).Msg("failed to open the uploaded file")
		respond.Fail(c, http.StatusInternalServerError, errUploadFailed)
		return
	}
	defer src.Close()

	file, err := h.service.Upload(c.Request.Context(), filesvc.UploadInput{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        src,
	})
	if err != nil {
		h.fail(c, err, errUploadFailed)
		return
	}

	zlog.Logger.Info().
		Str("file", file.ID).
		Str("original", file.OriginalName).
		Int64("size", file.Size).
		Msg("file uploaded")

	respond.OK(c, map[string]interface{}{"file": file})
}

// Process compresses or converts a previously uploaded file.
func (h *Handler) Process(c *ginext.Context) {
	var req model.ProcessingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		zlog.Logger.Err(err).Msg("failed to decode process request")
		respond.Fail(c, http.StatusBadRequest, errInvalidBody)
		return
	}

	result, err := h.service.Process(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err, errProcessFail)
		return
	}

	zlog.Logger.Info().
		Str("input", req.FileID).
		Str("operation", string(req.Operation)).
		Str("result", result.Filename).
		Msg("file processed")

	respond.OK(c, map[string]interface{}{"result": result})
}

// Download streams a result file as an attachment.
func (h *Handler) Download(c *ginext.Context) {
	// The route is a catch-all so names with separators reach validation.
	name := strings.TrimPrefix(c.Param("filename"), "/")

	rc, info, err := h.service.Open(c.Request.Context(), name)
	if err != nil {
		h.fail(c, err, errDownloadFail)
		return
	}
	defer rc.Close()

	respond.Attachment(c, name, info.Size, rc)

	h.service.MarkDownloaded(c.Request.Context(), name, info.Size)
}

// Health reports that the server is up.
func (h *Handler) Health(c *ginext.Context) {
	respond.JSON(c, http.StatusOK, map[string]interface{}{
		"status":    "OK",
		"timestamp": time.Now().UTC().Format(timestampLayout),
	})
}

// NotFound answers unknown API routes.
func (h *Handler) NotFound(c *ginext.Context) {
	respond.Fail(c, http.StatusNotFound, errAPINotFound)
}

// fail maps err to a status code. Client errors carry their own message,
// server errors are logged and answered with internal.
func (h *Handler) fail(c *ginext.Context, err error, internal error) {
	var status int
	switch {
	case errors.Is(err, model.ErrInvalidFileType),
		errors.Is(err, model.ErrMissingParameter),
		errors.Is(err, model.ErrUnsupportedOperation),
		errors.Is(err, model.ErrUnsupportedConversion):
		status = http.StatusBadRequest
	case errors.Is(err, storage.ErrInvalidName):
		zlog.Logger.Warn().Str("path", c.Request.URL.Path).Msg("invalid file name")
		respond.Fail(c, http.StatusBadRequest, errInvalidName)
		return
	case errors.Is(err, model.ErrPayloadTooLarge):
		status = http.StatusRequestEntityTooLarge
	case errors.Is(err, model.ErrFileNotFound):
		status = http.StatusNotFound
	default:
		zlog.Logger.Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		respond.Fail(c, http.StatusInternalServerError, internal)
		return
	}

	zlog.Logger.Warn().Err(err).Str("path", c.Request.URL.Path).Msg("request rejected")
	respond.Fail(c, status, cause(err))
}

// cause returns the client-facing error: a RequestError as is, otherwise
// the sentinel err wraps, so wrapping context stays out of responses.
func cause(err error) error {
	var reqErr *model.RequestError
	if errors.As(err, &reqErr) {
		return reqErr
	}

	for _, sentinel := range []error{
		model.ErrInvalidFileType,
		model.ErrMissingParameter,
		model.ErrUnsupportedOperation,
		model.ErrUnsupportedConversion,
		model.ErrPayloadTooLarge,
		model.ErrFileNotFound,
	} {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}

	return err
}

func isBodyTooLarge(err error) bool {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return true
	}

	// Some multipart paths flatten the error to its message.
	return strings.Contains(err.Error(), "request body too large")
}
