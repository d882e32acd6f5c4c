package file

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/config"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/format"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/registry"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

// allowedTypes maps every accepted declared MIME type to the extension used
// when the uploaded name carries none.
var allowedTypes = map[string]string{
	"application/pdf": ".pdf",
	"application/vnd.openxmlformats-officedocument.wordprocessingml.document":   ".docx",
	"application/vnd.openxmlformats-officedocument.presentationml.presentation": ".pptx",
	"image/jpeg": ".jpg",
	"image/png":  ".png",
}

const (
	sniffLen       = 3072
	nameAttempts   = 5
	publishTimeout = 5 * time.Second
)

// fileStorage defines the interface for one storage area.
type fileStorage interface {
	Save(ctx context.Context, name string, src io.Reader) (int64, error)
	Load(ctx context.Context, name string) (io.ReadCloser, error)
	Stat(ctx context.Context, name string) (storage.Info, error)
	Delete(ctx context.Context, name string) error
}

// transformer runs compress and convert requests.
type transformer interface {
	Process(ctx context.Context, req model.ProcessingRequest) (model.ProcessedResult, error)
}

// scheduler records when stored files must be deleted.
type scheduler interface {
	Schedule(ctx context.Context, area, name string, after time.Duration) error
	ScheduleSooner(ctx context.Context, area, name string, after time.Duration) error
}

// publisher sends lifecycle events to a message broker (e.g., Kafka).
type publisher interface {
	Publish(ctx context.Context, e model.Event) error
}

// UploadInput is one file received by the upload endpoint.
type UploadInput struct {
	Filename    string // name given by the client
	ContentType string // declared MIME type
	Size        int64  // declared size, -1 if unknown
	Body        io.Reader
}

// Service provides business logic for file operations: accepting uploads,
// processing them and handing results out for download. Every stored file
// is given a deletion time in the registry.
type Service struct {
	intake    fileStorage
	results   fileStorage
	processor transformer
	registry  scheduler
	publisher publisher
	upload    config.Upload
	cleanup   config.Cleanup
	now       func() time.Time
}

// NewService creates a new Service. pub may be nil to disable events.
func NewService(
	intake, results fileStorage,
	p transformer,
	reg scheduler,
	pub publisher,
	upload config.Upload,
	cleanup config.Cleanup,
) *Service {
	return &Service{
		intake:    intake,
		results:   results,
		processor: p,
		registry:  reg,
		publisher: pub,
		upload:    upload,
		cleanup:   cleanup,
		now:       time.Now,
	}
}

// MaxUploadSize returns the largest accepted upload in bytes.
func (s *Service) MaxUploadSize() int64 {
	return s.upload.MaxSize
}

// FormField returns the multipart field that carries the upload.
func (s *Service) FormField() string {
	return s.upload.FormField
}

// Upload validates the file and stores it in the intake area under a freshly
// generated name.
func (s *Service) Upload(ctx context.Context, in UploadInput) (model.UploadedFile, error) {
	declared := mediaType(in.ContentType)

	fallbackExt, ok := allowedTypes[declared]
	if !ok {
		return model.UploadedFile{}, model.ErrInvalidFileType
	}

	if in.Size > s.upload.MaxSize {
		return model.UploadedFile{}, model.ErrPayloadTooLarge
	}

	ext := extension(in.Filename)
	if ext == "" {
		ext = fallbackExt
	}

	name, err := s.newName(ctx, ext)
	if err != nil {
		return model.UploadedFile{}, err
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(in.Body, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return model.UploadedFile{}, fmt.Errorf("upload: failed to read file: %w", err)
	}
	head = head[:n]

	detected := mimetype.Detect(head)
	if !detected.Is(declared) {
		zlog.Logger.Warn().
			Str("declared", declared).
			Str("detected", detected.String()).
			Str("file", in.Filename).
			Msg("declared type does not match content")
	}

	body := io.LimitReader(io.MultiReader(bytes.NewReader(head), in.Body), s.upload.MaxSize+1)

	size, err := s.intake.Save(ctx, name, body)
	if err != nil {
		return model.UploadedFile{}, fmt.Errorf("upload: failed to save file: %w", err)
	}

	if size > s.upload.MaxSize {
		if err := s.intake.Delete(ctx, name); err != nil {
			zlog.Logger.Err(err).Str("file", name).Msg("failed to remove oversized upload")
		}
		return model.UploadedFile{}, model.ErrPayloadTooLarge
	}

	s.schedule(ctx, storage.AreaIntake, name, s.cleanup.UploadTTL)
	s.publish(ctx, model.NewEvent(model.EventUploaded, storage.AreaIntake, name, size))

	return model.UploadedFile{
		ID:            name,
		OriginalName:  in.Filename,
		Size:          size,
		FormattedSize: format.FileSize(size),
		Type:          declared,
		DetectedType:  detected.String(),
	}, nil
}

// Process runs the request and schedules cleanup of both the input and the
// result.
func (s *Service) Process(ctx context.Context, req model.ProcessingRequest) (model.ProcessedResult, error) {
	result, err := s.processor.Process(ctx, req)
	if err != nil {
		return model.ProcessedResult{}, err
	}

	s.schedule(ctx, storage.AreaResults, result.Filename, s.cleanup.ResultTTL)
	s.schedule(ctx, storage.AreaIntake, req.FileID, s.cleanup.IntakeDelay)
	s.publish(ctx, model.NewEvent(model.EventProcessed, storage.AreaResults, result.Filename, result.Size))

	return result, nil
}

// Open returns a reader over a result file together with its metadata.
// The caller must close the reader.
func (s *Service) Open(ctx context.Context, name string) (io.ReadCloser, storage.Info, error) {
	if err := storage.ValidateName(name); err != nil {
		return nil, storage.Info{}, err
	}

	info, err := s.results.Stat(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.Info{}, model.ErrFileNotFound
		}
		return nil, storage.Info{}, fmt.Errorf("download: failed to stat file: %w", err)
	}

	rc, err := s.results.Load(ctx, name)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, storage.Info{}, model.ErrFileNotFound
		}
		return nil, storage.Info{}, fmt.Errorf("download: failed to open file: %w", err)
	}

	return rc, info, nil
}

// MarkDownloaded brings the result's deletion time forward to the download
// delay. Later downloads never push it back.
func (s *Service) MarkDownloaded(ctx context.Context, name string, size int64) {
	if err := s.registry.ScheduleSooner(ctx, storage.AreaResults, name, s.cleanup.DownloadDelay); err != nil {
		zlog.Logger.Err(err).Str("area", storage.AreaResults).Str("file", name).Msg("failed to schedule cleanup")
	}
	s.publish(ctx, model.NewEvent(model.EventDownloaded, storage.AreaResults, name, size))
}

// NotifyExpired publishes an event for a file removed by the registry.
func (s *Service) NotifyExpired(ctx context.Context, e registry.Entry) {
	s.publish(ctx, model.NewEvent(model.EventExpired, e.Area, e.Name, 0))
}

func (s *Service) newName(ctx context.Context, ext string) (string, error) {
	for range nameAttempts {
		name := fmt.Sprintf("%s-%d-%d%s", s.upload.FormField, s.now().UnixMilli(), rand.Int64N(1_000_000_000), ext)

		_, err := s.intake.Stat(ctx, name)
		switch {
		case errors.Is(err, storage.ErrNotFound):
			return name, nil
		case err != nil:
			return "", fmt.Errorf("upload: failed to check name: %w", err)
		}
	}

	return "", fmt.Errorf("upload: no free name after %d attempts", nameAttempts)
}

func (s *Service) schedule(ctx context.Context, area, name string, after time.Duration) {
	if err := s.registry.Schedule(ctx, area, name, after); err != nil {
		zlog.Logger.Err(err).Str("area", area).Str("file", name).Msg("failed to schedule cleanup")
	}
}

// publish sends e if events are enabled. Failures are logged only.
func (s *Service) publish(ctx context.Context, e model.Event) {
	if s.publisher == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	if err := s.publisher.Publish(ctx, e); err != nil {
		zlog.Logger.Err(err).Str("type", string(e.Type)).Str("file", e.Name).Msg("failed to publish event")
	}
}

// mediaType strips parameters and normalizes case.
func mediaType(contentType string) string {
	t, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(t))
}

// extension returns the lower-cased extension of name, or "" when it holds
// anything but ASCII letters and digits.
func extension(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if len(ext) < 2 {
		return ""
	}

	for _, r := range ext[1:] {
		if (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}

	return ext
}
