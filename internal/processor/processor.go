package processor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"

	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/wb-go/wbf/zlog"

	"github.com/Lalitha-balijepalli/FileFlexor/internal/format"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/model"
	"github.com/Lalitha-balijepalli/FileFlexor/internal/storage"
)

// DownloadPrefix is the route under which results are served.
const DownloadPrefix = "/api/download/"

// fileStorage defines the interface for a storage area.
// It allows saving and loading files from a backend (local directory or MinIO).
type fileStorage interface {
	Save(ctx context.Context, name string, src io.Reader) (int64, error)
	Load(ctx context.Context, name string) (io.ReadCloser, error)
}

// kind groups source files by how they can be transformed.
type kind string

const (
	kindImage    kind = "image"
	kindPDF      kind = "pdf"
	kindDocument kind = "document"
)

// route is one (operation, source kind, target format) triple. Compress
// routes have an empty target.
type route struct {
	op     model.Operation
	kind   kind
	target string
}

type input struct {
	data    []byte
	ext     string // lower-cased, with the leading dot
	quality int
}

// transform produces the output bytes and the output extension.
type transform func(p *Processor, in input) ([]byte, string, error)

// routes lists every supported combination. Anything missing here is
// rejected before any output is written.
var routes = map[route]transform{
	{model.OpCompress, kindImage, ""}:    (*Processor).compressImage,
	{model.OpCompress, kindPDF, ""}:      (*Processor).resavePDF,
	{model.OpConvert, kindImage, "webp"}: (*Processor).imageToWebP,
	{model.OpConvert, kindImage, "pdf"}:  (*Processor).imageToPDF,
}

// Processor dispatches compress and convert requests to format-specific
// transforms, reading from the intake area and writing to the results area.
type Processor struct {
	intake  fileStorage
	results fileStorage
	pdfConf *pdfmodel.Configuration
}

// New creates a new Processor over the given intake and results areas.
func New(intake, results fileStorage) *Processor {
	return &Processor{
		intake:  intake,
		results: results,
		pdfConf: newPDFConfig(),
	}
}

// Process runs the transform matching req and stores its output.
func (p *Processor) Process(ctx context.Context, req model.ProcessingRequest) (model.ProcessedResult, error) {
	if req.FileID == "" || req.Operation == "" {
		return model.ProcessedResult{}, model.ErrMissingParameter
	}

	src, err := p.intake.Load(ctx, req.FileID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) || errors.Is(err, storage.ErrInvalidName) {
			return model.ProcessedResult{}, model.ErrFileNotFound
		}

		return model.ProcessedResult{}, fmt.Errorf("failed to load uploaded file: %w", err)
	}
	defer src.Close()

	ext := strings.ToLower(filepath.Ext(req.FileID))
	base := strings.TrimSuffix(req.FileID, filepath.Ext(req.FileID))

	fn, err := lookup(req, ext)
	if err != nil {
		return model.ProcessedResult{}, err
	}

	data, err := io.ReadAll(src)
	if err != nil {
		return model.ProcessedResult{}, fmt.Errorf("failed to read uploaded file: %w", err)
	}

	out, outExt, err := fn(p, input{data: data, ext: ext, quality: req.EffectiveQuality()})
	if err != nil {
		return model.ProcessedResult{}, err
	}

	name := OutputName(base, req.Operation, outExt)

	size, err := p.results.Save(ctx, name, bytes.NewReader(out))
	if err != nil {
		return model.ProcessedResult{}, fmt.Errorf("failed to save result: %w", err)
	}

	result := model.ProcessedResult{
		Filename:      name,
		Size:          size,
		FormattedSize: format.FileSize(size),
		DownloadURL:   DownloadPrefix + url.PathEscape(name),
	}

	if outExt == ".pdf" {
		pages, err := countPages(out)
		if err != nil {
			zlog.Logger.Warn().Err(err).Str("file", name).Msg("failed to count result pages")
		}
		result.Pages = pages
	}

	return result, nil
}

// lookup finds the transform for req or explains why there is none.
func lookup(req model.ProcessingRequest, ext string) (transform, error) {
	r := route{op: req.Operation, kind: kindOf(ext)}

	switch req.Operation {
	case model.OpCompress:
		fn, ok := routes[r]
		if !ok {
			return nil, &model.RequestError{Kind: model.ErrUnsupportedOperation, Message: "Compression not supported for this file type"}
		}
		return fn, nil
	case model.OpConvert:
		r.target = req.Target()
		if r.target == "" {
			return nil, &model.RequestError{Kind: model.ErrMissingParameter, Message: "Target format required for conversion"}
		}

		fn, ok := routes[r]
		if !ok {
			return nil, fmt.Errorf("convert %s to %s: %w", ext, r.target, model.ErrUnsupportedConversion)
		}
		return fn, nil
	default:
		return nil, &model.RequestError{Kind: model.ErrUnsupportedOperation, Message: "Invalid operation"}
	}
}

func kindOf(ext string) kind {
	switch ext {
	case ".jpg", ".jpeg", ".png":
		return kindImage
	case ".pdf":
		return kindPDF
	default:
		return kindDocument
	}
}

// OutputName derives the result name from the input base name: compress keeps
// the extension it is given, convert always gets the target's extension.
func OutputName(base string, op model.Operation, ext string) string {
	switch op {
	case model.OpCompress:
		return base + "_compressed" + ext
	default:
		return base + "_converted" + ext
	}
}
