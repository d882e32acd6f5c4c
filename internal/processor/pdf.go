package processor

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	pdfmodel "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

func newPDFConfig() *pdfmodel.Configuration {
	// Keep pdfcpu from creating a config directory under the user's home.
	api.DisableConfigDir()

	conf := pdfmodel.NewDefaultConfiguration()
	conf.ValidationMode = pdfmodel.ValidationRelaxed
	// Classic xref tables keep results readable by simpler PDF readers.
	conf.WriteObjectStream = false
	conf.WriteXRefStream = false

	return conf
}

// resavePDF loads the document's object structure and serializes it again.
// This is a structural re-save; the output is not guaranteed to be smaller.
func (p *Processor) resavePDF(in input) ([]byte, string, error) {
	ctx, err := api.ReadContext(bytes.NewReader(in.data), p.pdfConf)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load pdf: %w", err)
	}

	if err := api.ValidateContext(ctx); err != nil {
		return nil, "", fmt.Errorf("failed to validate pdf: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := api.WriteContext(ctx, buf); err != nil {
		return nil, "", fmt.Errorf("failed to save pdf: %w", err)
	}

	return buf.Bytes(), in.ext, nil
}

// countPages reports the number of pages of a PDF held in memory.
func countPages(data []byte) (int, error) {
	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return 0, fmt.Errorf("new pdf reader: %w", err)
	}

	return r.NumPage(), nil
}
