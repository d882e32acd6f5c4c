package processor

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	"github.com/go-pdf/fpdf"
)

// compressImage re-encodes the image as JPEG at the requested quality. The
// extension is kept, so a compressed PNG carries JPEG data.
func (p *Processor) compressImage(in input) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(in.data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := imaging.Encode(buf, flatten(img), imaging.JPEG, imaging.JPEGQuality(in.quality)); err != nil {
		return nil, "", fmt.Errorf("failed to encode compressed image: %w", err)
	}

	return buf.Bytes(), in.ext, nil
}

// imageToWebP re-encodes the image as lossy WebP at the requested quality.
func (p *Processor) imageToWebP(in input) ([]byte, string, error) {
	img, err := imaging.Decode(bytes.NewReader(in.data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to decode image: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := webp.Encode(buf, img, &webp.Options{Quality: float32(in.quality)}); err != nil {
		return nil, "", fmt.Errorf("failed to encode webp: %w", err)
	}

	return buf.Bytes(), ".webp", nil
}

// imageToPDF builds a single-page PDF whose page is exactly the image's pixel
// size (one pixel per point) with the image filling the page.
func (p *Processor) imageToPDF(in input) ([]byte, string, error) {
	cfg, srcFormat, err := image.DecodeConfig(bytes.NewReader(in.data))
	if err != nil {
		return nil, "", fmt.Errorf("failed to read image dimensions: %w", err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 {
		return nil, "", fmt.Errorf("invalid image dimensions %dx%d", cfg.Width, cfg.Height)
	}

	// The embed codec follows the extension. PNGs are re-encoded to the 8-bit,
	// non-interlaced form the PDF writer accepts; a mislabelled JPEG takes the
	// same path.
	imageType, payload := "JPG", in.data
	if in.ext == ".png" || srcFormat != "jpeg" {
		imageType = "PNG"
		if payload, err = normalizePNG(in.data); err != nil {
			return nil, "", err
		}
	}

	w, h := float64(cfg.Width), float64(cfg.Height)

	doc := fpdf.NewCustom(&fpdf.InitType{
		OrientationStr: "P",
		UnitStr:        "pt",
		Size:           fpdf.SizeType{Wd: w, Ht: h},
	})
	doc.SetMargins(0, 0, 0)
	doc.SetAutoPageBreak(false, 0)
	doc.AddPage()

	opts := fpdf.ImageOptions{ImageType: imageType}
	doc.RegisterImageOptionsReader("source", opts, bytes.NewReader(payload))
	doc.ImageOptions("source", 0, 0, w, h, false, opts, 0, "")

	buf := bytes.NewBuffer(nil)
	if err := doc.Output(buf); err != nil {
		return nil, "", fmt.Errorf("failed to build pdf: %w", err)
	}

	return buf.Bytes(), ".pdf", nil
}

// flatten composites images with transparency onto a white background, since
// JPEG has no alpha channel.
func flatten(img image.Image) image.Image {
	if o, ok := img.(interface{ Opaque() bool }); ok && o.Opaque() {
		return img
	}

	b := img.Bounds()
	dc := gg.NewContext(b.Dx(), b.Dy())
	dc.SetColor(color.White)
	dc.Clear()
	dc.DrawImage(img, -b.Min.X, -b.Min.Y)

	return dc.Image()
}

func normalizePNG(data []byte) ([]byte, error) {
	img, err := imaging.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	buf := bytes.NewBuffer(nil)
	if err := png.Encode(buf, imaging.Clone(img)); err != nil {
		return nil, fmt.Errorf("failed to encode png: %w", err)
	}

	return buf.Bytes(), nil
}
