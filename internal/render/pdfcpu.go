package render

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	_ "golang.org/x/image/tiff"
)

// PDFDocument is a volume parsed with pdfcpu and held in memory.
type PDFDocument struct {
	path  string
	pages int

	// pdfcpu dereferences objects lazily and caches them in the xref table,
	// so page access is serialized.
	mu  sync.Mutex
	ctx *model.Context
}

// Path returns the volume file path.
func (d *PDFDocument) Path() string { return d.path }

// PageCount returns the number of pages in the volume.
func (d *PDFDocument) PageCount() int { return d.pages }

// Close drops the parsed document.
func (d *PDFDocument) Close() error {
	d.mu.Lock()
	d.ctx = nil
	d.mu.Unlock()
	return nil
}

// pageImages extracts the images placed on a page (1-indexed).
func (d *PDFDocument) pageImages(pageNr int) (map[int]model.Image, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.ctx == nil {
		return nil, fmt.Errorf("document closed")
	}
	return pdfcpu.ExtractPageImages(d.ctx, pageNr, false)
}

// PDFOpener opens PDF volumes with pdfcpu.
type PDFOpener struct{}

// Open reads and parses the PDF at path.
// Read failures are returned as-is; parse failures wrap ErrFormat.
func (PDFOpener) Open(ctx context.Context, path string) (Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	pdfCtx, err := api.ReadContext(bytes.NewReader(data), model.NewDefaultConfiguration())
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFormat, err)
	}
	if err := pdfCtx.EnsurePageCount(); err != nil {
		return nil, fmt.Errorf("%w: page count: %v", ErrFormat, err)
	}

	return &PDFDocument{
		path:  path,
		pages: pdfCtx.PageCount,
		ctx:   pdfCtx,
	}, nil
}

// PageCount returns the number of pages in the PDF at path without keeping it open.
func PageCount(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open PDF %s: %w", path, err)
	}
	defer f.Close()

	n, err := api.PageCount(f, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to get page count for %s: %w", path, err)
	}
	return n, nil
}

// ImageRenderer renders scanned volumes by extracting the page's embedded
// scan image. Pages without an image (born-digital text) fail with a
// RenderError; use PopplerRenderer for those.
type ImageRenderer struct{}

// Render implements Renderer.
func (ImageRenderer) Render(ctx context.Context, doc Document, index int, rotation Rotation, size Size) (image.Image, error) {
	pd, ok := doc.(*PDFDocument)
	if !ok {
		return nil, &RenderError{Path: doc.Path(), Index: index, Err: fmt.Errorf("unsupported document type %T", doc)}
	}
	if index < 0 || index >= pd.PageCount() {
		return nil, &RenderError{Path: pd.path, Index: index, Err: fmt.Errorf("page out of range (volume has %d pages)", pd.PageCount())}
	}
	if err := Canceled(ctx); err != nil {
		return nil, err
	}

	images, err := pd.pageImages(index + 1)
	if err != nil {
		return nil, &RenderError{Path: pd.path, Index: index, Err: err}
	}

	// Scans carry one full-page image; smaller ones are stamps or thumbnails.
	var best *model.Image
	for k := range images {
		img := images[k]
		if img.Thumb || img.Reader == nil {
			continue
		}
		if best == nil || img.Width*img.Height > best.Width*best.Height {
			best = &img
		}
	}
	if best == nil {
		return nil, &RenderError{Path: pd.path, Index: index, Err: fmt.Errorf("no embedded page image")}
	}

	decoded, _, err := image.Decode(best.Reader)
	if err != nil {
		return nil, &RenderError{Path: pd.path, Index: index, Err: fmt.Errorf("decode %s image: %w", best.FileType, err)}
	}
	if err := Canceled(ctx); err != nil {
		return nil, err
	}

	return Fit(decoded, rotation, size), nil
}

var (
	_ Opener   = PDFOpener{}
	_ Renderer = ImageRenderer{}
	_ Document = (*PDFDocument)(nil)
)
