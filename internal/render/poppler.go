package render

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
)

// DefaultDPI is the rasterization resolution used by PopplerRenderer.
const DefaultDPI = 150

// PopplerRenderer rasterizes pages with pdftoppm (poppler-utils).
// It works for any PDF, including pages with no embedded scan image.
type PopplerRenderer struct {
	// Binary is the pdftoppm executable (default: "pdftoppm" on PATH).
	Binary string
	// DPI is the rasterization resolution (default: DefaultDPI).
	DPI int
}

// Render implements Renderer. The pdftoppm process is killed when ctx is done.
func (r PopplerRenderer) Render(ctx context.Context, doc Document, index int, rotation Rotation, size Size) (image.Image, error) {
	if index < 0 || index >= doc.PageCount() {
		return nil, &RenderError{Path: doc.Path(), Index: index, Err: fmt.Errorf("page out of range (volume has %d pages)", doc.PageCount())}
	}
	if err := Canceled(ctx); err != nil {
		return nil, err
	}

	img, err := r.rasterize(ctx, doc.Path(), index+1)
	if err := Canceled(ctx); err != nil {
		return nil, err
	}
	if err != nil {
		return nil, &RenderError{Path: doc.Path(), Index: index, Err: err}
	}

	return Fit(img, rotation, size), nil
}

// rasterize renders a single page (1-indexed) to an image.
func (r PopplerRenderer) rasterize(ctx context.Context, pdfPath string, pageInPDF int) (image.Image, error) {
	binary := r.Binary
	if binary == "" {
		binary = "pdftoppm"
	}
	dpi := r.DPI
	if dpi <= 0 {
		dpi = DefaultDPI
	}

	tmpDir, err := os.MkdirTemp("", "lectern-page-*")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	outputPrefix := filepath.Join(tmpDir, "page")

	// -singlefile: don't add page number suffix
	pageStr := strconv.Itoa(pageInPDF)
	cmd := exec.CommandContext(ctx, binary,
		"-png",
		"-f", pageStr,
		"-l", pageStr,
		"-r", strconv.Itoa(dpi),
		"-singlefile",
		pdfPath,
		outputPrefix,
	)

	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, fmt.Errorf("pdftoppm failed: %w (output: %s)", err, string(output))
	}

	f, err := os.Open(outputPrefix + ".png")
	if err != nil {
		return nil, fmt.Errorf("pdftoppm did not create expected output: %w", err)
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("failed to decode rendered page: %w", err)
	}
	return img, nil
}

var _ Renderer = PopplerRenderer{}
