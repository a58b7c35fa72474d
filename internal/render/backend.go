package render

import "fmt"

// Backend names accepted by NewRenderer.
const (
	BackendPDFCPU  = "pdfcpu"
	BackendPoppler = "poppler"
)

// BackendOptions tunes the renderer returned by NewRenderer.
type BackendOptions struct {
	DPI           int    // poppler only
	PopplerBinary string // poppler only
}

// NewRenderer returns the renderer for a backend name.
func NewRenderer(backend string, opts BackendOptions) (Renderer, error) {
	switch backend {
	case BackendPDFCPU, "":
		return ImageRenderer{}, nil
	case BackendPoppler:
		return PopplerRenderer{Binary: opts.PopplerBinary, DPI: opts.DPI}, nil
	default:
		return nil, fmt.Errorf("unknown render backend %q (want %q or %q)", backend, BackendPDFCPU, BackendPoppler)
	}
}
