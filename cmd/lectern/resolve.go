package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/render"
)

// ResolveResult is one line of `lectern resolve` output.
type ResolveResult struct {
	Page   int    `json:"page" yaml:"page"`
	Volume int    `json:"volume" yaml:"volume"`
	Path   string `json:"path,omitempty" yaml:"path,omitempty"`
	Index  int    `json:"index" yaml:"index"`
	Error  string `json:"error,omitempty" yaml:"error,omitempty"`
}

var resolveCmd = &cobra.Command{
	Use:   "resolve <manifest> <page>...",
	Short: "Map logical page numbers to volumes without rendering",
	Long: `Resolve logical page numbers against a manifest's volumes.

Indexes are 0-based within the volume. Pass negative page numbers after --.

Examples:
  lectern resolve book.yaml 1 120
  lectern resolve book.yaml -- -2 0`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := book.LoadManifest(args[0])
		if err != nil {
			return err
		}
		volumes, err := m.BookVolumes(render.PageCount)
		if err != nil {
			return err
		}
		// Nothing is opened: the default opener is never called.
		b, err := book.New(book.Config{Volumes: volumes, Offset: m.PageNumberOffset, Opener: render.PDFOpener{}})
		if err != nil {
			return err
		}
		defer b.Close()

		results := make([]ResolveResult, 0, len(args)-1)
		for _, arg := range args[1:] {
			page, err := strconv.Atoi(arg)
			if err != nil {
				return fmt.Errorf("page must be an integer: %q", arg)
			}
			res := ResolveResult{Page: page}
			loc, err := b.Resolve(page)
			if err != nil {
				res.Error = err.Error()
			} else {
				res.Volume, res.Index = loc.Volume, loc.Index
				res.Path = volumes[loc.Volume].Path
			}
			results = append(results, res)
		}
		return api.Output(results)
	},
}

func init() {
	rootCmd.AddCommand(resolveCmd)
}
