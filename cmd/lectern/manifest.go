package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/book"
	"github.com/jackzampolin/lectern/internal/render"
)

var (
	manifestOut   string
	manifestTitle string
	manifestCount bool
)

var manifestCmd = &cobra.Command{
	Use:   "manifest",
	Short: "Create and inspect book manifests",
}

var manifestInitCmd = &cobra.Command{
	Use:   "init <pdf>...",
	Short: "Write a manifest for a set of volume PDFs",
	Long: `Write a book manifest listing the given PDFs as volumes.

Volumes are ordered by their numeric suffix (book-1.pdf, book-2.pdf,
book-10.pdf). The title defaults to the first file name without the suffix.
Page counts are read from each PDF unless --count=false.

Examples:
  lectern manifest init scans/*.pdf
  lectern manifest init a.pdf b.pdf --title "Crusade in Europe" --out crusade.yaml`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m := book.NewManifest(manifestTitle, args)
		if manifestCount {
			if err := m.FillPageCounts(render.PageCount); err != nil {
				return err
			}
		}
		if err := m.Save(manifestOut); err != nil {
			return err
		}

		total := 0
		for _, v := range m.Volumes {
			total += v.PageCount
		}
		fmt.Printf("Wrote %s: %q, %d volumes, %d pages\n", manifestOut, m.Title, len(m.Volumes), total)
		return nil
	},
}

var manifestShowCmd = &cobra.Command{
	Use:   "show <manifest>",
	Short: "Print a manifest after validating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		m, err := book.LoadManifest(args[0])
		if err != nil {
			return err
		}
		return api.Output(m)
	},
}

func init() {
	manifestInitCmd.Flags().StringVar(&manifestOut, "out", "book.yaml", "manifest file to write")
	manifestInitCmd.Flags().StringVar(&manifestTitle, "title", "", "book title (default: derived from the first volume)")
	manifestInitCmd.Flags().BoolVar(&manifestCount, "count", true, "read page counts from the PDFs")

	manifestCmd.AddCommand(manifestInitCmd)
	manifestCmd.AddCommand(manifestShowCmd)
	rootCmd.AddCommand(manifestCmd)
}
