package main

import (
	"fmt"
	"math"

	"github.com/spf13/cobra"

	"github.com/jackzampolin/lectern/internal/api"
	"github.com/jackzampolin/lectern/internal/export"
	"github.com/jackzampolin/lectern/internal/session"
)

var (
	exportFirst       int
	exportLast        int
	exportConcurrency int
	exportKeepGoing   bool
)

var exportCmd = &cobra.Command{
	Use:   "export <manifest>",
	Short: "Render pages to PNG files",
	Long: `Render a range of logical pages to PNG files under the home
exports directory (~/.lectern/exports/<title>/).

Export uses a larger cache than the viewer so the render pool stays busy.
The range is clamped to the book.

Examples:
  lectern export book.yaml                   # Every page
  lectern export book.yaml --first 1 --last 40
  lectern export book.yaml --keep-going      # Skip pages that fail`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		logger := newLogger()

		h, mgr, err := loadConfig()
		if err != nil {
			return err
		}
		cfg := mgr.Get()
		opts, err := sessionOptions(cfg, args[0], logger)
		if err != nil {
			return err
		}
		opts.Cache = cfg.ExportCacheConfig()

		sess, err := session.Open(ctx, opts)
		if err != nil {
			return err
		}
		defer sess.Close()

		title := sess.Title()
		if err := h.EnsureBookExportDir(title); err != nil {
			return err
		}

		res, err := export.Run(ctx, sess.Book(), sess.Cache(), export.Options{
			First:           exportFirst,
			Last:            exportLast,
			Path:            func(page int) string { return h.PageExportPath(title, page) },
			Concurrency:     exportConcurrency,
			ContinueOnError: exportKeepGoing,
			Logger:          logger,
		})
		if err != nil {
			return err
		}
		if err := api.Output(res); err != nil {
			return err
		}
		if len(res.Failures) > 0 {
			return fmt.Errorf("%d of %d pages failed", len(res.Failures), res.Last-res.First+1)
		}
		return nil
	},
}

func init() {
	exportCmd.Flags().IntVar(&exportFirst, "first", math.MinInt32, "first logical page (default: first page)")
	exportCmd.Flags().IntVar(&exportLast, "last", math.MaxInt32, "last logical page (default: last page)")
	exportCmd.Flags().IntVar(&exportConcurrency, "concurrency", 0, "pages in flight (default: one per CPU)")
	exportCmd.Flags().BoolVar(&exportKeepGoing, "keep-going", false, "continue past pages that fail to render")

	rootCmd.AddCommand(exportCmd)
}
