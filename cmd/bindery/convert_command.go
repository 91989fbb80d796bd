package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/ocr"
	"bindery/internal/pipeline"
	"bindery/internal/queue"
	"bindery/internal/textutil"
	"bindery/internal/worker"
)

// newConvertCommand converts a single scan directory end to end without
// the daemon: register, queue, run, report.
func newConvertCommand(cliCtx *commandContext) *cobra.Command {
	var (
		title       string
		language    string
		optimize    string
		errorPolicy string
		frontCover  int
		backCover   int
		resume      bool
	)

	cmd := &cobra.Command{
		Use:   "convert <scan-directory>",
		Short: "Convert one scan directory synchronously",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cliCtx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := cliCtx.ensureLogger()
			if err != nil {
				return err
			}

			sourceDir, err := filepath.Abs(args[0])
			if err != nil {
				return err
			}
			info, err := os.Stat(sourceDir)
			if err != nil {
				return fmt.Errorf("scan directory: %w", err)
			}
			if !info.IsDir() {
				return fmt.Errorf("scan directory: %s is not a directory", sourceDir)
			}

			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				ctx := cmd.Context()

				var book *queue.Book
				if resume {
					book, err = store.FindLatestFailedBookBySource(ctx, sourceDir)
					if err != nil {
						return err
					}
					if book == nil {
						return fmt.Errorf("no failed book found for %s", sourceDir)
					}
				} else {
					book, err = store.NewBook(ctx, queue.NewBookParams{
						Title:        bookTitle(title, sourceDir),
						SourcePath:   sourceDir,
						BooksRoot:    cfg.BooksDir(),
						Language:     pick(language, cfg.OCR.Language),
						OptimizeMode: pick(optimize, cfg.Pipeline.OptimizeMode),
						ErrorPolicy:  pick(errorPolicy, cfg.Pipeline.ErrorPolicy),
						FrontCover:   optionalPage(frontCover),
						BackCover:    optionalPage(backCover),
					})
					if err != nil {
						return err
					}
				}

				job, err := store.NewJob(ctx, book.ID, nil, resume)
				if err != nil {
					return err
				}

				engine := ocr.SelectEngine(cfg.OCR.Engine)
				runner := pipeline.NewRunner(engine, cfg.OCRTimeout(), logger)
				w := worker.New(store, runner, cfg, logger)

				if _, err := w.ProcessJob(ctx, job.ID); err != nil {
					return err
				}

				done, err := store.GetJob(ctx, job.ID)
				if err != nil {
					return err
				}
				if done == nil || done.Status != queue.JobDone {
					message := "unknown failure"
					if done != nil && done.ErrorMessage != "" {
						message = done.ErrorMessage
					}
					return fmt.Errorf("conversion failed: %s", message)
				}

				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Converted %q (book %s)\n", book.Title, book.ID)
				fmt.Fprintf(out, "  PDF:    %s\n", filepath.Join(book.BookDir, "out", "book.pdf"))
				fmt.Fprintf(out, "  Text:   %s\n", filepath.Join(book.BookDir, "out", "book.txt"))
				fmt.Fprintf(out, "  Report: %s\n", filepath.Join(book.BookDir, "out", "report.json"))
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "Book title (derived from the directory name when empty)")
	cmd.Flags().StringVar(&language, "language", "", "OCR language, e.g. eng or kor+eng")
	cmd.Flags().StringVar(&optimize, "optimize", "", "Optimization mode: basic, balanced or max")
	cmd.Flags().StringVar(&errorPolicy, "error-policy", "", "OCR failure policy: abort or skip")
	cmd.Flags().IntVar(&frontCover, "front-cover", 0, "Page number to move to the front")
	cmd.Flags().IntVar(&backCover, "back-cover", 0, "Page number to move to the back")
	cmd.Flags().BoolVar(&resume, "resume", false, "Resume the latest failed conversion of this directory")

	return cmd
}

func bookTitle(flagValue, sourceDir string) string {
	if strings.TrimSpace(flagValue) != "" {
		return strings.TrimSpace(flagValue)
	}
	return textutil.TitleFromPath(sourceDir)
}

func pick(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func optionalPage(value int) *int {
	if value <= 0 {
		return nil
	}
	return &value
}
