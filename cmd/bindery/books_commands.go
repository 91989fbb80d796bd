package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"bindery/internal/config"
	"bindery/internal/manifest"
	"bindery/internal/queue"
)

func newBooksCommand(cliCtx *commandContext) *cobra.Command {
	booksCmd := &cobra.Command{
		Use:   "books",
		Short: "Inspect registered books",
	}

	booksCmd.AddCommand(newBooksListCommand(cliCtx))
	booksCmd.AddCommand(newBooksShowCommand(cliCtx))

	return booksCmd
}

func newBooksListCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered books",
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				books, err := store.ListBooks(cmd.Context())
				if err != nil {
					return err
				}
				if len(books) == 0 {
					fmt.Fprintln(cmd.OutOrStdout(), "No books registered")
					return nil
				}

				rows := make([][]string, 0, len(books))
				for _, book := range books {
					rows = append(rows, []string{
						book.ID,
						book.Title,
						string(book.Status),
						string(book.CurrentStage),
						formatTime(&book.CreatedAt),
					})
				}
				table := renderTable(
					[]string{"ID", "Title", "Status", "Stage", "Created"},
					rows,
				)
				fmt.Fprintln(cmd.OutOrStdout(), table)
				return nil
			})
		},
	}
}

// newBooksShowCommand prints a single book with its stage manifest as JSON.
func newBooksShowCommand(cliCtx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "show <book-id>",
		Short: "Show a book and its stage manifest",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cliCtx.withStore(func(_ *config.Config, store *queue.Store) error {
				book, err := store.GetBook(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if book == nil {
					return fmt.Errorf("book %s not found", args[0])
				}

				payload := map[string]any{
					"id":            book.ID,
					"title":         book.Title,
					"source_path":   book.SourcePath,
					"book_dir":      book.BookDir,
					"status":        book.Status,
					"current_stage": book.CurrentStage,
				}
				if m, err := manifest.Open(book.BookDir); err == nil {
					payload["manifest"] = m.Document()
				}

				encoded, err := json.MarshalIndent(payload, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(encoded))
				return nil
			})
		},
	}
}
