package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/log"
	"fintrack/internal/services"
)

type importOptions struct {
	userID   string
	file     string
	reviewed bool
	dryRun   bool
}

func newImportCommand() *cobra.Command {
	var opts importOptions

	cmd := &cobra.Command{
		Use:   "import --user ID --file PATH",
		Short: "Import a bank statement for a user",
		Long: `Sends a text statement (.csv, .txt, .tsv) to the language model and stores
the transactions it finds. With --dry-run the candidates are printed as JSON
instead; edit them and run again with --reviewed to store the file as is.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runImport(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.userID, "user", "", "owner of the imported transactions (required)")
	_ = cmd.MarkFlagRequired("user")
	cmd.Flags().StringVar(&opts.file, "file", "", "statement file, or reviewed JSON with --reviewed (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&opts.reviewed, "reviewed", false, "file holds reviewed candidates from a previous --dry-run")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "print candidates without storing them")
	cmd.MarkFlagsMutuallyExclusive("reviewed", "dry-run")

	return cmd
}

func runImport(cmd *cobra.Command, opts importOptions) error {
	ctx := cmd.Context()
	cfg, logger, store, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Warn("Failed to close store", log.FieldError, err)
		}
	}()

	// Tell running servers about the new rows.
	var publisher services.ChangePublisher
	if events := connectEvents(cfg, logger); events != nil {
		publisher = events
		defer events.Close()
	}
	svc := buildServices(cfg, store.Store, cache.New(1, cfg.CacheTTL), publisher, logger)

	content, err := os.ReadFile(opts.file)
	if err != nil {
		return fmt.Errorf("read %s: %w", opts.file, err)
	}

	var candidates []core.ImportCandidate
	if opts.reviewed {
		var analysis services.Analysis
		if err := json.Unmarshal(content, &analysis); err != nil {
			return fmt.Errorf("decode reviewed candidates: %w", err)
		}
		candidates = analysis.Transactions
	} else {
		analysis, err := svc.Imports.Analyze(ctx, opts.userID, filepath.Base(opts.file), content)
		if err != nil {
			return err
		}
		if opts.dryRun {
			return writeJSON(cmd.OutOrStdout(), analysis)
		}
		candidates = analysis.Transactions
	}

	result, err := svc.Imports.Confirm(ctx, opts.userID, candidates)
	if err != nil {
		return err
	}
	logger.Info("Statement imported", log.FieldOperation, log.OpImport, log.FieldUserID, opts.userID, "count", result.Count)
	return writeJSON(cmd.OutOrStdout(), result)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
