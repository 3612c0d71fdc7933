// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/gofrs/flock"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/paperfetch/internal/acquire"
	"github.com/pdiddy/paperfetch/internal/ledger"
	"github.com/pdiddy/paperfetch/internal/logging"
	"github.com/pdiddy/paperfetch/internal/secrets"
	"github.com/pdiddy/paperfetch/pkg/types"
)

// lockFileName guards an output directory against concurrent batches.
const lockFileName = ".paperfetch.lock"

// emailEnv is the conventional environment variable for the Unpaywall contact
// address, typically set in .env.
const emailEnv = "UNPAYWALL_EMAIL"

var downloadCmd = &cobra.Command{
	Use:   "download <input-table> <output-dir>",
	Short: "Download open-access PDFs for every row of a table",
	Long: `Download reads the input table and, for each row, resolves a DOI (from the
--doi column, or by looking up --title and --authors on CrossRef), asks the
resolver for open-access locations and saves the first one that yields a valid
PDF as <output-dir>/<paper_id>.pdf.

paper_id is the 1-based row number unless --id names an integer column.
Existing valid files are skipped; corrupt ones are replaced.

Exit status is 0 when every row is done or skipped, 2 when some rows failed,
and 130 when interrupted.`,
	Example: `  paperfetch download papers.csv pdfs --doi DOI --email me@example.org
  paperfetch download refs.tsv pdfs -d '\t' --title Title --authors Authors -v`,
	Args: cobra.ExactArgs(2),
	RunE: runDownload,
}

func init() {
	f := downloadCmd.Flags()
	f.StringP("delim", "d", ",", "column delimiter (single character; '\\t' for tab)")
	f.String("id", "", "integer column used as paper id (default: row number)")
	f.String("doi", "", "column holding DOIs")
	f.String("title", "", "column holding titles (with --authors, instead of --doi)")
	f.String("authors", "", "column holding authors (with --title, instead of --doi)")
	f.String("email", "", "contact email sent to Unpaywall and CrossRef (or UNPAYWALL_EMAIL)")
	f.String("resolver", string(types.BackendUnpaywall), "open-access resolver: unpaywall or openalex")
	f.String("resolver-url", "", "override the resolver API base URL")
	f.String("lookup-url", "", "override the CrossRef works API URL")
	f.String("ext", acquire.DefaultExtension, "artifact file extension")
	f.Duration("timeout", acquire.FetchTimeout, "per-download HTTP timeout")
	f.Duration("api-timeout", acquire.DefaultAPITimeout, "resolver and lookup HTTP timeout")
	f.String("user-agent", "", "User-Agent for downloads (default: a desktop browser string)")
	f.Duration("delay", 0, "pause between consecutive rows")
	f.Float64("rate", acquire.DefaultRateLimit, "max resolver and lookup requests per second (0 disables limiting)")
	f.Int("max-retries", 3, "retries when a metadata service answers 429")
	f.Bool("no-landing-pages", false, "do not follow citation_pdf_url on HTML landing pages")
	f.String("ledger", "", "record outcomes in this SQLite run ledger")
	f.String("manifest", "", "write a YAML manifest of outcomes to this path")
	f.BoolP("verbose", "v", false, "log progress for every row")
	f.Bool("debug", false, "log debug detail")
	f.String("log-format", "text", "log format: text or json")
	f.MarkHidden("resolver-url")
	f.MarkHidden("lookup-url")

	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	inputPath, outputDir := args[0], args[1]

	if err := viper.BindPFlags(cmd.Flags()); err != nil {
		return err
	}
	cfg, err := batchConfig(outputDir)
	if err != nil {
		return err
	}

	logger := logging.New(logging.Options{
		Verbose: cfg.Verbose,
		Debug:   viper.GetBool("debug"),
		Format:  viper.GetString("log-format"),
		Out:     cmd.OutOrStdout(),
		Err:     cmd.ErrOrStderr(),
	})
	if used := viper.ConfigFileUsed(); used != "" {
		logger.Info("using config file", "path", used)
	}
	if keys := loadedSecrets.Keys(); len(keys) > 0 {
		sort.Strings(keys)
		logger.Info("loaded secrets", "keys", keys)
	}

	table, err := acquire.ReadTableFile(inputPath, cfg.Columns)
	if err != nil {
		return err
	}
	logStart(logger, cfg, len(table.Records), inputPath)
	for _, col := range table.MissingColumns {
		logger.Warn("column not found in input table; affected rows will fail", "column", col, "input", inputPath)
	}

	if err := os.MkdirAll(outputDir, 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	lock := flock.New(filepath.Join(outputDir, lockFileName))
	ok, err := lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return fmt.Errorf("another paperfetch run is writing to %s", outputDir)
	}
	defer lock.Unlock()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	clientOpts := []acquire.ClientOption{
		acquire.WithLogger(logger),
		acquire.WithLandingPages(cfg.Download.FollowLandingPages),
	}
	resolver, err := newResolver(cfg.Resolver, viper.GetString("resolver-url"), clientOpts)
	if err != nil {
		return err
	}
	var lookup acquire.IdentifierLookup
	if cfg.Columns.LookupMode() {
		opts := clientOpts
		if u := viper.GetString("lookup-url"); u != "" {
			opts = append(opts, acquire.WithBaseURL(u))
		}
		lookup = acquire.NewCrossRefClient(cfg.Resolver, opts...)
	}
	fetcher := acquire.NewFetcher(cfg.Download, acquire.WithFetchLogger(logger))

	ctrlOpts := []acquire.ControllerOption{acquire.WithBatchLogger(logger)}
	if cfg.LedgerPath != "" {
		store, err := ledger.Open(ctx, cfg.LedgerPath, inputPath, outputDir)
		if err != nil {
			return err
		}
		defer store.Close()
		logger.Info("recording run", "ledger", cfg.LedgerPath, "run", store.RunID())
		ctrlOpts = append(ctrlOpts, acquire.WithRecorder(store))
	}

	ctrl := acquire.NewController(cfg, resolver, lookup, fetcher, ctrlOpts...)
	result, runErr := ctrl.Run(ctx, table.Records)
	interrupted := errors.Is(runErr, acquire.ErrInterrupted)
	if runErr != nil && !interrupted {
		return runErr
	}

	if cfg.ManifestPath != "" {
		if err := acquire.WriteManifest(cfg.ManifestPath, result); err != nil {
			logger.Error("writing manifest", "path", cfg.ManifestPath, "err", err)
		}
	}
	renderSummary(cmd.OutOrStdout(), result, len(table.Records))

	switch {
	case interrupted:
		return withExitCode(ExitInterrupted, fmt.Errorf("%w after %d of %d rows", acquire.ErrInterrupted, result.Total(), len(table.Records)))
	case result.HasFailures():
		return withExitCode(ExitFailures, fmt.Errorf("%d of %d paper(s) failed", result.Failed, result.Total()))
	}
	return nil
}

// batchConfig freezes the merged flag, config file, secret and environment
// settings into the value handed to the controller.
func batchConfig(outputDir string) (types.BatchConfig, error) {
	delim := viper.GetString("delim")
	if delim == `\t` {
		delim = "\t"
	}

	cfg := types.BatchConfig{
		Columns: types.ColumnMapping{
			Delimiter: delim,
			ID:        viper.GetString("id"),
			DOI:       viper.GetString("doi"),
			Title:     viper.GetString("title"),
			Authors:   viper.GetString("authors"),
		},
		Resolver: types.ResolverConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout: viper.GetDuration("api-timeout"),
			},
			Backend:    types.ResolverBackend(strings.ToLower(viper.GetString("resolver"))),
			Email:      resolveEmail(viper.GetString("email"), loadedSecrets, os.Getenv(emailEnv)),
			RateLimit:  viper.GetFloat64("rate"),
			MaxRetries: viper.GetInt("max-retries"),
		},
		Download: types.DownloadConfig{
			HTTPConfig: types.HTTPConfig{
				Timeout:   viper.GetDuration("timeout"),
				UserAgent: viper.GetString("user-agent"),
			},
			OutputDir:          outputDir,
			Extension:          strings.TrimPrefix(viper.GetString("ext"), "."),
			FollowLandingPages: !viper.GetBool("no-landing-pages"),
		},
		Delay:        viper.GetDuration("delay"),
		Verbose:      viper.GetBool("verbose"),
		LedgerPath:   viper.GetString("ledger"),
		ManifestPath: viper.GetString("manifest"),
	}
	cfg.Resolver.UserAgent = apiUserAgent(cfg.Resolver.Email)

	if err := cfg.Columns.Validate(); err != nil {
		return cfg, err
	}
	switch cfg.Resolver.Backend {
	case types.BackendUnpaywall:
		if cfg.Resolver.Email == "" {
			return cfg, fmt.Errorf("unpaywall requires a contact email: pass --email, set %s, or store it in .secrets/%s", emailEnv, secrets.UnpaywallEmail)
		}
	case types.BackendOpenAlex:
	default:
		return cfg, fmt.Errorf("unknown resolver %q (want %s or %s)", cfg.Resolver.Backend, types.BackendUnpaywall, types.BackendOpenAlex)
	}
	if cfg.Delay < 0 {
		cfg.Delay = 0
	}
	return cfg, nil
}

// resolveEmail picks the contact address: flag or config first, then the
// secrets directory, then the environment.
func resolveEmail(configured string, s secrets.Secrets, env string) string {
	if e := s.Get(secrets.UnpaywallEmail, strings.TrimSpace(configured)); e != "" {
		return e
	}
	return strings.TrimSpace(env)
}

// apiUserAgent identifies the tool to metadata services, with a mailto for
// their polite pools.
func apiUserAgent(email string) string {
	ua := "paperfetch/" + version
	if email != "" {
		ua += " (mailto:" + email + ")"
	}
	return ua
}

func newResolver(cfg types.ResolverConfig, baseURL string, opts []acquire.ClientOption) (acquire.Resolver, error) {
	if baseURL != "" {
		opts = append(opts, acquire.WithBaseURL(baseURL))
	}
	switch cfg.Backend {
	case types.BackendOpenAlex:
		return acquire.NewOpenAlexClient(cfg, opts...), nil
	case types.BackendUnpaywall, "":
		return acquire.NewUnpaywallClient(cfg, opts...), nil
	}
	return nil, fmt.Errorf("unknown resolver %q", cfg.Backend)
}

// logStart is the first informational line of a batch.
func logStart(logger *slog.Logger, cfg types.BatchConfig, rows int, input string) {
	mode := "doi"
	if cfg.Columns.LookupMode() {
		mode = "lookup"
	}
	logger.Info("starting batch",
		"input", input, "rows", rows, "mode", mode,
		"resolver", cfg.Resolver.Backend, "output", cfg.Download.OutputDir,
		"delay", cfg.Delay.Round(time.Millisecond))
}
