// Command mg2dsn turns permanent Mailgun delivery failures into RFC 3464
// bounce reports addressed to the original sender.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mg2dsn/internal/bounce"
	"github.com/nhle/mg2dsn/internal/credential"
	"github.com/nhle/mg2dsn/internal/ledger"
	"github.com/nhle/mg2dsn/internal/logger"
	"github.com/nhle/mg2dsn/internal/mailgun"
	"github.com/nhle/mg2dsn/internal/model"
	"github.com/nhle/mg2dsn/internal/theme"
)

var errNoDomain = errors.New("no domain given and none remembered")

type options struct {
	configFile string
	ledgerPath string
	windowDays int
	dryRun     bool
	verbose    bool
	forget     bool

	// creds defaults to the system keyring.
	creds credential.Provider
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	err := newRootCmd().ExecuteContext(ctx)
	stop()
	os.Exit(exitCode(err, os.Stdout, os.Stderr))
}

// exitCode reports err and returns the process exit status. A missing
// domain is a usage message on stdout rather than an error.
func exitCode(err error, stdout, stderr io.Writer) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, errNoDomain):
		fmt.Fprintln(stdout, "Please specify a domain.")
	default:
		fmt.Fprintln(stderr, err)
	}
	return 1
}

func newRootCmd() *cobra.Command {
	var opts options

	cmd := &cobra.Command{
		Use:   "mg2dsn [domain]",
		Short: "Send bounce reports for permanent Mailgun failures",
		Long: `mg2dsn walks the Mailgun event log of a sending domain, finds permanent
bounces, and sends the original sender a delivery status notification
with the undelivered message attached. Suppressions created by a fresh
bounce are cleared afterwards.

Without a domain argument the last domain used is taken from
~/.config/mg2dsn/defaults.json.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			var domain string
			if len(args) == 1 {
				domain = strings.TrimSpace(args[0])
			}
			return run(cmd.Context(), domain, opts)
		},
	}

	cmd.Flags().StringVar(&opts.configFile, "config", "", "config file (default is ~/.config/mg2dsn/config.yaml)")
	cmd.Flags().StringVar(&opts.ledgerPath, "ledger", "", "SQLite ledger of notified events; enables deduplication across runs")
	cmd.Flags().IntVar(&opts.windowDays, "window-days", 0, "how many days of the event log to walk (default from config, 30)")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "build reports but neither send them nor clear suppressions")
	cmd.Flags().BoolVarP(&opts.verbose, "verbose", "v", false, "enable debug logging")
	cmd.Flags().BoolVar(&opts.forget, "forget", false, "remove the stored API key for the domain and exit")

	return cmd
}

func run(ctx context.Context, domainArg string, opts options) error {
	configPath := opts.configFile
	if configPath == "" {
		configPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(configPath)
	if err != nil {
		return err
	}
	if opts.windowDays > 0 {
		cfg.Feed.WindowDays = opts.windowDays
	}
	if opts.ledgerPath != "" {
		cfg.LedgerPath = opts.ledgerPath
	}

	logger.SetLevel(logger.ParseLevel(cfg.Log.Level))
	if opts.verbose {
		logger.SetLevel(logger.DEBUG)
	}
	logger.SetRedact(cfg.Log.Redact)

	prefsPath := model.DefaultPreferencesPath()
	prefs, err := model.LoadPreferences(prefsPath)
	if err != nil {
		return err
	}
	domain, ok := model.ResolveDomain(domainArg, prefs)
	if !ok {
		return errNoDomain
	}
	if err := model.RememberDomain(prefsPath, domain); err != nil {
		logger.Warn("could not remember domain", "error", err)
	}

	creds := opts.creds
	if creds == nil {
		creds = credential.NewKeyringProvider(credential.Prompt)
	}
	if opts.forget {
		if err := creds.Forget(mailgun.System, domain); err != nil {
			return err
		}
		fmt.Fprintf(os.Stderr, "Removed stored API key for %s\n", domain)
		return nil
	}

	apiKey, err := creds.Resolve(mailgun.System, domain)
	if err != nil {
		return err
	}

	pipelineOpts := bounce.Options{Domain: domain, DryRun: opts.dryRun}
	if cfg.LedgerPath != "" {
		l, err := ledger.Open(expandHome(cfg.LedgerPath))
		if err != nil {
			return err
		}
		defer l.Close()
		pipelineOpts.Ledger = l
	}

	client := mailgun.NewClient(cfg.API, apiKey)
	begin := time.Now().Add(-cfg.Feed.Window())
	feed := client.Failures(domain, begin, cfg.Feed.PageSize)

	fmt.Fprintln(os.Stderr, banner(domain, begin, opts.dryRun))

	stats, err := bounce.NewProcessor(client, feed, pipelineOpts).Run(ctx)
	fmt.Fprintln(os.Stderr, summary(stats, opts.dryRun))

	if mailgun.IsAuthError(err) {
		return fmt.Errorf("%w (run with --forget to enter a new key)", err)
	}
	return err
}

func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[2:])
}

func banner(domain string, begin time.Time, dryRun bool) string {
	text := fmt.Sprintf("mg2dsn %s since %s", domain, begin.UTC().Format("2006-01-02"))
	if dryRun {
		text += " (dry run)"
	}
	return theme.HeaderStyle.Render(text)
}
