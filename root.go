package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/storj-go/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// CLIFlags holds the global persistent flags.
type CLIFlags struct {
	ConfigPath  string
	BridgeURL   string
	DownloadDir string
	JSON        bool
	Verbose     bool
	Quiet       bool
}

// CLIContext carries what every subcommand needs: the flags, the resolved
// configuration and a logger built from both. It is stored in the command's
// context by the root pre-run.
type CLIContext struct {
	Flags  CLIFlags
	Cfg    *config.Resolved
	Logger *slog.Logger
	Stdout io.Writer
	Stderr io.Writer
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) (*CLIContext, bool) {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	return cc, ok
}

// mustCLIContext returns the CLIContext installed by the root pre-run.
// Subcommands that skip config loading must not call it.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc, ok := cliContextFrom(ctx)
	if !ok {
		panic("CLIContext missing from command context")
	}

	return cc
}

// skipConfigCommands lists commands that must work without a valid
// configuration: they either create it or never touch the bridge.
var skipConfigCommands = map[string]bool{
	"storj-go config init":       true,
	"storj-go config set":        true,
	"storj-go generate-mnemonic": true,
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	var flags CLIFlags

	cmd := &cobra.Command{
		Use:     "storj-go",
		Short:   "Storage bridge CLI client",
		Long:    "Browse, upload and download files in encrypted bridge buckets as a directory tree.",
		Version: version,
		// Silence Cobra's default error/usage printing; main handles it.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cc := &CLIContext{
				Flags:  flags,
				Stdout: cmd.OutOrStdout(),
				Stderr: cmd.ErrOrStderr(),
			}

			if !skipConfigCommands[cmd.CommandPath()] {
				resolved, err := loadConfig(cmd, &flags)
				if err != nil {
					return err
				}

				cc.Cfg = resolved
			}

			cc.Logger = buildLogger(cc.Cfg, flags, cc.Stderr, isTerminal(os.Stderr))
			cmd.SetContext(context.WithValue(cmd.Context(), cliContextKey{}, cc))

			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&flags.ConfigPath, "config", "", "config file path")
	pf.StringVar(&flags.BridgeURL, "bridge", "", "bridge URL (overrides config and STORJ_BRIDGE)")
	pf.StringVar(&flags.DownloadDir, "download-dir", "", "directory for downloads without an explicit target")
	pf.BoolVar(&flags.JSON, "json", false, "output in JSON format")
	pf.BoolVarP(&flags.Verbose, "verbose", "v", false, "enable debug logging")
	pf.BoolVarP(&flags.Quiet, "quiet", "q", false, "suppress informational output")

	cmd.AddCommand(newConfigCmd())
	cmd.AddCommand(newImportKeysCmd())
	cmd.AddCommand(newExportKeysCmd())
	cmd.AddCommand(newDeleteKeysCmd())
	cmd.AddCommand(newVerifyKeysCmd())
	cmd.AddCommand(newGenerateMnemonicCmd())
	cmd.AddCommand(newRegisterCmd())
	cmd.AddCommand(newInfoCmd())
	cmd.AddCommand(newLsCmd())
	cmd.AddCommand(newTreeCmd())
	cmd.AddCommand(newMkbucketCmd())
	cmd.AddCommand(newRmbucketCmd())
	cmd.AddCommand(newRmCmd())
	cmd.AddCommand(newGetCmd())
	cmd.AddCommand(newPutCmd())
	cmd.AddCommand(newHistoryCmd())

	return cmd
}

// loadConfig resolves the effective configuration from the override chain.
// Flags are passed to the resolver only when explicitly set.
func loadConfig(cmd *cobra.Command, flags *CLIFlags) (*config.Resolved, error) {
	cli := config.CLIOverrides{
		ConfigPath: flags.ConfigPath,
	}

	if cmd.Flags().Changed("bridge") {
		cli.BridgeURL = &flags.BridgeURL
	}

	if cmd.Flags().Changed("download-dir") {
		cli.DownloadDir = &flags.DownloadDir
	}

	resolved, err := config.Resolve(config.ReadEnvOverrides(), cli)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	return resolved, nil
}

// buildLogger creates a logger from the resolved config and CLI flags. The
// config level is the baseline; --verbose and --quiet override it. With
// log_format "auto", a terminal gets text and anything else gets JSON.
func buildLogger(cfg *config.Resolved, flags CLIFlags, w io.Writer, tty bool) *slog.Logger {
	level := slog.LevelInfo
	format := "auto"

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}

		format = cfg.LogFormat
	}

	if flags.Verbose {
		level = slog.LevelDebug
	}

	if flags.Quiet {
		level = slog.LevelError
	}

	opts := &slog.HandlerOptions{Level: level}

	if format == "json" || (format == "auto" && !tty) {
		return slog.New(slog.NewJSONHandler(w, opts))
	}

	return slog.New(slog.NewTextHandler(w, opts))
}

func isTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
