// Package cli implements fppctl, a command line front-end for the FPP client.
package cli

import (
	"context"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/lexfrei/go-fpp"
	"github.com/lexfrei/go-fpp/discovery"
	"github.com/lexfrei/go-fpp/fpperr"
	"github.com/lexfrei/go-fpp/internal/config"
	"github.com/lexfrei/go-fpp/observability"
)

// Exit codes.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitUsage       = 2
	ExitExhausted   = 3
	ExitUnsupported = 4
)

type options struct {
	configPath string
	host       string
	port       int
	username   string
	password   string
	insecure   bool
	timeout    time.Duration
	jsonOutput bool
	verbose    bool
}

type app struct {
	opts      options
	stdout    io.Writer
	stderr    io.Writer
	lookupEnv func(string) (string, bool)
	dial      func(*fpp.ClientConfig) (fpp.DeviceAPIClient, error)
	scan      func(context.Context, discovery.Config) ([]discovery.Candidate, error)
	styles    styles
}

// Run executes fppctl with args and returns the process exit code.
func Run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	return a.run(ctx, args)
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout:    stdout,
		stderr:    stderr,
		lookupEnv: os.LookupEnv,
		dial: func(cfg *fpp.ClientConfig) (fpp.DeviceAPIClient, error) {
			client, err := fpp.NewWithConfig(cfg)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		scan: func(ctx context.Context, cfg discovery.Config) ([]discovery.Candidate, error) {
			return discovery.NewBrowser(cfg).Scan(ctx)
		},
		styles: newStyles(stdout),
	}
}

func (a *app) run(ctx context.Context, args []string) int {
	root := a.rootCommand()
	root.SetArgs(args)
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	err := root.ExecuteContext(ctx)
	if err != nil {
		a.printError(err)
	}
	return ExitCode(err)
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "fppctl",
		Short: "Control a Falcon Player (FPP) device",
		Long: `fppctl talks to the HTTP API of a Falcon Player device.

The device is taken from --host, the FPP_HOST environment variable or the
config file (~/.config/fppctl/config.toml by default), in that order.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.opts.configPath, "config", "c", "", "Config file (.toml, .yaml or .yml)")
	flags.StringVarP(&a.opts.host, "host", "H", "", "Device host or URL")
	flags.IntVarP(&a.opts.port, "port", "p", 0, "Device HTTP port")
	flags.StringVarP(&a.opts.username, "username", "u", "", "HTTP basic auth user")
	flags.StringVar(&a.opts.password, "password", "", "HTTP basic auth password")
	flags.BoolVar(&a.opts.insecure, "insecure", false, "Skip TLS certificate verification")
	flags.DurationVar(&a.opts.timeout, "timeout", 0, "Per-request timeout")
	flags.BoolVar(&a.opts.jsonOutput, "json", false, "Output in JSON format")
	flags.BoolVarP(&a.opts.verbose, "verbose", "V", false, "Log requests and retries to stderr")

	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &fpperr.ValidationError{Field: "flags", Msg: err.Error()}
	})

	root.AddCommand(
		a.infoCommand(),
		a.statusCommand(),
		a.versionCommand(),
		a.playlistsCommand(),
		a.sequencesCommand(),
		a.playlistCommand(),
		a.scheduleCommand(),
		a.settingCommand(),
		a.volumeCommand(),
		a.commandCommand(),
		a.multisyncCommand(),
		a.scanCommand(),
	)

	return root
}

// loadConfig merges the config file, the environment and the flags, in
// increasing precedence, and validates the result.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Read(a.opts.configPath)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnv(a.lookupEnv); err != nil {
		return nil, err
	}

	if a.opts.host != "" {
		cfg.Host = a.opts.host
	}
	if a.opts.port != 0 {
		cfg.Port = a.opts.port
	}
	if a.opts.username != "" {
		cfg.Username = a.opts.username
	}
	if a.opts.password != "" {
		cfg.Password = a.opts.password
	}
	if a.opts.insecure {
		cfg.Insecure = true
	}
	if a.opts.timeout != 0 {
		cfg.Timeout = config.Duration(a.opts.timeout)
	}
	if a.opts.verbose {
		cfg.LogLevel = "debug"
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// withClient opens a session for the duration of fn.
func (a *app) withClient(ctx context.Context, fn func(fpp.DeviceAPIClient) error) error {
	cfg, err := a.loadConfig()
	if err != nil {
		return err
	}

	clientCfg, err := cfg.ClientConfig()
	if err != nil {
		return err
	}
	clientCfg.Logger = a.logger(cfg.LogLevel)

	client, err := a.dial(clientCfg)
	if err != nil {
		return err
	}
	defer client.Close()

	return fn(client)
}

//nolint:ireturn // the client takes the interface
func (a *app) logger(level string) observability.Logger {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelWarn
	}

	handler := slog.NewTextHandler(a.stderr, &slog.HandlerOptions{Level: lvl})
	return observability.NewSlogLogger(slog.New(handler))
}

// ExitCode maps an error to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}

	switch fpperr.Classify(err) {
	case fpperr.KindValidation:
		return ExitUsage
	case fpperr.KindRetryExhausted:
		return ExitExhausted
	case fpperr.KindUnsupported:
		return ExitUnsupported
	case fpperr.KindAPI:
		var apiErr *fpperr.APIError
		if errors.As(err, &apiErr) && !apiErr.Transient() {
			return ExitUsage
		}
	}

	return ExitFailure
}

func usageArgs(check cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := check(cmd, args); err != nil {
			return &fpperr.ValidationError{Field: "args", Msg: err.Error()}
		}
		return nil
	}
}
