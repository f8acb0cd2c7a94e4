package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"runtime/debug"
	"syscall"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"seess/commands"
	"seess/config"
	"seess/misc"
	"seess/state"
)

// initializeAppContext prepares application context before command execution but
// after command line has been parsed
func initializeAppContext(ctx context.Context, cmd *cli.Command) (context.Context, error) {
	if cmd.NArg() == 0 {
		// nothing to do, just return
		return ctx, nil
	}

	env := state.EnvFromContext(ctx)
	env.Debug = cmd.Bool("debug")

	configFile := cmd.String("config")
	cfg, err := config.LoadConfiguration(configFile)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare configuration: %w", err)
	}
	log, err := cfg.Logging.Prepare(env.Debug)
	if err != nil {
		return ctx, fmt.Errorf("unable to prepare logs: %w", err)
	}
	// configuration is only set once program log is ready
	env.Cfg, env.Log = cfg, log
	env.RedirectStdLog()

	env.Log.Debug("Program started", zap.Strings("args", os.Args), zap.String("ver", misc.GetVersion()), zap.String("runtime", runtime.Version()), zap.String("hash", misc.GetGitHash()))

	if len(configFile) == 0 {
		env.Log.Debug("Using defaults (no configuration file)")
	}
	return ctx, nil
}

func destroyAppContext(ctx context.Context, cmd *cli.Command) (err error) {
	env := state.EnvFromContext(ctx)

	if er := env.Close(); er != nil {
		err = multierr.Append(err, fmt.Errorf("unable to release resources: %w", er))
	}
	if env.Log != nil {
		env.Log.Debug("Program ended", zap.Duration("elapsed", env.Uptime()), zap.Strings("parsed args", cmd.Args().Slice()))
	}

	// close logging
	env.RestoreStdLog()

	// remove empty panic file if any
	if env.Cfg != nil && len(env.Cfg.Logging.FileLogger.Destination) > 0 {
		debug.SetCrashOutput(nil, debug.CrashOptions{})
		fname := filepath.Join(filepath.Dir(env.Cfg.Logging.FileLogger.Destination), misc.GetAppName()+"-panic.log")
		if fi, er := os.Stat(fname); er == nil && fi.Size() == 0 {
			if er := os.Remove(fname); er != nil {
				err = multierr.Append(err, fmt.Errorf("unable to remove empty panic log file '%s': %w", fname, er))
			}
		}
	}
	return
}

// Ignore urfave/cli default error handling, subcommands return regular
// errors.
var errWasHandled bool

// this is called before appContext is destroyed, so we have a chance to
// properly log any error from subcommand
func exitErrHandler(ctx context.Context, _ *cli.Command, err error) {

	env := state.EnvFromContext(ctx)

	if env.Log != nil && env.Cfg != nil {
		env.Log.Error("Program ended with error", zap.Error(err))
		errWasHandled = true
	}
}

func usageErrorHandler(_ context.Context, _ *cli.Command, err error, _ bool) error {
	// do nothing special, error is reported either by exitErrHandler or on
	// exit directly to stderr.
	return err
}

func subcommandNotFoundHandler(ctx context.Context, _ *cli.Command, name string) {
	state.EnvFromContext(ctx).Log.Warn("Unknown command, nothing to do", zap.String("command", name))
}

func main() {

	// allow graceful shutdown on interrupt, session and watch run until
	// interrupted
	ctx, stop := signal.NotifyContext(state.ContextWithEnv(context.Background()), os.Interrupt, syscall.SIGTERM)

	app := &cli.Command{
		Name:            misc.GetAppName(),
		Usage:           "CSS playground: structural analysis, undo history and live preview of CSS and HTML",
		Version:         misc.GetVersion() + " (" + runtime.Version() + ") : " + misc.GetGitHash(),
		HideHelpCommand: true,
		Before:          initializeAppContext,
		After:           destroyAppContext,
		OnUsageError:    usageErrorHandler,
		ExitErrHandler:  exitErrHandler,
		CommandNotFound: subcommandNotFoundHandler,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, DefaultText: "", Usage: "load configuration from `FILE` (YAML)"},
			&cli.BoolFlag{Name: "debug", Aliases: []string{"d"}, Usage: "changes program behavior to help troubleshooting, logs everything to console"},
		},
		Commands: []*cli.Command{
			{
				Name:         "analyze",
				Usage:        "Prints selector, rule and property counts of CSS file(s)",
				OnUsageError: usageErrorHandler,
				Action:       commands.Analyze,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "analyzer", Usage: "analyzer `NAME` (scanner, grammar), overrides configuration"},
					&cli.BoolFlag{Name: "details", Usage: "print at-rules, imports and parse warnings as well"},
				},
				ArgsUsage: "[FILE...]",
				CustomHelpTemplate: fmt.Sprintf(`%s
FILE:
    CSS file(s) to analyze, if absent - STDIN
    UTF-16 and UTF-32 files are accepted when they start with byte order mark
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "preview",
				Usage:        "Writes preview document composed of CSS and HTML",
				OnUsageError: usageErrorHandler,
				Action:       commands.Preview,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "theme", Usage: "preview `THEME` (light, dark), overrides configuration"},
					&cli.StringFlag{Name: "css", Usage: "take CSS from `FILE` instead of the stored project"},
					&cli.StringFlag{Name: "html", Usage: "take HTML from `FILE` instead of the stored project"},
				},
				ArgsUsage: "DESTINATION",
			},
			{
				Name:         "session",
				Usage:        "Interactive editing session of the configured project",
				OnUsageError: usageErrorHandler,
				Action:       commands.Session,
				CustomHelpTemplate: fmt.Sprintf(`%s
Reads commands from STDIN, type "help" to see them. Buffers are persisted in
the storage database, sessions of the same project running at the same time
see each other changes. Receiving change from another session drops local
history of the changed buffer.
`, cli.CommandHelpTemplate),
			},
			{
				Name:         "watch",
				Usage:        "Watches CSS (and HTML) file, analyzes and previews it on every save",
				OnUsageError: usageErrorHandler,
				Action:       commands.Watch,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "preview", Usage: "keep preview document in `FILE` up to date"},
				},
				ArgsUsage: "CSS_FILE [HTML_FILE]",
			},
			{
				Name:         "slots",
				Usage:        "Lists stored buffers",
				OnUsageError: usageErrorHandler,
				Action:       commands.Slots,
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "delete", Usage: "delete stored buffer with `KEY`"},
				},
			},
			{
				Name:  "dumpconfig",
				Usage: "Dumps either default or actual configuration (YAML)",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "default", Usage: "output default embedded configuration"},
				},
				OnUsageError: usageErrorHandler,
				Action:       outputConfiguration,
				ArgsUsage:    "DESTINATION",
				CustomHelpTemplate: fmt.Sprintf(`%s

DESTINATION:
    file name to write configuration to, if absent - STDOUT

Produces file with actual "active" configuration values which is composition of
default values and values specified in configuration file. To see default
configuration embedded into the program use --default flag.
`, cli.CommandHelpTemplate),
			},
		},
	}

	var err error
	// NOTE: os.Exit is called at the end of main to set exit code, make sure
	// there are no other deffered functions after that
	defer func() {
		stop()
		if err != nil {
			// It may happen that log is either not set yet (argument parsing) or already closed,
			// report errors to stderr directly
			if !errWasHandled {
				fmt.Fprintf(os.Stderr, "Program ended with error: %v\n", err)
			}
			os.Exit(1)
		}
	}()
	err = app.Run(ctx, os.Args)
}

func outputConfiguration(ctx context.Context, cmd *cli.Command) error {

	env := state.EnvFromContext(ctx)
	if cmd.Args().Len() > 1 {
		env.Log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[1:]))
	}

	fname := cmd.Args().Get(0)

	var (
		err   error
		data  []byte
		state string
	)

	out := os.Stdout
	if len(fname) > 0 {
		out, err = os.Create(fname)
		if err != nil {
			return fmt.Errorf("unable to create destination file '%s': %w", fname, err)
		}
		defer out.Close()
	}

	if cmd.Bool("default") {
		state = "default"
		data, err = config.Prepare()
	} else {
		state = "actual"
		data, err = config.Dump(env.Cfg)
	}
	if err != nil {
		return fmt.Errorf("unable to get configuration: %w", err)
	}

	if len(fname) == 0 {
		fname = "STDOUT"
	}
	env.Log.Debug("Outputting configuration", zap.String("state", state), zap.String("file", fname))

	_, err = out.Write(data)
	if err != nil {
		return fmt.Errorf("unable to write configuration: %w", err)
	}
	return nil
}
