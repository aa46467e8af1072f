package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adrianpk/cmdguard/internal/cli"
	"github.com/adrianpk/cmdguard/internal/config"
	"github.com/adrianpk/cmdguard/internal/hook"
	"github.com/adrianpk/cmdguard/internal/logging"
	"github.com/adrianpk/cmdguard/internal/policy"
	"github.com/adrianpk/cmdguard/internal/terminal"
)

var version = "dev"

func main() {
	os.Exit(run(os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// app holds the state shared by the subcommands of one invocation.
type app struct {
	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string
	logFormat  string
	color      string

	engine *policy.Engine
	code   int
}

func run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	a := &app{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
		engine: policy.DefaultEngine(),
	}

	root := a.rootCommand()
	root.SetArgs(args)
	root.SetIn(stdin)
	root.SetOut(stdout)
	root.SetErr(stderr)

	if err := root.Execute(); err != nil {
		fmt.Fprintf(stderr, "cmdguard: %v\n", err)
		return hook.ExitError
	}
	return a.code
}

func (a *app) rootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   "cmdguard",
		Short: "Command policy engine for coding agents",
		Long: `cmdguard decides whether a shell command proposed by a coding agent may run,
and whether a file may be edited.

Run as a Claude Code PreToolUse hook:
  cmdguard hook < payload.json

Check commands by hand:
  cmdguard check -- git commit -m "wip"
  cmdguard explain 'bash -c "sudo id"'`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "config file (default: ./.cmdguard.yml, then ~/.config/cmdguard/config.yml)")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn or error")
	flags.StringVar(&a.logFormat, "log-format", "", "log format: text or json")
	flags.StringVar(&a.color, "color", "", "colored output: auto, always or never")

	root.AddCommand(
		a.hookCommand(),
		a.checkCommand(),
		a.pathCommand(),
		a.explainCommand(),
		a.rulesCommand(),
		a.initCommand(),
		a.versionCommand(),
	)
	return root
}

// loadConfig reads the config file and applies the flag overrides.
func (a *app) loadConfig() (*config.Config, error) {
	cfg, err := config.Load(a.configPath)
	if err != nil {
		return nil, err
	}
	if a.logLevel != "" {
		cfg.Log.Level = a.logLevel
	}
	if a.logFormat != "" {
		cfg.Log.Format = a.logFormat
	}
	if a.color != "" {
		cfg.Output.Color = a.color
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setup loads the config and builds the logger. Console logs go to stderr.
func (a *app) setup() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := a.loadConfig()
	if err != nil {
		return nil, nil, nil, err
	}
	logger, closeLog, err := logging.Setup(cfg.Log, a.stderr)
	if err != nil {
		return nil, nil, nil, err
	}
	return cfg, logger, closeLog, nil
}

func (a *app) printer(cfg *config.Config) *cli.Printer {
	enabled := terminal.NewDetector().ColorEnabled(cfg.Output.Color, a.stdout)
	return cli.NewPrinter(a.stdout, terminal.NewPainter(enabled))
}

func (a *app) hookCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "hook",
		Short: "Evaluate a Claude Code hook payload read from stdin",
		Long: `Reads one PreToolUse payload from stdin.

Allowed calls print {"decision":"allow"} and exit 0. Warnings add a reason.
Blocked calls print the reason on stderr and exit 2. Unreadable input exits 1.
Logs only go to the configured log file.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.code = a.runHook()
			return nil
		},
	}
}

func (a *app) runHook() int {
	// A broken config must not stop commands from being checked.
	cfg, err := a.loadConfig()
	if err != nil {
		cfg = config.Default()
	}
	logger, closeLog, err := logging.Setup(cfg.Log, nil)
	if err != nil {
		logger, closeLog, _ = logging.Setup(config.Default().Log, nil)
	}
	defer closeLog()

	input, err := hook.Decode(a.stdin)
	if err != nil {
		logger.Error("hook input rejected", "error", err)
		fmt.Fprintln(a.stderr, err)
		return hook.ExitError
	}

	result := hook.NewEvaluator(a.engine, logger).Evaluate(input)
	return hook.Respond(result, a.stdout, a.stderr)
}

// commandArgs joins the arguments into one command line, or reads it from
// stdin when there are none.
func (a *app) commandArgs(args []string) (string, error) {
	if len(args) > 0 {
		return strings.Join(args, " "), nil
	}
	data, err := io.ReadAll(a.stdin)
	if err != nil {
		return "", fmt.Errorf("cannot read command: %w", err)
	}
	command := strings.TrimRight(string(data), "\n")
	if strings.TrimSpace(command) == "" {
		return "", errors.New("no command given")
	}
	return command, nil
}

func (a *app) checkCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "check [--] COMMAND...",
		Short: "Decide whether a shell command may run",
		Long: `Prints the verdict and reason for a shell command. The arguments are joined
with spaces; with no arguments the command is read from stdin.
Exits 2 when the command is blocked.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			command, err := a.commandArgs(args)
			if err != nil {
				return err
			}
			decision := a.engine.EvaluateCommand(command)
			logger.Debug("command checked", "command", command, "verdict", decision.Verdict.String(), "rule", decision.Rule)

			a.printer(cfg).Decision(command, decision)
			if !decision.Allowed() {
				a.code = hook.ExitBlock
			}
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *app) pathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path PATH...",
		Short: "Decide whether files may be edited",
		Long:  "Prints the verdict for each path. Exits 2 when any path is blocked.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, closeLog, err := a.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			p := a.printer(cfg)
			for _, target := range args {
				decision := a.engine.EvaluatePath(target)
				logger.Debug("path checked", "path", target, "verdict", decision.Verdict.String())
				p.Decision(target, decision)
				if !decision.Allowed() {
					a.code = hook.ExitBlock
				}
			}
			return nil
		},
	}
}

func (a *app) explainCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "explain [--] COMMAND...",
		Short: "Show every sub-command found in a shell command and its decision",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := a.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			command, err := a.commandArgs(args)
			if err != nil {
				return err
			}
			a.printer(cfg).Evaluation(command, a.engine.InspectCommand(command))
			return nil
		},
	}
	cmd.Flags().SetInterspersed(false)
	return cmd
}

func (a *app) rulesCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "rules",
		Short: "List the rules in evaluation order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, closeLog, err := a.setup()
			if err != nil {
				return err
			}
			defer closeLog()

			return a.printer(cfg).Rules(a.engine.Rules(), a.engine.PathRules())
		},
	}
}

func (a *app) initCommand() *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cli.RunInit(a.stdout, local)
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "write .cmdguard.yml in the current directory")
	return cmd
}

func (a *app) versionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(a.stdout, "cmdguard version %s\n", version)
			fmt.Fprintf(a.stdout, "  Go version: %s\n", runtime.Version())
			fmt.Fprintf(a.stdout, "  Platform: %s/%s\n", runtime.GOOS, runtime.GOARCH)
		},
	}
}
