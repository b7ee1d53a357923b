package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/cochaviz/sambalxc/internal/config"
	"github.com/cochaviz/sambalxc/internal/logging"
	"github.com/cochaviz/sambalxc/internal/provision"
	"github.com/cochaviz/sambalxc/internal/report"
	"github.com/cochaviz/sambalxc/internal/samba"
	"github.com/cochaviz/sambalxc/internal/setup"
)

const (
	defaultLogLevel  = "info"
	defaultLogFormat = "cli"
)

// app carries state shared by all commands once the persistent flags are parsed.
type app struct {
	logger   *slog.Logger
	levelVar *slog.LevelVar
	viper    *viper.Viper

	logLevel  string
	logFormat string
	envFile   string
	noColor   bool
}

func main() {
	var levelVar slog.LevelVar
	levelVar.Set(slog.LevelInfo)

	a := &app{
		logger:   logging.NewCLI(os.Stderr, &levelVar),
		levelVar: &levelVar,
	}
	slog.SetDefault(a.logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := newRootCommand(a)
	if err := root.ExecuteContext(ctx); err != nil {
		if errors.Is(err, context.Canceled) {
			a.logger.Warn("command interrupted", "error", err)
			os.Exit(130)
		}
		a.logger.Error("command execution failed", "error", err)
		os.Exit(1)
	}
}

func newRootCommand(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:           "sambalxc",
		Short:         "Provision an LXC container serving a Samba file share",
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.logLevel, "log-level", defaultLogLevel, "Set log verbosity (debug, info, warning, error)")
	flags.StringVar(&a.logFormat, "log-format", defaultLogFormat, "Set log format (cli, json)")
	flags.StringVar(&a.envFile, "env-file", config.DefaultEnvFile, "Environment file loaded before resolving inputs")
	flags.BoolVar(&a.noColor, "no-color", false, "Disable colored output")
	config.RegisterFlags(flags)

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if err := a.configureLogging(); err != nil {
			return err
		}
		v, err := config.Load(cmd.Flags(), a.envFile)
		if err != nil {
			return err
		}
		a.viper = v
		return nil
	}

	root.AddCommand(
		newProvisionCommand(a),
		newRenderCommand(a),
		newConfigCommand(a),
		newPreflightCommand(a),
	)
	return root
}

func (a *app) configureLogging() error {
	level, err := logging.ParseLevel(a.logLevel)
	if err != nil {
		return err
	}
	mode, err := logging.ParseMode(a.logFormat)
	if err != nil {
		return err
	}
	a.levelVar.Set(level)

	a.logger = logging.New(mode, os.Stderr, a.levelVar).With("run_id", uuid.NewString())
	slog.SetDefault(a.logger)
	setup.SetLogger(a.logger)
	return nil
}

func (a *app) inputs() (config.Inputs, error) {
	if a.viper == nil {
		return config.Inputs{}, errors.New("configuration not loaded")
	}
	return config.Resolve(a.viper)
}

func newProvisionCommand(a *app) *cobra.Command {
	var preflight bool

	cmd := &cobra.Command{
		Use:   "provision",
		Args:  cobra.NoArgs,
		Short: "Create the container, attach storage and configure Samba",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.inputs()
			if err != nil {
				return err
			}
			cmdLogger := a.logger.With("command", "provision", "backend", in.Backend.Kind)

			if preflight {
				if err := setup.ForBackend(in.Backend).Run(); err != nil {
					cmdLogger.Info("rerun with --preflight=false to skip host checks")
					return err
				}
			}

			driver, closeDriver, err := newDriver(in, cmdLogger)
			if err != nil {
				return err
			}
			defer func() {
				if err := closeDriver(); err != nil {
					cmdLogger.Debug("closing backend failed", "error", err)
				}
			}()

			workflow := &provision.Workflow{
				Provisioner: driver,
				Executor:    driver,
				Logger:      cmdLogger,
				SettleDelay: in.SettleDelay,
			}
			summary, err := workflow.Run(cmd.Context(), in.Request(), in.ShareConfig())
			if err != nil {
				return err
			}
			return report.Render(cmd.OutOrStdout(), summary, report.Options{NoColor: a.noColor})
		},
	}

	cmd.Flags().BoolVar(&preflight, "preflight", true, "Check the local host before provisioning")
	return cmd
}

func newRenderCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "render",
		Args:  cobra.NoArgs,
		Short: "Print the smb.conf that provisioning would write",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.inputs()
			if err != nil {
				return err
			}
			content, err := samba.RenderConfig(in.Container.Hostname, in.ShareConfig())
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), content)
			return err
		},
	}
}

func newConfigCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect resolved inputs",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Args:  cobra.NoArgs,
		Short: "Print the resolved inputs as YAML",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.inputs()
			if err != nil {
				return err
			}
			out, err := in.YAML()
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(cmd.OutOrStdout(), out)
			return err
		},
	})
	return cmd
}

func newPreflightCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "preflight",
		Args:  cobra.NoArgs,
		Short: "Check the local host for the selected backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := a.inputs()
			if err != nil {
				return err
			}
			if err := setup.ForBackend(in.Backend).Run(); err != nil {
				return err
			}
			logging.OK(cmd.Context(), a.logger, "host is ready", "backend", in.Backend.Kind)
			return nil
		},
	}
}
