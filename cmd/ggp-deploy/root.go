package main

import (
	"context"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"ggp-deploy/internal/config"
	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/internal/pkg/logger"
	"ggp-deploy/internal/service"
	"ggp-deploy/pkg/utils"
)

// app holds the state shared by every command of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *logger.Logger

	deploy struct {
		binaryArgs string
		vars       string
		headless   bool
		envVars    string
	}
}

// globalFlags maps persistent flags onto config keys.
var globalFlags = map[string]string{
	"ggp-bin":    "ggp.bin",
	"instance":   "ggp.instance",
	"app-path":   "ggp.app_path",
	"build-host": "ssh.host",
	"log-level":  "log.level",
}

func newApp() *app {
	return &app{v: viper.New()}
}

func (a *app) rootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ggp-deploy [flags] <binary>",
		Short: "Deploy a sample binary and its assets to an instance and run it",
		Long: `ggp-deploy uploads the assets directory, the binary and, when present,
bazel-bin/assets to /mnt/developer/<app-path>/ on the instance with
"ggp ssh sync", then starts the binary there with "ggp run", or with
"ggp ssh shell" when --headless is given.

The exit status is that of the last ggp command run.`,
		Args:              usageArgs(cobra.ExactArgs(1)),
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.load,
		RunE:              a.runDeploy,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default ./ggp-deploy.yaml)")
	pf.String("ggp-bin", "", "path to the ggp tool (default \""+ggp.DefaultBin+"\", resolved on PATH)")
	pf.String("instance", "", "instance to deploy to (default: the reserved instance)")
	pf.String("app-path", "", "directory under "+ggp.MountRoot+" to upload to (default \""+ggp.DefaultAppPath+"\")")
	pf.String("build-host", "", "run ggp on this SSH host instead of locally")
	pf.String("log-level", "", "log level: debug, info, warn, error")
	for name, key := range globalFlags {
		_ = a.v.BindPFlag(key, pf.Lookup(name))
	}

	f := cmd.Flags()
	f.StringVar(&a.deploy.binaryArgs, "binary-args", "", "arguments passed to the binary")
	f.StringVar(&a.deploy.vars, "vars", "", "value passed through to ggp run --vars")
	f.BoolVar(&a.deploy.headless, "headless", false, "run without a streaming client through ggp ssh shell")
	f.StringVar(&a.deploy.envVars, "env-vars", "", "extra NAME=VALUE overrides for a headless run")

	cmd.SetGlobalNormalizationFunc(underscoreFlags)
	cmd.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	cmd.AddCommand(
		a.newKillCmd(),
		a.newGetCmd(),
		a.newCheckCmd(),
		a.newServeCmd(),
		newVersionCmd(),
	)
	return cmd
}

// Execute runs the command tree and returns the process exit status.
func Execute(ctx context.Context, args []string) int {
	a := newApp()
	cmd := a.rootCmd()
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	return exitCode(err)
}

// underscoreFlags accepts --ggp_bin style spellings.
func underscoreFlags(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	return pflag.NormalizedName(strings.ReplaceAll(name, "_", "-"))
}

func usageArgs(validate cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, args []string) error {
		if err := validate(cmd, args); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

func (a *app) load(_ *cobra.Command, _ []string) error {
	envErr := godotenv.Load()

	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return &usageError{err: err}
	}
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return &usageError{err: err}
	}
	if envErr != nil && !os.IsNotExist(envErr) {
		log.Warn("Failed to load .env file", zap.Error(envErr))
	}

	a.cfg, a.log = cfg, log
	return nil
}

func (a *app) runDeploy(cmd *cobra.Command, args []string) error {
	req := service.DeployRequest{
		Binary:     args[0],
		Instance:   a.cfg.GGP.Instance,
		AppPath:    a.cfg.GGP.AppPath,
		BinaryArgs: a.deploy.binaryArgs,
		Vars:       a.deploy.vars,
		Headless:   a.deploy.headless,
		EnvVars:    a.deploy.envVars,
	}
	if err := validateDeploy(req); err != nil {
		return err
	}

	b, err := newBackend(a.cfg, a.log)
	if err != nil {
		return err
	}
	defer b.Close()

	res, err := b.deployService(cmd.OutOrStdout(), cmd.ErrOrStderr()).Deploy(cmd.Context(), req)
	if err != nil {
		return err
	}
	return stepResult(res.Step, res.ExitCode, nil)
}

func validateDeploy(req service.DeployRequest) error {
	if err := utils.ValidateBinaryPath(req.Binary); err != nil {
		return &usageError{err: err}
	}
	if err := ggp.CheckArgs(req.BinaryArgs); err != nil {
		return usagef("--binary-args: %v", err)
	}
	if req.EnvVars != "" {
		if !req.Headless {
			return usagef("--env-vars only applies to --headless runs")
		}
		if _, err := ggp.NormalizeEnv(req.EnvVars); err != nil {
			return usagef("--env-vars: %v", err)
		}
	}
	return nil
}
