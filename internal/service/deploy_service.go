package service

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"go.uber.org/zap"

	"ggp-deploy/internal/config"
	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/internal/pkg/logger"
)

// PathChecker reports whether a local source path exists. With a build
// host configured, "local" means the build host.
type PathChecker interface {
	Exists(ctx context.Context, path string) (bool, error)
}

// LocalPaths checks paths on this machine.
type LocalPaths struct{}

func (LocalPaths) Exists(_ context.Context, path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	return false, err
}

type DeployRequest struct {
	Binary     string
	Instance   string
	AppPath    string
	BinaryArgs string
	Vars       string
	Headless   bool
	EnvVars    string
}

// DeployResult carries the exit code of the last step attempted. Step names
// that step; it is empty when no step ran.
type DeployResult struct {
	ExitCode int
	Step     string
	Sources  []string
}

func (r *DeployResult) Success() bool { return r.ExitCode == 0 }

type DeployService struct {
	client *ggp.Client
	paths  PathChecker
	cfg    config.GGPConfig
	logger *logger.Logger
}

func NewDeployService(client *ggp.Client, paths PathChecker, cfg config.GGPConfig, logger *logger.Logger) *DeployService {
	if paths == nil {
		paths = LocalPaths{}
	}
	if cfg.AssetsDir == "" {
		cfg.AssetsDir = "assets"
	}
	if cfg.BuildAssetsDir == "" {
		cfg.BuildAssetsDir = "bazel-bin/assets"
	}
	if cfg.AppPath == "" {
		cfg.AppPath = ggp.DefaultAppPath
	}
	return &DeployService{
		client: client,
		paths:  paths,
		cfg:    cfg,
		logger: logger,
	}
}

type deployStep struct {
	name   string
	action func(ctx context.Context) (int, error)
}

// ResolveSources lists what gets synced: the assets directory and the
// binary, plus the build-output assets directory when it exists.
func (s *DeployService) ResolveSources(ctx context.Context, binary string) []string {
	sources := []string{s.cfg.AssetsDir, binary}
	ok, err := s.paths.Exists(ctx, s.cfg.BuildAssetsDir)
	if err != nil {
		s.logger.Warn("Could not check build assets directory", zap.String("dir", s.cfg.BuildAssetsDir), zap.Error(err))
	}
	if ok {
		return append(sources, s.cfg.BuildAssetsDir)
	}
	s.logger.Warn(fmt.Sprintf("Directory %s not found, it will not be uploaded", s.cfg.BuildAssetsDir))
	return sources
}

// Deploy syncs the binary and assets, then runs the binary. A failed step
// stops the deployment and its exit code is returned as is.
func (s *DeployService) Deploy(ctx context.Context, req DeployRequest) (*DeployResult, error) {
	client := s.scoped(req.Instance)
	appPath := req.AppPath
	if appPath == "" {
		appPath = s.cfg.AppPath
	}
	run := ggp.RunRequest{
		AppPath:    appPath,
		Binary:     req.Binary,
		BinaryArgs: req.BinaryArgs,
		Vars:       req.Vars,
		EnvVars:    req.EnvVars,
	}

	result := &DeployResult{Sources: s.ResolveSources(ctx, req.Binary)}
	steps := []deployStep{
		{
			name: "sync",
			action: func(ctx context.Context) (int, error) {
				return client.Sync(ctx, result.Sources, ggp.Destination(appPath))
			},
		},
	}
	if req.Headless {
		steps = append(steps, deployStep{name: "run-headless", action: func(ctx context.Context) (int, error) {
			return client.RunHeadless(ctx, run)
		}})
	} else {
		steps = append(steps, deployStep{name: "run", action: func(ctx context.Context) (int, error) {
			return client.Run(ctx, run)
		}})
	}

	for _, step := range steps {
		result.Step = step.name
		s.logger.DeploymentStep(step.name, client.Instance())
		code, err := step.action(ctx)
		result.ExitCode = code
		if err != nil {
			s.logger.DeploymentError(step.name, code, err)
			return result, fmt.Errorf("%s: %w", step.name, err)
		}
		if code != 0 {
			s.logger.DeploymentError(step.name, code, nil)
			return result, nil
		}
		s.logger.DeploymentSuccess(step.name)
	}
	return result, nil
}

// Terminate kills process on the instance; a process that is not running
// is not a failure.
func (s *DeployService) Terminate(ctx context.Context, instance, process string) (int, error) {
	client := s.scoped(instance)
	s.logger.DeploymentStep("terminate", client.Instance())
	return client.Terminate(ctx, process)
}

// Fetch copies remote paths from the instance into localDir.
func (s *DeployService) Fetch(ctx context.Context, instance string, sources []string, localDir string) (int, error) {
	client := s.scoped(instance)
	s.logger.DeploymentStep("fetch", client.Instance())
	return client.Get(ctx, sources, localDir)
}

func (s *DeployService) scoped(instance string) *ggp.Client {
	if instance == "" {
		return s.client
	}
	return s.client.WithInstance(instance)
}
