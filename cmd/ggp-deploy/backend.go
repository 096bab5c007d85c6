package main

import (
	"fmt"
	"io"
	"strings"

	"go.uber.org/zap"

	"ggp-deploy/internal/config"
	"ggp-deploy/internal/pkg/ggp"
	"ggp-deploy/internal/pkg/logger"
	"ggp-deploy/internal/pkg/ssh"
	"ggp-deploy/internal/service"
)

// backend decides where ggp runs: on this machine, or on the configured
// build host over one shared SSH connection.
type backend struct {
	cfg    *config.Config
	log    *logger.Logger
	remote *ssh.Client

	// detached gives local ggp children an empty stdin instead of ours.
	detached bool
}

func newBackend(cfg *config.Config, log *logger.Logger) (*backend, error) {
	b := &backend{cfg: cfg, log: log}
	if cfg.SSH.Host == "" {
		return b, nil
	}

	sshCfg, err := ssh.FromConfig(cfg.SSH)
	if err != nil {
		return nil, err
	}
	client := ssh.NewClient(sshCfg)
	if err := client.Connect(); err != nil {
		return nil, fmt.Errorf("connect build host %s: %w", client.Addr(), err)
	}
	log.Info("Connected to build host", zap.String("host", client.Addr()))
	b.remote = client
	return b, nil
}

func (b *backend) target() string {
	if b.remote != nil {
		return b.remote.Addr()
	}
	return "local"
}

// runner returns a Runner writing ggp output to stdout and stderr, together
// with the path checker and lookup for the same machine.
func (b *backend) runner(stdout, stderr io.Writer) (ggp.Runner, service.PathChecker, service.PathLookup) {
	if b.remote != nil {
		r := ssh.NewRunner(b.remote, b.log)
		r.Stdout, r.Stderr = stdout, stderr
		return r, r, r
	}
	r := &ggp.ExecRunner{Stdout: stdout, Stderr: stderr}
	if b.detached {
		r.Stdin = strings.NewReader("")
	}
	return r, service.LocalPaths{}, r
}

func (b *backend) deployService(stdout, stderr io.Writer) *service.DeployService {
	runner, paths, _ := b.runner(stdout, stderr)
	client := ggp.NewClient(ggp.Options{
		Bin:      b.cfg.GGP.Bin,
		Instance: b.cfg.GGP.Instance,
		Runner:   runner,
		Logger:   b.log.Logger,
	})
	return service.NewDeployService(client, paths, b.cfg.GGP, b.log)
}

func (b *backend) toolService(stdout, stderr io.Writer) *service.ToolService {
	_, _, lookup := b.runner(stdout, stderr)
	return service.NewToolService(lookup, b.cfg.GGP.Bin, b.target(), b.log)
}

func (b *backend) Close() error {
	if b.remote == nil {
		return nil
	}
	return b.remote.Close()
}
