package ggp

import (
	"context"
	"strings"

	"go.uber.org/zap"
)

// Options configures a Client.
type Options struct {
	// Bin is the ggp executable; DefaultBin when empty.
	Bin string
	// Instance is the reserved instance name or ID. Empty lets ggp pick the
	// only reserved instance.
	Instance string
	Runner   Runner
	Logger   *zap.Logger
}

// RunRequest describes a binary to execute on the instance.
type RunRequest struct {
	AppPath    string
	Binary     string
	BinaryArgs string
	// Vars is passed to "ggp run --vars". Ignored by headless runs.
	Vars string
	// EnvVars holds NAME=VALUE overrides for headless runs.
	EnvVars string
}

// Client issues ggp invocations through a Runner. Every call blocks until the
// tool exits and returns its exit code unchanged.
type Client struct {
	bin      string
	instance string
	runner   Runner
	log      *zap.Logger
}

func NewClient(opts Options) *Client {
	if opts.Bin == "" {
		opts.Bin = DefaultBin
	}
	if opts.Runner == nil {
		opts.Runner = &ExecRunner{}
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &Client{
		bin:      opts.Bin,
		instance: opts.Instance,
		runner:   opts.Runner,
		log:      opts.Logger,
	}
}

// WithInstance returns a copy of c targeting instance.
func (c *Client) WithInstance(instance string) *Client {
	cc := *c
	cc.instance = instance
	return &cc
}

func (c *Client) Bin() string      { return c.bin }
func (c *Client) Instance() string { return c.instance }

// Sync transfers sources recursively into dst on the instance.
func (c *Client) Sync(ctx context.Context, sources []string, dst string) (int, error) {
	return c.call(ctx, SyncArgs(c.bin, c.instance, sources, dst))
}

// Get transfers sources from the instance into the local directory dst.
func (c *Client) Get(ctx context.Context, sources []string, dst string) (int, error) {
	return c.call(ctx, GetArgs(c.bin, c.instance, sources, dst))
}

// Run starts the binary through "ggp run" with a streaming endpoint.
func (c *Client) Run(ctx context.Context, req RunRequest) (int, error) {
	if err := CheckArgs(req.BinaryArgs); err != nil {
		return -1, err
	}
	cmd := BinaryCommand(req.AppPath, req.Binary, req.BinaryArgs)
	return c.call(ctx, RunArgs(c.bin, c.instance, cmd, req.Vars))
}

// RunHeadless starts the binary from a remote shell, without an endpoint.
func (c *Client) RunHeadless(ctx context.Context, req RunRequest) (int, error) {
	if err := CheckArgs(req.BinaryArgs); err != nil {
		return -1, err
	}
	shell, err := HeadlessCommand(BinaryCommand(req.AppPath, req.Binary, req.BinaryArgs), req.EnvVars)
	if err != nil {
		return -1, err
	}
	return c.call(ctx, ShellArgs(c.bin, c.instance, shell))
}

// Terminate kills process on the instance. A process that is not running
// still yields exit code 0.
func (c *Client) Terminate(ctx context.Context, process string) (int, error) {
	return c.call(ctx, ShellArgs(c.bin, c.instance, TerminateCommand(process)))
}

func (c *Client) call(ctx context.Context, argv []string) (int, error) {
	c.log.Info("$ " + strings.Join(argv, " "))
	code, err := c.runner.Run(ctx, argv)
	if err != nil {
		c.log.Error("ggp invocation failed", zap.String("subcommand", argv[1]), zap.Error(err))
		return code, err
	}
	if code != 0 {
		c.log.Warn("ggp exited with non-zero status", zap.String("subcommand", argv[1]), zap.Int("exit_code", code))
	}
	return code, nil
}
