package ssh

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"golang.org/x/crypto/ssh"
	"golang.org/x/crypto/ssh/knownhosts"

	"ggp-deploy/internal/config"
)

var errNotConnected = errors.New("ssh connection not established")

type SSHConfig struct {
	Host           string
	Port           int
	Username       string
	AuthType       string
	Password       string
	PrivateKey     string
	Passphrase     string
	KnownHostsFile string
	Timeout        time.Duration
}

type Client struct {
	config SSHConfig
	conn   *ssh.Client
}

type CommandResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

func NewClient(config SSHConfig) *Client {
	return &Client{
		config: config,
	}
}

// FromConfig converts the build-host section of the configuration, reading
// the private key file when key auth is selected.
func FromConfig(cfg config.SSHConfig) (SSHConfig, error) {
	c := SSHConfig{
		Host:           cfg.Host,
		Port:           cfg.Port,
		Username:       cfg.Username,
		AuthType:       cfg.AuthType,
		Password:       cfg.Password,
		Passphrase:     cfg.Passphrase,
		KnownHostsFile: cfg.KnownHostsFile,
		Timeout:        cfg.Timeout,
	}
	if cfg.AuthType == "key" {
		b, err := os.ReadFile(cfg.PrivateKeyFile)
		if err != nil {
			return SSHConfig{}, fmt.Errorf("read private key: %w", err)
		}
		c.PrivateKey = string(b)
	}
	return c, nil
}

func (c *Client) Addr() string {
	return net.JoinHostPort(c.config.Host, strconv.Itoa(c.config.Port))
}

func (c *Client) Connect() error {
	var auth []ssh.AuthMethod

	if c.config.AuthType == "password" {
		auth = append(auth, ssh.Password(c.config.Password))
	} else if c.config.AuthType == "key" {
		signer, err := c.parsePrivateKey(c.config.PrivateKey, c.config.Passphrase)
		if err != nil {
			return fmt.Errorf("parse private key: %w", err)
		}
		auth = append(auth, ssh.PublicKeys(signer))
	}

	hostKeyCallback := ssh.InsecureIgnoreHostKey()
	if c.config.KnownHostsFile != "" {
		cb, err := knownhosts.New(c.config.KnownHostsFile)
		if err != nil {
			return fmt.Errorf("load known hosts: %w", err)
		}
		hostKeyCallback = cb
	}

	timeout := c.config.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	config := &ssh.ClientConfig{
		User:            c.config.Username,
		Auth:            auth,
		Timeout:         timeout,
		HostKeyCallback: hostKeyCallback,
	}

	conn, err := ssh.Dial("tcp", c.Addr(), config)
	if err != nil {
		return fmt.Errorf("ssh dial %s: %w", c.Addr(), err)
	}

	c.conn = conn
	return nil
}

func (c *Client) parsePrivateKey(privateKey, passphrase string) (ssh.Signer, error) {
	if passphrase != "" {
		return ssh.ParsePrivateKeyWithPassphrase([]byte(privateKey), []byte(passphrase))
	}
	return ssh.ParsePrivateKey([]byte(privateKey))
}

// ExecuteCommand runs cmd and captures its output. A non-zero exit is
// reported both in the result and as an error.
func (c *Client) ExecuteCommand(cmd string) (*CommandResult, error) {
	if c.conn == nil {
		return nil, errNotConnected
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return nil, fmt.Errorf("create ssh session: %w", err)
	}
	defer session.Close()

	var stdoutBuf, stderrBuf strings.Builder
	session.Stdout = &stdoutBuf
	session.Stderr = &stderrBuf

	err = session.Run(cmd)

	result := &CommandResult{
		Stdout: strings.TrimSpace(stdoutBuf.String()),
		Stderr: strings.TrimSpace(stderrBuf.String()),
	}

	if err != nil {
		var exitErr *ssh.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitStatus()
		} else {
			result.ExitCode = -1
		}
		return result, fmt.Errorf("command failed: %w", err)
	}

	return result, nil
}

// Stream runs cmd with its output copied to stdout and stderr as it arrives
// and returns the remote exit status. Cancelling ctx signals the remote
// process and closes the session.
func (c *Client) Stream(ctx context.Context, cmd string, stdout, stderr io.Writer) (int, error) {
	if c.conn == nil {
		return -1, errNotConnected
	}

	session, err := c.conn.NewSession()
	if err != nil {
		return -1, fmt.Errorf("create ssh session: %w", err)
	}
	defer session.Close()

	session.Stdout = stdout
	session.Stderr = stderr
	if err := session.Start(cmd); err != nil {
		return -1, fmt.Errorf("start remote command: %w", err)
	}

	done := make(chan error, 1)
	go func() { done <- session.Wait() }()

	select {
	case err = <-done:
	case <-ctx.Done():
		_ = session.Signal(ssh.SIGTERM)
		_ = session.Close()
		<-done
		return -1, ctx.Err()
	}

	if err == nil {
		return 0, nil
	}
	var exitErr *ssh.ExitError
	if errors.As(err, &exitErr) {
		return exitErr.ExitStatus(), nil
	}
	return -1, fmt.Errorf("remote command: %w", err)
}

func (c *Client) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
