// Package ggp builds and issues invocations of the ggp command-line tool.
//
// The argument vectors and remote shell strings are produced by pure
// functions in this file; Client binds them to a Runner.
package ggp

import (
	"fmt"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/kballard/go-shellquote"
)

const (
	// DefaultBin is resolved through PATH.
	DefaultBin = "ggp"
	// DefaultAppPath is relative to MountRoot.
	DefaultAppPath = "bw"
	// MountRoot is the developer mount on every instance.
	MountRoot = "/mnt/developer"
	// ApplicationName selects the runtime environment for "ggp run".
	ApplicationName = "Yeti Development Application"
	// KilledFallback is echoed when the process to terminate is not running.
	KilledFallback = `echo "Already killed."`
)

// HeadlessEnv disables save-state and the guest orchestrator for headless runs.
var HeadlessEnv = []string{
	"YETI_DISABLE_PLAYER_SAVE=1",
	"YETI_DISABLE_GUEST_ORC=1",
}

var envNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// cleanAppPath keeps appPath relative to MountRoot, dropping any ".." that
// would climb above it.
func cleanAppPath(appPath string) string {
	return strings.TrimPrefix(path.Clean("/"+filepath.ToSlash(appPath)), "/")
}

// Destination returns the absolute remote directory for appPath, always
// under MountRoot and always with a trailing slash.
func Destination(appPath string) string {
	rel := cleanAppPath(appPath)
	if rel == "" {
		return MountRoot + "/"
	}
	return MountRoot + "/" + rel + "/"
}

// BinaryCommand renders "<appPath>/<basename> <binaryArgs>". Only the file
// name of binary is kept; the directory part is local to the build machine.
func BinaryCommand(appPath, binary, binaryArgs string) string {
	dir := cleanAppPath(appPath)
	if dir == "" {
		dir = "."
	}
	// A bare name would be looked up on PATH; keep it relative to the mount.
	cmd := dir + "/" + filepath.Base(binary)
	if args := strings.TrimSpace(binaryArgs); args != "" {
		cmd += " " + args
	}
	return cmd
}

// HeadlessCommand renders the remote shell line used for headless runs. The
// fixed variables always come first, then the caller overrides, then the
// binary invocation.
func HeadlessCommand(binaryCmd, envVars string) (string, error) {
	env, err := NormalizeEnv(envVars)
	if err != nil {
		return "", err
	}
	parts := []string{"cd " + MountRoot + ";"}
	parts = append(parts, HeadlessEnv...)
	if env != "" {
		parts = append(parts, env)
	}
	parts = append(parts, binaryCmd)
	return strings.Join(parts, " "), nil
}

// TerminateCommand renders a killall that succeeds even when the process is
// already gone.
func TerminateCommand(process string) string {
	return "killall " + shellquote.Join(process) + " || " + KilledFallback
}

// NormalizeEnv checks that envVars is a list of NAME=VALUE assignments and
// re-quotes each value for the remote shell.
func NormalizeEnv(envVars string) (string, error) {
	words, err := shellquote.Split(envVars)
	if err != nil {
		return "", fmt.Errorf("parse env vars %q: %w", envVars, err)
	}
	out := make([]string, 0, len(words))
	for _, w := range words {
		name, value, ok := strings.Cut(w, "=")
		if !ok || !envNamePattern.MatchString(name) {
			return "", fmt.Errorf("invalid env assignment %q: want NAME=VALUE", w)
		}
		out = append(out, name+"="+shellquote.Join(value))
	}
	return strings.Join(out, " "), nil
}

// CheckArgs reports unbalanced quoting in a binary argument string. The
// string itself is passed through untouched.
func CheckArgs(binaryArgs string) error {
	if _, err := shellquote.Split(binaryArgs); err != nil {
		return fmt.Errorf("parse binary args %q: %w", binaryArgs, err)
	}
	return nil
}

func instanceArgs(instance string) []string {
	if instance == "" {
		return nil
	}
	return []string{"--instance", instance}
}

// SyncArgs builds "ggp ssh sync -r --progress [--instance X] <sources...> <dst>".
func SyncArgs(bin, instance string, sources []string, dst string) []string {
	argv := []string{bin, "ssh", "sync", "-r", "--progress"}
	argv = append(argv, instanceArgs(instance)...)
	argv = append(argv, sources...)
	return append(argv, dst)
}

// GetArgs builds "ggp ssh get -r [--instance X] <sources...> <dst>".
func GetArgs(bin, instance string, sources []string, dst string) []string {
	argv := []string{bin, "ssh", "get", "-r"}
	argv = append(argv, instanceArgs(instance)...)
	argv = append(argv, sources...)
	return append(argv, dst)
}

// RunArgs builds the foreground "ggp run" invocation.
func RunArgs(bin, instance, binaryCmd, vars string) []string {
	argv := []string{
		bin, "run", "--no-launch-browser",
		"--application=" + ApplicationName,
		"--cmd", binaryCmd,
	}
	argv = append(argv, instanceArgs(instance)...)
	if vars != "" {
		argv = append(argv, "--vars", vars)
	}
	return argv
}

// ShellArgs builds "ggp ssh shell [--instance X] -- <command>".
func ShellArgs(bin, instance, command string) []string {
	argv := []string{bin, "ssh", "shell"}
	argv = append(argv, instanceArgs(instance)...)
	return append(argv, "--", command)
}
