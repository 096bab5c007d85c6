package utils

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"
)

func ValidatePort(port int) error {
	if port < 1 || port > 65535 {
		return fmt.Errorf("port must be within 1-65535: %d", port)
	}
	return nil
}

// ValidateInstanceName accepts an empty name (single reserved instance) or
// an instance name or ID made of letters, digits, '-', '_' and '.'.
func ValidateInstanceName(name string) error {
	if name == "" {
		return nil
	}
	if len(name) > 128 {
		return fmt.Errorf("instance name longer than 128 characters")
	}
	for _, char := range name {
		if !((char >= 'a' && char <= 'z') || (char >= 'A' && char <= 'Z') ||
			(char >= '0' && char <= '9') || char == '-' || char == '_' || char == '.') {
			return fmt.Errorf("instance name contains invalid character %q: %s", char, name)
		}
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("instance name cannot start with '-': %s", name)
	}
	return nil
}

// ValidateAppPath requires a path relative to the developer mount that stays
// below it.
func ValidateAppPath(appPath string) error {
	if appPath == "" {
		return fmt.Errorf("app path cannot be empty")
	}
	if path.IsAbs(appPath) || filepath.IsAbs(appPath) {
		return fmt.Errorf("app path must be relative to /mnt/developer: %s", appPath)
	}
	for _, part := range strings.Split(filepath.ToSlash(appPath), "/") {
		if part == ".." {
			return fmt.Errorf("app path cannot leave /mnt/developer: %s", appPath)
		}
	}
	if strings.ContainsAny(appPath, " \t\n;&|`$") {
		return fmt.Errorf("app path contains shell metacharacters: %s", appPath)
	}
	return nil
}

func ValidateBinaryPath(binary string) error {
	if strings.TrimSpace(binary) == "" {
		return fmt.Errorf("binary path cannot be empty")
	}
	base := filepath.Base(binary)
	if base == "." || base == string(filepath.Separator) {
		return fmt.Errorf("binary path has no file name: %s", binary)
	}
	if strings.ContainsAny(base, " \t\n;&|`$") {
		return fmt.Errorf("binary file name contains shell metacharacters: %s", base)
	}
	return nil
}

func ValidateProcessName(name string) error {
	if name == "" {
		return fmt.Errorf("process name cannot be empty")
	}
	if strings.Contains(name, "/") {
		return fmt.Errorf("process name cannot contain '/': %s", name)
	}
	if strings.HasPrefix(name, "-") {
		return fmt.Errorf("process name cannot start with '-': %s", name)
	}
	return nil
}

func ValidatePrivateKey(privateKey string) error {
	if privateKey == "" {
		return fmt.Errorf("private key cannot be empty")
	}

	if !strings.Contains(privateKey, "BEGIN") || !strings.Contains(privateKey, "END") {
		return fmt.Errorf("private key must be PEM encoded")
	}

	return nil
}
