package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"ggp-deploy/internal/pkg/logger"
)

// PathLookup resolves an executable on the machine that runs ggp.
type PathLookup interface {
	LookPath(ctx context.Context, bin string) (string, error)
}

type CheckResult struct {
	Success bool
	Path    string
	Details []string
}

type ToolService struct {
	lookup PathLookup
	bin    string
	target string
	logger *logger.Logger
}

// NewToolService checks bin through lookup; target names the machine for
// messages ("local" or the build host address).
func NewToolService(lookup PathLookup, bin, target string, logger *logger.Logger) *ToolService {
	return &ToolService{lookup: lookup, bin: bin, target: target, logger: logger}
}

func (s *ToolService) Check(ctx context.Context) *CheckResult {
	s.logger.Info("Checking ggp tool", zap.String("bin", s.bin), zap.String("target", s.target))

	details := []string{fmt.Sprintf("✓ target: %s", s.target)}
	p, err := s.lookup.LookPath(ctx, s.bin)
	if err != nil {
		s.logger.Error("ggp tool not found", zap.String("bin", s.bin), zap.Error(err))
		return &CheckResult{
			Success: false,
			Details: append(details,
				fmt.Sprintf("✗ %s not found", s.bin),
				fmt.Sprintf("error: %s", err.Error()),
			),
		}
	}

	return &CheckResult{
		Success: true,
		Path:    p,
		Details: append(details, fmt.Sprintf("✓ %s: %s", s.bin, p)),
	}
}
