package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func (a *app) newCheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Check that the ggp tool can be found",
		Args:  usageArgs(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			b, err := newBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			res := b.toolService(cmd.OutOrStdout(), cmd.ErrOrStderr()).Check(cmd.Context())
			for _, line := range res.Details {
				fmt.Fprintln(cmd.OutOrStdout(), line)
			}
			if !res.Success {
				return &exitCodeError{step: "check", code: 1}
			}
			return nil
		},
	}
}
