package main

import (
	"github.com/spf13/cobra"

	"ggp-deploy/pkg/utils"
)

func (a *app) newKillCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill <process>",
		Short: "Terminate a process on the instance",
		Long: `kill runs "killall <process>" on the instance through ggp ssh shell.
A process that is not running is not an error.`,
		Args: usageArgs(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.ValidateProcessName(args[0]); err != nil {
				return &usageError{err: err}
			}

			b, err := newBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			svc := b.deployService(cmd.OutOrStdout(), cmd.ErrOrStderr())
			code, err := svc.Terminate(cmd.Context(), a.cfg.GGP.Instance, args[0])
			return stepResult("terminate", code, err)
		},
	}
}
