package main

import (
	"github.com/spf13/cobra"
)

func (a *app) newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <remote-path>... <local-dir>",
		Short: "Copy files from the instance",
		Long: `get copies remote paths recursively into a local directory with
"ggp ssh get -r". Relative remote paths are resolved by ggp.`,
		Example: "  ggp-deploy get /mnt/developer/bw/screenshots ./out",
		Args:    usageArgs(cobra.MinimumNArgs(2)),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, dst := args[:len(args)-1], args[len(args)-1]

			b, err := newBackend(a.cfg, a.log)
			if err != nil {
				return err
			}
			defer b.Close()

			svc := b.deployService(cmd.OutOrStdout(), cmd.ErrOrStderr())
			code, err := svc.Fetch(cmd.Context(), a.cfg.GGP.Instance, sources, dst)
			return stepResult("fetch", code, err)
		},
	}
}
