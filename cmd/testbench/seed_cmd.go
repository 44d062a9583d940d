package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/testbench/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/testbench/modules/core/seed"
)

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Create the demo organization and its users if missing",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, closeFn, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			_, users, err := seed.Demo(ctx, app)
			if err != nil {
				return withCode(exitDB, err)
			}
			for _, u := range users {
				if err := writeJSONLine(cmd.OutOrStdout(), dtos.UserToResponse(u)); err != nil {
					return err
				}
			}
			return nil
		},
	}
}
