package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/testbench/modules/core/services"
)

func newOrgCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "org",
		Short: "Manage organizations",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "create <name>",
		Short: "Create an organization",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, closeFn, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			orgService := app.Service(services.OrganizationService{}).(*services.OrganizationService)
			org, err := orgService.Create(ctx, args[0])
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), org)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List organizations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, closeFn, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			orgService := app.Service(services.OrganizationService{}).(*services.OrganizationService)
			orgs, err := orgService.List(ctx)
			if err != nil {
				return err
			}
			for _, org := range orgs {
				if err := writeJSONLine(cmd.OutOrStdout(), org); err != nil {
					return err
				}
			}
			return nil
		},
	})
	return cmd
}
