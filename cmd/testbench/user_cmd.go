package main

import (
	"github.com/spf13/cobra"

	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/presentation/controllers/dtos"
	"github.com/iota-uz/testbench/modules/core/services"
)

type userCreateOptions struct {
	org         string
	email       string
	displayName string
	roles       []string
}

func newUserCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage users",
	}

	var opts userCreateOptions
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user in an organization",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, ctx, closeFn, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()
			orgService := app.Service(services.OrganizationService{}).(*services.OrganizationService)
			userService := app.Service(services.UserService{}).(*services.UserService)

			org, err := orgService.Resolve(ctx, opts.org)
			if err != nil {
				return err
			}
			u, err := userService.Create(ctx, org.ID, &user.CreateDTO{
				Email:       opts.email,
				DisplayName: opts.displayName,
				Roles:       opts.roles,
			})
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), dtos.UserToResponse(u))
		},
	}
	create.Flags().StringVar(&opts.org, "org", "", "Organization id or name (required)")
	create.Flags().StringVar(&opts.email, "email", "", "Email address (required)")
	create.Flags().StringVar(&opts.displayName, "name", "", "Display name (required)")
	create.Flags().StringSliceVar(&opts.roles, "role", nil, "Role: ADMIN, QA, BA or TESTER (repeatable)")
	_ = create.MarkFlagRequired("org")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("name")
	_ = create.MarkFlagRequired("role")

	cmd.AddCommand(create)
	return cmd
}
