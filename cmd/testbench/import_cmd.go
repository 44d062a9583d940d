package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	catalogservices "github.com/iota-uz/testbench/modules/catalog/services"
	"github.com/iota-uz/testbench/modules/core/domain/aggregates/user"
	"github.com/iota-uz/testbench/modules/core/services"
	"github.com/iota-uz/testbench/pkg/application"
	"github.com/iota-uz/testbench/pkg/composables"
)

func newImportCmd() *cobra.Command {
	var actor string

	cmd := &cobra.Command{
		Use:   "import <file.xlsx>",
		Short: "Import a catalog spreadsheet on behalf of a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return withCode(exitUsage, err)
			}
			defer func() { _ = f.Close() }()

			app, ctx, closeFn, err := openApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeFn()

			ctx, err = actAs(ctx, app, actor)
			if err != nil {
				return err
			}
			importService := app.Service(catalogservices.ImportService{}).(*catalogservices.ImportService)
			report, err := importService.Import(ctx, f)
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), report)
		},
	}
	cmd.Flags().StringVar(&actor, "as", "", "User id or email the import runs as (required)")
	_ = cmd.MarkFlagRequired("as")
	return cmd
}

// actAs puts the principal and its organization into ctx the way the HTTP
// middleware does.
func actAs(ctx context.Context, app application.Application, ref string) (context.Context, error) {
	userService := app.Service(services.UserService{}).(*services.UserService)
	ref = strings.TrimSpace(ref)

	var (
		u   user.User
		err error
	)
	if id, parseErr := uuid.Parse(ref); parseErr == nil {
		u, err = userService.ResolvePrincipal(ctx, id)
	} else {
		u, err = userService.GetByEmail(ctx, ref)
	}
	if err != nil {
		return ctx, fmt.Errorf("resolve --as %q: %w", ref, err)
	}
	ctx = composables.WithUser(ctx, u)
	ctx = composables.WithTenantID(ctx, u.OrganizationID())
	return ctx, nil
}
