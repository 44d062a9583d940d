package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/iota-uz/testbench/pkg/apiclient"
	"github.com/iota-uz/testbench/pkg/configuration"
)

type workbenchOptions struct {
	baseURL string
	userID  string
	current string
}

func (o *workbenchOptions) client() (*apiclient.Client, error) {
	id, err := uuid.Parse(strings.TrimSpace(o.userID))
	if err != nil {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --user: %w", err))
	}
	c, err := apiclient.New(o.baseURL, id, apiclient.WithUserIDHeader(configuration.Use().Auth.UserIDHeader))
	if err != nil {
		return nil, withCode(exitUsage, err)
	}
	return c, nil
}

func (o *workbenchOptions) currentID() (uuid.UUID, error) {
	if strings.TrimSpace(o.current) == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(strings.TrimSpace(o.current))
	if err != nil {
		return uuid.Nil, withCode(exitUsage, fmt.Errorf("invalid --current: %w", err))
	}
	return id, nil
}

func newWorkbenchCmd() *cobra.Command {
	opts := &workbenchOptions{}

	cmd := &cobra.Command{
		Use:   "workbench",
		Short: "Walk and complete your executions through the HTTP API",
	}
	cmd.PersistentFlags().StringVar(&opts.baseURL, "url", configuration.Use().Origin, "API base URL")
	cmd.PersistentFlags().StringVar(&opts.userID, "user", "", "Your user id (required)")
	_ = cmd.MarkPersistentFlagRequired("user")

	move := func(use, short string, next bool) *cobra.Command {
		c := &cobra.Command{
			Use:   use,
			Short: short,
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, args []string) error {
				client, err := opts.client()
				if err != nil {
					return err
				}
				current, err := opts.currentID()
				if err != nil {
					return err
				}
				var nav apiclient.Navigation
				if next {
					nav, err = client.Next(cmd.Context(), current)
				} else {
					nav, err = client.Previous(cmd.Context(), current)
				}
				if err != nil {
					return err
				}
				return writeJSONLine(cmd.OutOrStdout(), nav)
			},
		}
		c.Flags().StringVar(&opts.current, "current", "", "Execution id to move from (empty starts at an end)")
		return c
	}
	cmd.AddCommand(move("next", "Show the next execution", true))
	cmd.AddCommand(move("previous", "Show the previous execution", false))

	var result, notes string
	complete := &cobra.Command{
		Use:   "complete <execution-id>",
		Short: "Submit the overall result of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(strings.TrimSpace(args[0]))
			if err != nil {
				return withCode(exitUsage, fmt.Errorf("invalid execution id: %w", err))
			}
			client, err := opts.client()
			if err != nil {
				return err
			}
			e, err := client.Complete(cmd.Context(), id, strings.ToUpper(strings.TrimSpace(result)), notes)
			if errors.Is(err, apiclient.ErrUnauthorized) {
				return withCode(exitAuth, fmt.Errorf("user %s is not known to the server: %w", opts.userID, err))
			}
			if err != nil {
				return err
			}
			return writeJSONLine(cmd.OutOrStdout(), e)
		},
	}
	complete.Flags().StringVar(&result, "result", "", "PASSED, FAILED, BLOCKED or PARTIALLY_PASSED (required)")
	complete.Flags().StringVar(&notes, "notes", "", "Notes stored with the result")
	_ = complete.MarkFlagRequired("result")
	cmd.AddCommand(complete)
	return cmd
}
