package main

import (
	"fmt"

	"github.com/flemzord/aether/pkg/app"
	"github.com/spf13/cobra"
)

func serviceCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "service",
		Short: "Install and control aether as an OS service",
	}
	for _, action := range app.ServiceActions {
		sub := &cobra.Command{
			Use:   action,
			Short: fmt.Sprintf("%s the %s service", action, app.ServiceName),
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				if err := app.ControlService(runParams(cmd), action); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "service %s: %s done\n", app.ServiceName, action)
				return nil
			},
		}
		addRunFlags(sub)
		cmd.AddCommand(sub)
	}
	status := &cobra.Command{
		Use:   "status",
		Short: "Show the service state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := app.ServiceStatus(runParams(cmd))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "service %s: %s\n", app.ServiceName, st)
			return nil
		},
	}
	addRunFlags(status)
	cmd.AddCommand(status)
	return cmd
}
