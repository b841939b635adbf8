package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check whether the contact endpoint is reachable",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, store, err := openQueue()
		if err != nil {
			return err
		}
		defer store.Close()

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.ContactTimeout)
		defer cancel()

		if !queue.HealthCheck(ctx) {
			return fmt.Errorf("contact endpoint %s is unreachable", cfg.ContactHealthURL)
		}
		n, err := queue.CountQueued(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Contact endpoint is reachable (%d queued)\n", n)
		return nil
	},
}
