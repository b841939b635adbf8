package main

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var flagJSON bool

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and drain the contact fallback queue",
}

var queueListCmd = &cobra.Command{
	Use:   "list",
	Short: "List queued contact messages, oldest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, store, err := openQueue()
		if err != nil {
			return err
		}
		defer store.Close()

		msgs, err := queue.ListQueued(cmd.Context())
		if err != nil {
			return err
		}

		if flagJSON {
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(msgs)
		}
		if len(msgs) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No queued messages")
			return nil
		}
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tTIMESTAMP\tFROM\tSUBJECT")
		for _, m := range msgs {
			fmt.Fprintf(w, "%s\t%s\t%s <%s>\t%s\n", m.ID, m.Timestamp.Format("2006-01-02 15:04:05"), m.Name, m.Email, m.Subject)
		}
		return w.Flush()
	},
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete every queued contact message",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, store, err := openQueue()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := queue.ClearQueued(cmd.Context()); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Queue cleared")
		return nil
	},
}

var queueRedeliverCmd = &cobra.Command{
	Use:   "redeliver",
	Short: "Send queued messages again and remove the delivered ones",
	RunE: func(cmd *cobra.Command, args []string) error {
		queue, store, err := openQueue()
		if err != nil {
			return err
		}
		defer store.Close()

		res, err := queue.Redeliver(cmd.Context())
		fmt.Fprintf(cmd.OutOrStdout(), "Delivered %d of %d queued messages\n", res.Delivered, res.Attempted)
		if err != nil {
			return fmt.Errorf("undelivered messages kept: %w", err)
		}
		return nil
	},
}

func init() {
	queueListCmd.Flags().BoolVar(&flagJSON, "json", false, "output as JSON")

	queueCmd.AddCommand(queueListCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queueRedeliverCmd)
}

