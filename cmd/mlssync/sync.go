package main

import (
	"errors"
	"os"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"mlssync/internal/service"
)

var errRunFailed = errors.New("sync run finished with failures")

func newSyncCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sync [resource...]",
		Short: "Run one sync pass and print the report as JSON",
		Long: "Runs the named resources (Property, Listing, Member, Office, OpenHouse) once.\n" +
			"Without arguments the resources from sync.resources are used. Exits non-zero\n" +
			"when any resource failed.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			report, err := a.orch.RunSync(cmd.Context(), service.TriggerCLI, args)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			if err := enc.Encode(report); err != nil {
				return err
			}
			if !report.OK {
				return errRunFailed
			}
			return nil
		},
	}
}

func newCursorsCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "cursors",
		Short: "Print the stored sync cursors as JSON",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(cmd.Context(), opts)
			if err != nil {
				return err
			}
			defer a.Close()
			items, err := a.store.ListSyncCursors(cmd.Context())
			if err != nil {
				return err
			}
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(items)
		},
	}
}
