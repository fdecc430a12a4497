package cmd

import (
	"fmt"
	"net/url"

	"github.com/spf13/cobra"

	"github.com/pagevault/pagevault/internal/scrape"
)

// newFetchCmd creates and configures the 'fetch' subcommand, a one-shot
// capture of a single URL through the same pipeline the scheduler uses.
func newFetchCmd() *cobra.Command {
	var (
		fetchURL  string
		fetchName string
	)
	cmd := &cobra.Command{
		Use:   "fetch",
		Short: "Captures a single URL once and prints the stored blob URI",
		Long: `Performs a one-shot capture of the given URL through the solving proxy,
using the same session directory, content sink, journal, and notification
path as the scheduler, then prints the URI of the stored document.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			defer closeApp(a)

			name := fetchName
			if name == "" {
				name = defaultTaskName(fetchURL)
			}
			record, err := a.Runner().Capture(cmd.Context(), scrape.Task{
				Name: name,
				URL:  fetchURL,
			})
			if err != nil {
				return fmt.Errorf("capture %s: %w", fetchURL, err)
			}
			fmt.Fprintln(cmd.OutOrStdout(), record.BlobURI)
			return nil
		},
	}
	cmd.Flags().StringVar(&fetchURL, "url", "", "target URL to capture")
	cmd.Flags().StringVar(&fetchName, "name", "", "destination name hint (defaults to the URL host)")
	_ = cmd.MarkFlagRequired("url")
	return cmd
}

// defaultTaskName derives a filename-friendly name from the target when the
// caller gave none.
func defaultTaskName(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "capture"
	}
	return u.Host
}
