package main

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	"github.com/theroutercompany/apidocs/pkg/apitest"
)

var recordOpts struct {
	fixtures  string
	version   string
	operation string
	variant   string
	baseURL   string
	timeout   time.Duration
}

var recordCmd = &cobra.Command{
	Use:   "record",
	Short: "Records the live response to a stored request",
	Long: `Sends the stored request fixture for an operation to a running server and
writes the response as an expected-response fixture. The variant defaults to
the response status code.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if recordOpts.baseURL == "" {
			return errors.New("--base-url is required")
		}
		store := apitest.NewStore(recordOpts.fixtures)
		req, err := store.LoadRequest(recordOpts.version, recordOpts.operation)
		if err != nil {
			return err
		}

		client := &http.Client{Timeout: recordOpts.timeout}
		transport := apitest.NewClientTransport(client, recordOpts.baseURL)
		resp, err := apitest.NewRecorder(recordOpts.fixtures).Capture(cmd.Context(), transport,
			recordOpts.version, recordOpts.operation, recordOpts.variant, req)
		if err != nil {
			return err
		}
		commandLogger("record").Infow("fixture recorded",
			"version", recordOpts.version,
			"operation", recordOpts.operation,
			"status", resp.Status,
		)
		fmt.Fprintf(cmd.OutOrStdout(), "recorded %s/%s response %d\n", recordOpts.version, recordOpts.operation, resp.Status)
		return nil
	},
}

func init() {
	recordCmd.Flags().StringVar(&recordOpts.fixtures, "fixtures", "testdata/fixtures", "Fixture root directory")
	recordCmd.Flags().StringVar(&recordOpts.version, "version", "", "Fixture version")
	recordCmd.Flags().StringVar(&recordOpts.operation, "operation", "", "Operation name")
	recordCmd.Flags().StringVar(&recordOpts.variant, "variant", "", "Response variant (defaults to the status code)")
	recordCmd.Flags().StringVar(&recordOpts.baseURL, "base-url", "", "Server base url")
	recordCmd.Flags().DurationVar(&recordOpts.timeout, "timeout", 10*time.Second, "Request timeout")
	_ = recordCmd.MarkFlagRequired("version")
	_ = recordCmd.MarkFlagRequired("operation")
}
