package main

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/theroutercompany/apidocs/pkg/apitest"
	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

var verifyOpts struct {
	config  string
	baseURL string
	openapi string
}

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Replays a fixture suite against a running server",
	Long: `Replays every case of a suite file against a running server. Exits with a
non-zero status when any case fails to match its expected response.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		suite, err := apitest.LoadSuiteConfig(verifyOpts.config)
		if err != nil {
			return err
		}
		if verifyOpts.baseURL != "" {
			suite.BaseURL = verifyOpts.baseURL
		}
		if suite.BaseURL == "" {
			return errors.New("a base url is required (baseUrl in the suite or --base-url)")
		}

		runnerOpts := []apitest.Option{apitest.WithLogger(commandLogger("verify"))}
		if verifyOpts.openapi != "" {
			raw, err := os.ReadFile(verifyOpts.openapi)
			if err != nil {
				return fmt.Errorf("read openapi document: %w", err)
			}
			validator, err := apitest.LoadSchemaValidator(cmd.Context(), raw)
			if err != nil {
				return err
			}
			runnerOpts = append(runnerOpts, apitest.WithSchemaValidator(validator))
		}

		client := &http.Client{Timeout: suite.RequestTimeout()}
		runner := apitest.NewRunner(
			apitest.NewStore(suite.Fixtures),
			apitest.NewClientTransport(client, suite.BaseURL),
			runnerOpts...,
		)
		s := &apitest.Suite{Runner: runner, Version: suite.Version, Concurrency: suite.Concurrency}
		results := s.Run(cmd.Context(), suite.Cases)

		failed := renderResults(cmd.OutOrStdout(), results)
		if failed > 0 {
			return fmt.Errorf("%d of %d cases failed", failed, len(results))
		}
		return nil
	},
}

func init() {
	verifyCmd.Flags().StringVarP(&verifyOpts.config, "config", "c", "apitest.yaml", "Suite file to replay")
	verifyCmd.Flags().StringVar(&verifyOpts.baseURL, "base-url", "", "Override the suite base url")
	verifyCmd.Flags().StringVar(&verifyOpts.openapi, "openapi", "", "Also validate responses against this OpenAPI document")
}

func renderResults(w io.Writer, results []apitest.CaseResult) int {
	table := tablewriter.NewWriter(w)
	table.SetHeader([]string{"Case", "Result", "Mismatches", "Duration"})
	table.SetAutoFormatHeaders(false)

	failed := 0
	var details []string
	for _, res := range results {
		outcome := "pass"
		switch {
		case res.Err != nil:
			outcome = "error"
			details = append(details, fmt.Sprintf("%s: %v", res.Case, res.Err))
		case !res.Report.OK():
			outcome = "fail"
			details = append(details, fmt.Sprintf("%s:\n%s", res.Case, res.Report.Render()))
		}
		if outcome != "pass" {
			failed++
		}
		table.Append([]string{res.Case.String(), outcome, strconv.Itoa(len(res.Report.Entries)), res.Duration.String()})
	}
	table.Render()

	for _, d := range details {
		fmt.Fprintln(w)
		fmt.Fprintln(w, d)
	}
	return failed
}

func commandLogger(component string) pkglog.Logger {
	if !verbose {
		return pkglog.Nop()
	}
	return pkglog.Named(component)
}
