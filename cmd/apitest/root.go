package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	SilenceUsage:  true,
	SilenceErrors: true,
	Use:           "apitest [command]",
	Short:         "Replay and record HTTP contract fixtures",
	Long: `Replay stored request fixtures against a running server and compare the
responses with the stored expectations, or record new fixtures from a live
exchange.`,
	Example: `  apitest verify --config suite.yaml
  apitest verify --config suite.yaml --base-url http://localhost:5000 --openapi dist/v1/openapi.json
  apitest record --version v1 --operation CreateProduct --base-url http://localhost:5000

  # Example suite file:
  baseUrl: http://localhost:5000
  fixtures: testdata/fixtures
  version: v1
  timeout: 5s
  cases:
    - operation: CreateProduct
      variant: "201"`,
}

var verbose bool

func init() {
	rootCmd.AddCommand(verifyCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log every exchange")
}
