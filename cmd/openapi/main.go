package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/theroutercompany/apidocs/internal/openapi"
)

func main() {
	configPath := flag.String("config", "", "Path to the merge config (defaults to $OPENAPI_MERGE_CONFIG_PATH or openapi-merge.config.json)")
	distDir := flag.String("dist", "dist", "Directory merged documents are written under")
	version := flag.String("version", "", "Only build this version")
	flag.Parse()

	svc := openapi.NewService(openapi.WithConfigPath(*configPath), openapi.WithDistDir(*distDir))

	versions := svc.Versions()
	if *version != "" {
		versions = []string{*version}
	}
	if len(versions) == 0 {
		fmt.Fprintln(os.Stderr, "openapi merge failed: no document versions configured")
		os.Exit(1)
	}

	ctx := context.Background()
	for _, v := range versions {
		if _, err := svc.Rebuild(ctx, v); err != nil {
			fmt.Fprintf(os.Stderr, "openapi merge failed for %s: %v\n", v, err)
			os.Exit(1)
		}
		fmt.Fprintf(os.Stdout, "OpenAPI document %s written to %s\n", v, svc.DistPath(v))
	}
}
