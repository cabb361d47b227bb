package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pkglog "github.com/theroutercompany/apidocs/pkg/log"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	cancel()
	_ = pkglog.Sync()
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
