// Command afrisam syncs SAM.gov contract opportunities for the African
// countries into a local store.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/custodia-labs/afrisam/internal/adapters/driving/cli"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)

	cli.SetInitializer(initialize)
	err := cli.Execute(ctx)
	if closeErr := cli.Close(); closeErr != nil && err == nil {
		err = closeErr
	}
	stop()

	if err != nil {
		fmt.Fprintf(os.Stderr, "afrisam: %v\n", err)
		os.Exit(1)
	}
}
