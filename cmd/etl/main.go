// Command etl runs manifest-driven extraction jobs. See internal/cli for the
// subcommands.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"etlmanifest/internal/cli"

	// Register every storage backend; the runtime config picks one.
	_ "etlmanifest/internal/storage/all"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := cli.NewRootCommand().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "etl: %v\n", err)
		stop()
		os.Exit(1)
	}
}
