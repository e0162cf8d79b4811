// Command docsnap backs up MongoDB collections into type-preserving JSON
// snapshots and restores them.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	_ "github.com/joho/godotenv/autoload"
)

var (
	version   = "dev"
	buildDate = "unknown"
)

// main runs the command tree with SIGINT/SIGTERM cancelling the context.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}
