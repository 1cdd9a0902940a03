// The main package for the krawler executable.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/oseg/krawler/cmd"
)

// main installs signal cancellation and defers execution to Cobra. SIGINT
// and SIGTERM abort a running crawl cleanly; its checkpoint survives for the
// next resume.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	cmd.Execute(ctx)
}
