package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/semmidev/dbpull/internal/domain"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		cancel()
		os.Exit(exitCode(err))
	}
}

// exitCode lets scripts tell a refused or misconfigured pull from one that
// failed while running.
func exitCode(err error) int {
	switch {
	case errors.Is(err, domain.ErrConfigInvalid):
		return 2
	case errors.Is(err, domain.ErrProductionRefused):
		return 3
	case errors.Is(err, domain.ErrPullInProgress):
		return 4
	default:
		return 1
	}
}
