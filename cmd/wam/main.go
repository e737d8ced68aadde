package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/Perkybeet/wam/cmd/wam/commands"
	"github.com/Perkybeet/wam/internal/core/domain"
)

var version = "dev"

// Exit codes distinguish how an invocation ended, so scripts can react to a
// lock conflict differently from a validation mistake or a host left in a
// Failed state.
const (
	exitOK         = 0
	exitError      = 1
	exitValidation = 2
	exitConflict   = 3
	exitDeployment = 4
	exitFailed     = 5
	exitCorrupt    = 6
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := commands.Execute(ctx, version)
	if err == nil {
		os.Exit(exitOK)
	}
	fmt.Fprintf(os.Stderr, "error: %v\n", err)
	os.Exit(exitCode(err))
}

func exitCode(err error) int {
	var (
		validation *domain.ValidationError
		conflict   *domain.ConflictError
		deployment *domain.DeploymentError
		rollback   *domain.RollbackError
		corrupt    *domain.CorruptStateError
	)
	switch {
	case errors.As(err, &validation):
		return exitValidation
	case errors.As(err, &conflict):
		return exitConflict
	case errors.As(err, &rollback):
		return exitFailed
	case errors.As(err, &deployment):
		return exitDeployment
	case errors.As(err, &corrupt):
		return exitCorrupt
	default:
		return exitError
	}
}
