package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"parimutuel/cmd"

	log "github.com/sirupsen/logrus"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	command := "run"
	if len(os.Args) > 1 {
		command = os.Args[1]
	}

	var err error
	switch command {
	case "migrate":
		err = cmd.Migrate(os.Args[2:])
	case "reconcile":
		err = cmd.Reconcile(ctx)
	case "run":
		err = cmd.Run(ctx)
	default:
		log.Fatalf("unknown command %q: expected run, migrate or reconcile", command)
	}

	if err != nil {
		log.WithError(err).Fatalf("%s failed", command)
	}
}
