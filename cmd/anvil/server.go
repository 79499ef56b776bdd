package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dcrodman/anvil/internal"
	"github.com/dcrodman/anvil/internal/core"
)

// ServerCommand runs the server until it's interrupted.
func ServerCommand(_ *cobra.Command, _ []string) error {
	config, err := core.LoadConfig(ConfigFlag)
	if err != nil {
		return err
	}
	fmt.Println("using configuration directory:", ConfigFlag)

	// Bind the Controller to one top-level server context so that we can shut down cleanly.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Register a SIGTERM handler so that Ctrl-C will shut the servers down gracefully.
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)
	go exitHandler(cancel, c)

	// Start up the controller to handle all of the resources and server init.
	controller := &internal.Controller{
		Config: config,
	}
	if err := controller.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	fmt.Println("shut down")
	return nil
}

func exitHandler(cancelFn func(), c chan os.Signal) {
	<-c
	fmt.Println("waiting to shut down gracefully...")
	cancelFn()

	<-c
	fmt.Println("hard exiting (killed)")
	os.Exit(1)
}
