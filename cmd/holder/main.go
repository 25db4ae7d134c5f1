package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{}
	root := rootCommand(a)
	root.SetArgs(normalizeArgs(os.Args[1:]))

	err := root.ExecuteContext(ctx)
	if saveErr := a.save(); saveErr != nil {
		fmt.Fprintf(os.Stderr, "save state: %v\n", saveErr)
		if err == nil {
			err = saveErr
		}
	}
	if err != nil {
		os.Exit(1)
	}
}

// normalizeArgs accepts single-dash long flags such as -mnemonic.
func normalizeArgs(args []string) []string {
	out := make([]string, len(args))
	for i, arg := range args {
		if arg == "-mnemonic" {
			arg = "--mnemonic"
		}
		out[i] = arg
	}
	return out
}
