// Command sessionguard is a terminal shell over a guarded session. It keeps
// the token in a file between invocations.
//
//	sessionguard [-config config.toml -env dev] login <username>
//	sessionguard logout
//	sessionguard whoami
//	sessionguard navigate <path>
//	sessionguard routes
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

	if err := run(ctx, os.Args[1:], os.Stdin, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, "sessionguard:", err)
		os.Exit(1)
	}
}
