package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	pollamacmder "github.com/ZBcheng/pure-ollama/cmd/pollama"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cmd := pollamacmder.NewPollamaCmd()
	if err := cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}
