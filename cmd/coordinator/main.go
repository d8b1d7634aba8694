package main

import (
	"fmt"
	"os"

	"interviewroom/internal/cli"
)

func main() {
	if err := cli.NewRootCmd(&cli.Dependencies{}).Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
