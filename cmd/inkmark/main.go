package main

import (
	"context"
	"errors"
	"fmt"
	"os"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		if errors.Is(err, context.Canceled) {
			// Interrupted runs already logged their state; exit quietly.
			os.Exit(130)
		}
		fmt.Fprintln(os.Stderr, "inkmark:", err)
		os.Exit(1)
	}
}
