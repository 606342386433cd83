package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/aschepis/backscratcher/llmguard/llm"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		var perr *llm.ProviderError
		if errors.As(err, &perr) {
			fmt.Fprintf(os.Stderr, "Error (%s): %s\n", perr.Kind, perr.Message)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}
