package main

import (
	"fmt"
	"os"

	"github.com/ppiankov/clausewatch/internal/cli"
	"github.com/ppiankov/clausewatch/internal/model"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		if model.IsConfigError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
