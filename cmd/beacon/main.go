package main

import (
	"fmt"
	"os"

	"github.com/instantcocoa/beacon/cmd/beacon/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
