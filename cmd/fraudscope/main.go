// Command fraudscope scores a labeled transaction dataset for fraud risk.
package main

import (
	"errors"
	"fmt"
	"os"
)

var (
	version = "v0.0.1-default"
	commit  = ""
)

func main() {
	if err := newRootCmd(os.Stdout, os.Stderr).Execute(); err != nil {
		if errors.Is(err, errUnavailable) {
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
