// Package main provides the check-key CLI, which prints the des_key value of
// a configuration script for shell callers.
package main

import (
	"context"
	"os"

	"github.com/leapstack-labs/checkkey/internal/cli"
)

func main() {
	os.Exit(cli.Run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
