package main

import (
	"fmt"
	"os"

	"github.com/dalemusser/vpcroadmap/internal/app/cli"
)

func main() {
	if err := cli.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(cli.GetExitCode(err))
	}
}
