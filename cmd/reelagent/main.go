package main

import (
	"os"

	"github.com/spf13/cobra"
)

func main() {
	var root = &cobra.Command{Use: "reelagent"}

	root.AddCommand(runCMD(), serveCMD(), exportCMD())
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
