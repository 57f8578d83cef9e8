package cmd

import (
	"github.com/spf13/cobra"
)

// Execute runs the scribe CLI.
func Execute() error {
	root := &cobra.Command{Use: "scribe"}
	root.AddCommand(serveCMD())
	return root.Execute()
}
