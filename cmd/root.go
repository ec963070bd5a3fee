// Package cmd implements the docstack command line interface.
package cmd

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "docstack",
	Short: "docstack - document workspace with retrieval-grounded answers",
	Long: `docstack is a document management backend. It stores documents,
keeps a vector index in sync with every write, and answers questions
about your documents grounded on retrieved context.

Run "docstack serve" to start the HTTP API server.`,
	SilenceUsage: true,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
