// Package main provides the entry point for the applytrack CLI.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "applytrack",
	Short: "Job application tracker",
	Long:  "applytrack fetches job application emails, extracts structured facts with an LLM, consolidates them into one record per application and resolves employer postal addresses.",
}

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
