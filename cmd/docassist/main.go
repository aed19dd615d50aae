// Package main provides the entry point for the docassist CLI.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/docassist/docassist/cmd/docassist/cmd"
)

func main() {
	// Optional .env in the working directory; absence is fine
	_ = godotenv.Load()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
