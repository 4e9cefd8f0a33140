// Command folio answers questions about a folder of PDF documents.
package main

import (
	"os"

	"github.com/joho/godotenv"

	"github.com/custodia-labs/folio/internal/adapters/driving/cli"
)

func main() {
	// A missing .env file is not an error.
	_ = godotenv.Load()

	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
