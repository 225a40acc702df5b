package main

import (
	"os"

	"github.com/joho/godotenv"

	memvidcmder "github.com/papercomputeco/memvid/cmd/memvid"
)

func main() {
	// OPENAI_API_KEY and MEMVID_* may come from a local .env file.
	_ = godotenv.Load()

	cmd := memvidcmder.NewMemvidCmd()
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
