package main

import (
	"fmt"
	"os"

	"github.com/nconklindev/tablemerge/internal/cli"
	"github.com/nconklindev/tablemerge/internal/types"

	"github.com/joho/godotenv"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	// Handle --version flag
	if len(os.Args) > 1 && (os.Args[1] == "--version" || os.Args[1] == "-v") {
		fmt.Printf("tablemerge %s\ncommit: %s\nbuilt: %s\n", version, commit, date)
		os.Exit(0)
	}

	// A missing .env file is fine; settings then come from the environment.
	_ = godotenv.Load()

	if err := cli.Execute(version); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", types.Describe(err))
		os.Exit(1)
	}
}
