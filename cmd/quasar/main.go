// Command quasar copies value tables between datasources.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
)

var version = "0.1.0"

func main() {
	// Load .env file if it exists
	_ = godotenv.Load()

	a := newApp(os.Stdout)
	if err := run(context.Background(), a, newRootCommand(a)); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
