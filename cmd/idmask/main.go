package main

import (
	"os"

	"github.com/apex/log"
	"github.com/apex/log/handlers/cli"
)

func main() {
	log.SetHandler(cli.New(os.Stderr))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
