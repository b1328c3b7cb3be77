package main

import (
	"os"

	"github.com/solatis/ticketkeeper/cmd/ticketkeeper/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(cmd.ExitCode(err))
	}
}
