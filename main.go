package main

import (
	"os"

	"github.com/marcus302/aanvraagapp/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
