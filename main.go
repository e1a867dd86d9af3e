package main

import (
	"os"

	"github.com/openaudit/fairbayes/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
