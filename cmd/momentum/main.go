package main

import (
	"os"

	"github.com/copyleftdev/momentum/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
