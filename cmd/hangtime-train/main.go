package main

import (
	"os"

	"github.com/meltforce/hangtime/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
