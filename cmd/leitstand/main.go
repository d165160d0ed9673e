package main

import (
	"os"

	"leitstand/internal/cli"
)

func main() {
	os.Exit(cli.Execute())
}
