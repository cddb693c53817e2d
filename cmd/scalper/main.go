package main

import (
	"os"
	_ "time/tzdata"

	"github.com/rustyeddy/scalper/cmd/scalper/cmd"
)

func main() {
	os.Exit(cmd.ExitCode(cmd.Execute()))
}
