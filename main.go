package main

import (
	"os"

	"github.com/loadvane/corrida/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
