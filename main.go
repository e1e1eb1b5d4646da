package main

import (
	"os"

	"github.com/bz888/chatprobe/cmd"
)

func main() {
	os.Exit(cmd.Execute())
}
