package main

import (
	"fmt"
	"os"

	"github.com/ghyeongl/photocull/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "photocull:", err)
		os.Exit(1)
	}
}
