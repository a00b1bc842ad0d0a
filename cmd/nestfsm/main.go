// Command nestfsm runs, validates and draws hierarchical state machines
// described in YAML, and serves the live viewer.
package main

import (
	"fmt"
	"os"
)

func main() {
	err := NewRootCommand().Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
