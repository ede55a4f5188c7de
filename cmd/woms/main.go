// Package main is the entry point for the WOMS rules engine CLI.
package main

import "woms-rules/cmd/woms/cmd"

func main() {
	cmd.Execute()
}
