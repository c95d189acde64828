package main

import "github.com/gatepass/gatepass/cmd"

func main() {
	cmd.Execute()
}
