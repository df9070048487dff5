package main

import "motium/cmd/client/cmd"

func main() {
	cmd.Execute()
}
