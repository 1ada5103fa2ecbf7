package main

import "live-relay/cmd/relay/cmd"

func main() {
	cmd.Execute()
}
