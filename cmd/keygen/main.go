package main

import "credgate/cmd/keygen/cmd"

func main() {
	cmd.Execute()
}
