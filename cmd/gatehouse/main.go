package main

import "gatehouse/cmd/gatehouse/cmd"

func main() {
	cmd.Execute()
}
