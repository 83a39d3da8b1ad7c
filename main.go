package main

import "dwallet/cmd"

func main() {
	cmd.Execute()
}
