package main

import "carwatch/cmd/carwatch/commands"

func main() {
	commands.Execute()
}
