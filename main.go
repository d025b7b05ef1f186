package main

import "filecast/cmd"

func main() {
	cmd.Execute()
}
