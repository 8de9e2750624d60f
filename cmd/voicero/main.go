package main

import "voicero/internal/cmd"

func main() {
	cmd.Execute()
}
