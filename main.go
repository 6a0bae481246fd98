package main

import "github.com/vitkovar/media-atlas/cmd"

func main() {
	cmd.Execute()
}
