package main

import "github.com/audiolibrelab/stemtouch/cmd"

func main() {
	cmd.Execute()
}
