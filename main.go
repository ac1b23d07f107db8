package main

import "github.com/audiolibrelab/voicecards/cmd"

func main() {
	cmd.Execute()
}
