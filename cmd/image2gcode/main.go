package main

import "image2gcode/cmd/image2gcode/cmd"

func main() {
	cmd.Execute()
}
