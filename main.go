package main

import "github.com/openchiplab/chipcapture/cmd"

func main() {
	cmd.Execute()
}
