package main

import "github.com/LiboWorks/bitrag/cmd"

func main() {
	cmd.Execute()
}
