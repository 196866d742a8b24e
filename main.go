package main

import "github.com/loomgate/loomgate/cmd"

func main() {
	cmd.Execute()
}
