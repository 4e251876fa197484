package main

import "github.com/gchaimke/netscan/cmd"

func main() {
	cmd.Execute()
}
