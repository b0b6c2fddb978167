package main

import "github.com/blockdeep/exbrid/cmd"

func main() {
	cmd.Execute()
}
