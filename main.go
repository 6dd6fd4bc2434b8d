package main

import "github.com/chukul/awsx/cmd"

func main() {
	cmd.Execute()
}
