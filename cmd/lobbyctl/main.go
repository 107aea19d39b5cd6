package main

import "github.com/mcoot/pairlobby/internal/cli"

func main() {
	cli.Execute()
}
