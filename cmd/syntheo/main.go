package main

import "github.com/syntheo/syntheo/internal/cli"

func main() {
	cli.Execute()
}
