package main

import "github.com/bitfsorg/libmarket-go/internal/cli"

func main() {
	cli.Execute()
}
