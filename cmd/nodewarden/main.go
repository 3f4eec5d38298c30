package main

import (
	"nodewarden/internal/cli"
)

func main() {
	cli.Execute()
}
