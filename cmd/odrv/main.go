package main

import "github.com/jthake/odrv/internal/cli"

func main() {
	_ = cli.Execute()
}
