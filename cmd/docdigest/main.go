package main

import "github.com/dgallion1/docdigest/internal/cli"

func main() {
	cli.Execute()
}
