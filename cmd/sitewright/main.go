package main

import "github.com/sitewright-dev/sitewright/internal/cli"

func main() {
	cli.Execute()
}
