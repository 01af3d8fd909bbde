package main

import "github.com/TheLoudSteve/epl-forecast/internal/cli"

func main() {
	cli.Execute()
}
