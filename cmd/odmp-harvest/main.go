package main

import "github.com/pfrederiksen/odmp-harvest/internal/cli"

func main() {
	cli.Execute()
}
