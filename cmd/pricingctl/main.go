package main

import "ticket-pricing/internal/cli"

func main() {
	cli.Execute()
}
