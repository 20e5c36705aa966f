package main

import "github.com/cantolico/guard/internal/cli"

func main() {
	cli.Execute()
}
