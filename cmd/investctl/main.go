package main

import "github.com/exonvc/invest/cmd/investctl/cmd"

func main() {
	cmd.Execute()
}
