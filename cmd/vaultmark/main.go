package main

import "github.com/vaultmark/vaultmark/cmd/vaultmark/cmd"

func main() {
	cmd.Execute()
}
