package main

import "github.com/kozaktomas/photo-vault/cmd"

func main() {
	cmd.Execute()
}
