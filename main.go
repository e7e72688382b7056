package main

import "github.com/kos-tools/klinker/cmd"

func main() {
	cmd.Execute()
}
