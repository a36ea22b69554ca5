package main

import "github.com/angelospk/animatch/cmd/cli/cmd"

func main() {
	cmd.Execute()
}
