package main

import "github.com/datakeep/harvester/cmd/harvester/cmd"

func main() {
	cmd.Execute()
}
