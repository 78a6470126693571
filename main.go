package main

import "github.com/boovboyz/azurerag/cmd"

func main() {
	cmd.Execute()
}
