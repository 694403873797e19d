package main

import "github.com/azckamp/lanetimer/cmd"

func main() {
	cmd.Execute()
}
