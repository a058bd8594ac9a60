package main

import "github.com/kebairia/bacli/cmd"

func main() {
	cmd.Execute()
}
