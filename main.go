package main

import "github.com/gaurav-prasanna/folioscan/cmd"

func main() {
	cmd.Execute()
}
