package main

import "github.com/nkomarek/atelier/cmd/atelier/cmd"

func main() {
	cmd.Execute()
}
