package main

import "github.com/wkbook/phonebook/cmd"

func main() {
	cmd.Execute()
}
