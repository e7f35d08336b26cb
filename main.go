package main

import "github.com/vibast-solutions/ms-go-inventory/cmd"

func main() {
	cmd.Execute()
}
