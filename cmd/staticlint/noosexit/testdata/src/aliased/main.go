package main

import sys "os"

type exiter struct{}

func (exiter) Exit(code int) {}

func main() {
	exiter{}.Exit(1)
	sys.Exit(1) // want "avoid using os.Exit in main.main"
}
