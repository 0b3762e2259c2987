package main

import "os"

func main() {
	defer println("flushed")
	if len(os.Args) > 3 {
		os.Exit(2) // want "avoid using os.Exit in main.main"
	}
	os.Exit(0) // want "avoid using os.Exit in main.main"
}
