package main

import "os"

func fail() {
	os.Exit(1)
}

func main() {
	go func() {
		os.Exit(3)
	}()
	fail()
}
