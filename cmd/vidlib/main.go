// Command vidlib runs the video library service.
package main

import (
	"log"

	"github.com/patric-chuzhbe/vidlib/internal/app"
)

func run() error {
	theApp, err := app.New()
	if err != nil {
		return err
	}
	defer theApp.Close()

	return theApp.Run()
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}
