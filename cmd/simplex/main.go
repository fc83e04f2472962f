package main

import (
	"fmt"
	"os"

	truetm "github.com/TheLudd/truetm"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "simplex:", err)
		os.Exit(1)
	}
}

func run() error {
	logger := truetm.NewLogger()

	tty, err := truetm.OpenTTY()
	if err != nil {
		return err
	}
	defer tty.Restore()

	app, err := truetm.NewApp(tty, logger)
	if err != nil {
		return err
	}
	return app.Run()
}
