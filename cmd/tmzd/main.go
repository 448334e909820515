package main

import (
	"go.uber.org/fx"

	"github.com/tmzdev/tmz/internal/daemon"
)

func main() {
	app := fx.New(
		daemon.Module(),
	)

	app.Run()
}
