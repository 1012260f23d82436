// Command stratawatch runs the presence-correlated authentication event
// service.
package main

import (
	"context"
	"log"

	"github.com/dalemusser/stratawatch/internal/app/bootstrap"
	"github.com/dalemusser/waffle/app"
)

func main() {
	if err := app.Run(context.Background(), bootstrap.Hooks); err != nil {
		log.Fatal(err)
	}
}
