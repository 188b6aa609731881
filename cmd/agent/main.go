package main

import (
	"context"
	"log"

	"github.com/beeroutine/haircareplus-sync/internal/client/app"
	"github.com/beeroutine/haircareplus-sync/internal/client/config"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	a, err := app.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	a.Run(ctx)

}
