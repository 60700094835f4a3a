package main

import (
	"context"
	"fmt"
	"log"

	"github.com/common-nighthawk/go-figure"
	"github.com/dmitrijs2005/passm/internal/server"
	"github.com/dmitrijs2005/passm/internal/server/config"
)

func displayAppname(appname string) {
	myFigure := figure.NewFigure(appname, "cybermedium", true)
	myFigure.Print()
	fmt.Println()
}

func main() {
	displayAppname("passm")

	ctx := context.Background()
	cfg := config.LoadConfig()
	app, err := server.NewApp(ctx, cfg)
	if err != nil {
		log.Printf("%v", err)
		return
	}

	app.Run(ctx)
}
