package main

import (
	"context"
	"log"
	"os"

	"github.com/dmitrijs2005/cryptexdrive/internal/client/cli"
	"github.com/dmitrijs2005/cryptexdrive/internal/client/client"
	"github.com/dmitrijs2005/cryptexdrive/internal/client/config"
	"github.com/dmitrijs2005/cryptexdrive/internal/prompt"
)

func main() {

	ctx := context.Background()
	cfg := config.LoadConfig()

	c, err := client.NewGRPCClient(cfg.ServerEndpointAddr, cfg.RequestTimeout)
	if err != nil {
		log.Fatalf("%v", err)
	}
	defer c.Close()

	cli.NewApp(c, prompt.New(os.Stdin, os.Stdout)).Run(ctx)

}
