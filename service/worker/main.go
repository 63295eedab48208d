package main

import (
	"context"
	"fmt"
	"log"

	"github.com/alexflint/go-arg"

	"viaduct/bridge"
	"viaduct/inspector"
)

func main() {
	var flags struct {
		bridge.BridgeArgs
		inspector.InspectorArgs
		Port uint `arg:"--port,env:INSPECTOR_PORT" default:"3001"`
	}
	arg.MustParse(&flags)
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	c, err := bridge.CreateFromArgs(&flags.BridgeArgs)
	if err != nil {
		panic(fmt.Sprintf("Failed to setup bridge connectors: %v", err))
	}
	defer c.Close()

	consumer, err := c.NewJournalConsumer("inspector")
	if err != nil {
		panic(fmt.Sprintf("Failed to create journal consumer: %v", err))
	}
	in := inspector.New(c, consumer, flags.InspectorArgs)
	defer in.Close()

	addr := fmt.Sprintf(":%d", flags.Port)
	log.Printf("starting worker inspector on %s...", addr)
	if err := in.Start(context.Background(), addr); err != nil {
		log.Fatalf("Serve(): %v", err)
	}
}
