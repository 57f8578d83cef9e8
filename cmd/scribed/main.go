package main

import (
	"log"
	"os"

	"github.com/inkhouse/scribe/config"
	"github.com/inkhouse/scribe/internal/server"
)

func main() {
	cfg := config.LoadConfig(os.Getenv("SCRIBE_CONFIG"))
	if addr := os.Getenv("SCRIBE_HTTP_ADDR"); addr != "" {
		cfg.Server.Address = addr
	}

	if err := server.Run(cfg); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
