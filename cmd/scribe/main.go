package main

import (
	"log"

	"github.com/inkhouse/scribe/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		log.Fatal(err)
	}
}
