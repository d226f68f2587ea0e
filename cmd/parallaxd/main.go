package main

import (
	"os"

	log "github.com/sirupsen/logrus"
)

func main() {
	if err := NewRootCmd().Execute(); err != nil {
		log.WithError(err).Error("parallaxd failed")
		os.Exit(1)
	}
}
