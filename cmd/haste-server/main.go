package main

import (
	"os"

	"github.com/rs/zerolog/log"

	"github.com/harshite737-crypto/haste/chatservice"
)

func main() {
	if err := chatservice.Run(); err != nil {
		log.Error().Err(err).Msg("haste-server exited with error")
		os.Exit(1)
	}
}
