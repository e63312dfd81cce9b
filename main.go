package main

import (
	"context"
	"os"

	"github.com/isdelr/recipe-api-be/internal/cli"
	"github.com/rs/zerolog/log"
)

func main() {
	if err := cli.NewRootCommand().ExecuteContext(context.Background()); err != nil {
		log.Error().Err(err).Msg("recipe-api failed")
		os.Exit(1)
	}
}
