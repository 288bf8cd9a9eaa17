//go:build wireinject
// +build wireinject

package main

import (
	"github.com/google/wire"
)

// InitializeApp builds the full component graph from the config at path.
// Caller must call a.Close() when done.
func InitializeApp(path configPath) (*App, error) {
	wire.Build(
		loadConfig,
		initializeMarketData,
		initializeTrading,
		initializeController,
		initializeSession,
		initializeGateway,
		initializeJournal,
		initializeServer,
		wire.Struct(new(App), "*"),
	)
	return nil, nil
}
