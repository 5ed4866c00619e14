package main

import (
	"context"
	"flag"
	"os/signal"
	"strings"
	"syscall"

	"github.com/rs/zerolog/log"

	"gungnir/internal/engine"
	"gungnir/internal/net"
)

// parsePairs turns a comma-separated list like "ETH/USDC,BTC/USDT" into
// trading pairs.
func parsePairs(input string) []engine.TradingPair {
	var pairs []engine.TradingPair
	for _, entry := range strings.Split(input, ",") {
		legs := strings.Split(strings.TrimSpace(entry), "/")
		if len(legs) != 2 {
			log.Error().Str("pair", entry).Msg("skipping malformed pair")
			continue
		}
		pairs = append(pairs, engine.NewTradingPair(
			engine.Asset(legs[0]),
			engine.Asset(legs[1]),
		))
	}
	return pairs
}

func main() {
	address := flag.String("address", "0.0.0.0", "Listen address")
	port := flag.Int("port", 9001, "Listen port")
	pairs := flag.String("pairs", "ETH/USDC,BTC/USDC,BTC/USDT", "Hosted trading pairs")
	flag.Parse()

	ctx, stop := signal.NotifyContext(
		context.Background(),
		syscall.SIGTERM,
		syscall.SIGINT,
	)
	defer stop()

	// Setup the TCP server and the matching engine.
	eng := engine.New(engine.Config{Pairs: parsePairs(*pairs)})
	srv := net.New(*address, *port, eng)

	go srv.Run(ctx)
	// Block on running the server.
	<-ctx.Done()
}
