// Command vizfixture serves the fixture visualization app on its own
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/server"
)

type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles configPaths
	serverPort  = flag.Int("port", 5620, "Port to listen on (0 picks a free port)")
	serverPortP = flag.Int("p", 0, "Port (shorthand, overrides -port)")
	serverHost  = flag.String("host", "", "Host to bind (overrides config)")
	renderDelay = flag.Duration("render-delay", -1, "Delay before bars reach their final height (overrides config)")
	showVersion = flag.Bool("version", false, "Print version information")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	flag.Parse()

	if *showVersion {
		fmt.Printf("vizfixture version %s\n", common.GetFullVersion())
		os.Exit(0)
	}

	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Fatal().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		os.Exit(1)
	}

	config.Fixture.Port = *serverPort
	if *serverPortP != 0 {
		config.Fixture.Port = *serverPortP
	}
	if *serverHost != "" {
		config.Fixture.Host = *serverHost
	}
	if *renderDelay >= 0 {
		config.Fixture.RenderDelay = renderDelay.String()
	}
	logger := common.InitLogger(config)
	common.PrintBanner("vizfixture")

	srv, err := server.New(config, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("Failed to initialize fixture app")
		os.Exit(1)
	}

	if _, err := srv.Listen(); err != nil {
		logger.Fatal().Err(err).Msg("Failed to listen")
		os.Exit(1)
	}

	common.SafeGo(logger, "fixture-server", func() {
		if err := srv.Serve(); err != nil {
			logger.Fatal().Err(err).Msg("Server failed")
		}
	})

	logger.Info().Msg("Server ready - Press Ctrl+C to stop")

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	<-sigChan

	logger.Info().Msg("Interrupt signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Error().Err(err).Msg("Server shutdown failed")
	}
}
