package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"regexp"
	"syscall"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/common"
)

// Exit codes
const (
	exitOK      = 0
	exitFailed  = 1 // at least one scenario failed
	exitStartup = 2 // configuration or environment problem
)

// configPaths is a custom flag type that allows multiple -config flags
type configPaths []string

func (c *configPaths) String() string {
	return fmt.Sprintf("%v", *c)
}

func (c *configPaths) Set(value string) error {
	*c = append(*c, value)
	return nil
}

var (
	configFiles  configPaths
	targetURL    = flag.String("url", "", "Base URL of the application under test (overrides config, empty starts the fixture app)")
	driverName   = flag.String("driver", "", "Browser driver: chromedp, rod or http (overrides config)")
	runPattern   = flag.String("run", "", "Only run scenarios whose name matches this regexp")
	showVersion  = flag.Bool("version", false, "Print version information")
	showVersionV = flag.Bool("v", false, "Print version information (shorthand)")
)

func init() {
	flag.Var(&configFiles, "config", "Configuration file path (can be specified multiple times, later files override earlier ones)")
	flag.Var(&configFiles, "c", "Configuration file path (shorthand)")
}

func main() {
	os.Exit(run())
}

func run() int {
	flag.Parse()

	if *showVersion || *showVersionV {
		fmt.Printf("vizcheck version %s\n", common.GetFullVersion())
		return exitOK
	}

	if len(configFiles) == 0 {
		if _, err := os.Stat("vizcheck.toml"); err == nil {
			configFiles = append(configFiles, "vizcheck.toml")
		}
	}

	// 1. defaults -> files -> env
	config, err := common.LoadFromFiles(configFiles...)
	if err != nil {
		arbor.NewLogger().Error().Strs("paths", configFiles).Err(err).Msg("Failed to load configuration")
		return exitStartup
	}

	// 2. CLI flags
	common.ApplyFlagOverrides(config, *targetURL, *driverName)
	if err := config.Validate(); err != nil {
		arbor.NewLogger().Error().Err(err).Msg("Invalid command-line overrides")
		return exitStartup
	}
	common.InstallCrashHandler(config.Results.Dir)
	defer common.RecoverWithCrashFile()

	if config.IsCI() {
		config.Browser.Headless = true
	}

	// 3. logger and banner
	logger := common.InitLogger(config)
	common.PrintBanner("vizcheck")

	logger.Debug().
		Str("driver", config.Browser.Driver).
		Str("target", config.Target.BaseURL).
		Int("max_attempts", config.Retry.MaxAttempts).
		Str("interval", config.Retry.Interval).
		Str("results", config.Results.Dir).
		Str("schedule", config.Schedule.Cron).
		Msg("Resolved configuration")

	var filter *regexp.Regexp
	if *runPattern != "" {
		filter, err = regexp.Compile(*runPattern)
		if err != nil {
			logger.Error().Err(err).Str("pattern", *runPattern).Msg("Invalid -run pattern")
			return exitStartup
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if config.Schedule.Cron != "" {
		if err := watch(ctx, config, logger, filter); err != nil {
			logger.Error().Err(err).Msg("Watch mode failed")
			return exitStartup
		}
		return exitOK
	}

	ok, err := runSuite(ctx, config, logger, filter)
	if err != nil {
		logger.Error().Err(err).Msg("Run aborted")
		return exitStartup
	}
	if !ok {
		return exitFailed
	}
	return exitOK
}
