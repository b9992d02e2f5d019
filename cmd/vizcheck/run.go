package main

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/vizcheck/internal/browser"
	"github.com/ternarybob/vizcheck/internal/common"
	"github.com/ternarybob/vizcheck/internal/pageobject"
	"github.com/ternarybob/vizcheck/internal/report"
	"github.com/ternarybob/vizcheck/internal/scenario"
	"github.com/ternarybob/vizcheck/internal/server"
	"github.com/ternarybob/vizcheck/internal/suites/verticalbar"
)

// runSuite runs the vertical bar suite once and writes the report.
// It returns false when any scenario failed.
func runSuite(ctx context.Context, config *common.Config, logger arbor.ILogger, filter *regexp.Regexp) (bool, error) {
	policy, err := config.RetryPolicy()
	if err != nil {
		return false, err
	}
	if err := verticalbar.DefaultConfig().Validate(); err != nil {
		return false, err
	}

	baseURL := config.Target.BaseURL
	if baseURL == "" {
		if delay, _ := config.RenderDelay(); delay > 0 && config.Browser.Driver == browser.DriverHTTP {
			// The http driver runs no scripts, so pending bars would never grow
			logger.Warn().Str("render_delay", config.Fixture.RenderDelay).Msg("Disabling fixture render delay for the http driver")
			config.Fixture.RenderDelay = "0s"
		}

		srv, err := server.New(config, logger)
		if err != nil {
			return false, fmt.Errorf("failed to create fixture app: %w", err)
		}
		baseURL, err = srv.Start()
		if err != nil {
			return false, err
		}
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Warn().Err(err).Msg("Fixture app shutdown failed")
			}
		}()
	}

	session, err := browser.New(config, logger)
	if err != nil {
		return false, fmt.Errorf("failed to start browser: %w", err)
	}
	defer func() {
		if err := session.Close(); err != nil {
			logger.Warn().Err(err).Msg("Failed to close browser")
		}
	}()

	writer, err := report.NewWriter(config.Results.Dir, time.Now(), logger)
	if err != nil {
		return false, err
	}

	var opts []scenario.Option
	if filter != nil {
		opts = append(opts, scenario.WithFilter(filter))
	}
	opts = append(opts, scenario.WithFailureHook(writer.FailureHook(session, config.Results.Screenshots)))

	logger.Info().Str("target", baseURL).Str("driver", config.Browser.Driver).Msg("Running vertical bar chart suite")

	page := pageobject.New(session, baseURL, logger, policy)
	scenarios, err := verticalbar.Scenarios(page, verticalbar.DefaultConfig())
	if err != nil {
		return false, err
	}
	runner := scenario.NewRunner(logger, policy, opts...)
	rep := runner.RunAll(ctx, scenarios)

	if err := writer.Write(rep); err != nil {
		return rep.OK(), err
	}
	return rep.OK(), nil
}

// watch reruns the suite on the configured cron schedule until ctx is cancelled.
// A run still in progress when the next one is due is skipped.
func watch(ctx context.Context, config *common.Config, logger arbor.ILogger, filter *regexp.Regexp) error {
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	_, err := c.AddFunc(config.Schedule.Cron, func() {
		defer common.RecoverGoroutine(logger, "scheduled-run")
		ok, err := runSuite(ctx, config, logger, filter)
		switch {
		case err != nil:
			logger.Error().Err(err).Msg("Scheduled run aborted")
		case !ok:
			logger.Warn().Msg("Scheduled run had failures")
		default:
			logger.Info().Msg("Scheduled run passed")
		}
	})
	if err != nil {
		return fmt.Errorf("failed to schedule suite: %w", err)
	}

	logger.Info().Str("schedule", config.Schedule.Cron).Msg("Watch mode started - Press Ctrl+C to stop")
	c.Start()

	<-ctx.Done()
	logger.Info().Msg("Stopping watch mode")
	<-c.Stop().Done()
	return nil
}
