// Command lambda runs one forecast refresh per EventBridge invocation.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/rs/zerolog"

	"github.com/TheLoudSteve/epl-forecast/internal/app"
	"github.com/TheLoudSteve/epl-forecast/internal/config"
	"github.com/TheLoudSteve/epl-forecast/internal/logging"
	"github.com/TheLoudSteve/epl-forecast/internal/service"
)

// Reused across warm invocations.
var updater *service.Updater

type eventDetail struct {
	Context string `json:"context"`
}

func handler(logger zerolog.Logger) func(context.Context, events.CloudWatchEvent) (service.UpdateReport, error) {
	return func(ctx context.Context, event events.CloudWatchEvent) (service.UpdateReport, error) {
		var detail eventDetail
		if len(event.Detail) > 0 {
			if err := json.Unmarshal(event.Detail, &detail); err != nil {
				logger.Warn().Err(err).Str("event_id", event.ID).Msg("ignoring malformed event detail")
			}
		}

		logger.Info().Str("event_id", event.ID).Time("event_time", event.Time).Str("context", detail.Context).Msg("refresh triggered")
		report, err := updater.Update(ctx, detail.Context)
		if err != nil {
			logger.Error().Err(err).Msg("refresh failed")
			return report, err
		}
		return report, nil
	}
}

func main() {
	cfg, err := config.Load(os.Getenv("EPLFORECAST_CONFIG"))
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	logger := logging.NewLogger(cfg.Logging)

	var closeAll func()
	updater, closeAll, err = app.NewApp(cfg, logger).NewUpdater(context.Background())
	if err != nil {
		logger.Fatal().Err(err).Msg("initialise updater")
	}
	defer closeAll()

	lambda.Start(handler(logging.Component(logger, "lambda")))
}
