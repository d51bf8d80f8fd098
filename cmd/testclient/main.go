// Command testclient sends the test contracts to a running testapp through
// the client mediator and logs every result.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"httpmediator/internal/config"
	"httpmediator/internal/journal"
	"httpmediator/internal/platform/logger"
	"httpmediator/internal/testapp"
	"httpmediator/pkg/httpclient"
	"httpmediator/pkg/httpresult"
	"httpmediator/pkg/mediator"
	"httpmediator/pkg/mediator/client"
	"httpmediator/pkg/mediator/server"
)

func main() {
	count := flag.Int("count", 101, "count sent with the simple request")
	apiKey := flag.String("api-key", "", "value of the "+server.APIKeyHeader+" header")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		slog.Error("config", "err", err)
		os.Exit(1)
	}
	log, closeLog := logger.New(logger.Options{
		Env:          cfg.Env,
		ConsoleLevel: cfg.Log.ConsoleLevel,
		FileLevel:    cfg.Log.FileLevel,
		ConsoleJSON:  cfg.Log.ConsoleJSON,
		App:          "testclient",
	})
	defer func() { _ = closeLog() }()

	headers := map[string]string{}
	if *apiKey != "" {
		headers[server.APIKeyHeader] = *apiKey
	}
	vs := mediator.NewValidators(mediator.WithStructTags())
	testapp.AddValidators(vs)

	services := mediator.NewServices()
	if _, err := client.AddTo(services,
		client.WithAPIBase(cfg.Client.BaseURL),
		client.WithLogger(log),
		client.WithValidators(vs),
		client.WithMetrics(mediator.NewMetrics(prometheus.NewRegistry(), mediator.SideClient)),
		client.WithTransport(httpclient.New(
			httpclient.WithLogger(log),
			httpclient.WithTimeout(cfg.Client.Timeout),
			httpclient.WithRetries(cfg.Client.Retries, 200*time.Millisecond),
			httpclient.WithHeaders(headers),
		)),
	); err != nil {
		log.Error("client", "err", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if err := run(ctx, services, log, *count); err != nil {
		log.Error("run", "err", err)
	}
}

func run(ctx context.Context, services *mediator.Services, log *slog.Logger, count int) error {
	c, err := client.From(services)
	if err != nil {
		return err
	}

	simple, err := client.Send(ctx, c, testapp.Simple, testapp.SimpleRequest{Count: count})
	if err != nil {
		return err
	}
	report(log, "simple", simple)

	for _, msg := range []string{"hello", testapp.InvalidMessage} {
		res, err := client.Send(ctx, c, testapp.Validated, testapp.ValidatedRequest{Message: msg})
		if err != nil {
			return err
		}
		report(log, "validated", res)
	}

	noContent, err := client.Send(ctx, c, testapp.NoContent, testapp.NoContentRequest{ID: "1"})
	if err != nil {
		return err
	}
	report(log, "no_content", noContent)

	throwing, err := client.Send(ctx, c, testapp.Throwing, testapp.ThrowingRequest{Reason: "requested by testclient"})
	if err != nil {
		return err
	}
	report(log, "throwing", throwing)

	recent, err := client.Send(ctx, c, journal.List, journal.ListRequest{Limit: 10})
	if err != nil {
		return err
	}
	report(log, "journal", recent)
	return nil
}

func report[T any](log *slog.Logger, name string, res httpresult.Result[T]) {
	if res.IsError() {
		e, _ := res.Failure()
		log.Warn(name, "status", res.Status(), "code", e.Code, "msg", e.Message)
		return
	}
	if !res.HasValue() {
		log.Info(name, "status", res.Status())
		return
	}
	v, _ := res.Value()
	log.Info(name, "status", res.Status(), "value", v)
}
