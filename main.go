package main

import (
	"net/http"
	"os"
	"time"

	"github.com/fiffu/stockwatch/app"
	"github.com/fiffu/stockwatch/config"
	"github.com/fiffu/stockwatch/lib"
	"github.com/fiffu/stockwatch/lib/browser"
	"github.com/fiffu/stockwatch/lib/checkers"
	"github.com/fiffu/stockwatch/lib/ingest"
	"github.com/fiffu/stockwatch/lib/snapshotter"
	"github.com/fiffu/stockwatch/lib/store"
	"github.com/fiffu/stockwatch/senders"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger() (*zap.Logger, error) {
	switch os.Getenv("ENVIRONMENT") {
	default:
		return zap.NewDevelopment()

	case "production":
		logCfg := zap.NewProductionConfig()
		logCfg.EncoderConfig.EncodeTime = func(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
			t = t.UTC()
			zapcore.ISO8601TimeEncoder(t, enc)
		}
		return logCfg.Build()
	}
}

func NewHTTPPage(cfg *config.Config, transport http.RoundTripper) *checkers.HTTPPage {
	return checkers.NewHTTPPage(transport, cfg.Polling.RequestsPerSecond, cfg.Polling.FetchTimeout)
}

func NewBrowserSession(cfg *config.Config, log *zap.Logger) *browser.Session {
	launch := browser.RodLauncher(browser.RodConfig{
		RemoteURL: cfg.Browser.RemoteURL,
		Headless:  !cfg.Browser.Local,
		Timeout:   cfg.Polling.FetchTimeout,
	}, log)
	return browser.NewSession(launch, cfg.Browser.RecycleInterval, log)
}

func main() {
	fx.New(
		fx.Provide(config.NewConfig),
		fx.Provide(NewLogger),

		fx.Provide(app.NewDatabase),
		fx.Provide(app.NewTransport),
		fx.Provide(store.NewStore),

		fx.Provide(senders.NewSenderRegistry),
		fx.Provide(senders.NewDispatcher),
		fx.Provide(func(d *senders.Dispatcher) ingest.Outbox { return d }),

		fx.Provide(checkers.NewRegistry),
		fx.Provide(NewHTTPPage),
		fx.Provide(NewBrowserSession),
		fx.Provide(ingest.NewIngestor),
		fx.Provide(snapshotter.NewSnapshotter),

		fx.Provide(lib.NewService),
		fx.Provide(app.NewAPI),

		fx.Invoke(func(*http.Server, *snapshotter.Snapshotter) {}),
	).Run()
}
