package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/broker"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/config"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/database"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/handler"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/ingest"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/liveness"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/metrics"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/mqtt"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/names"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/ruuvi"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/runtime"
	"github.com/tazle/ruuvitag-mqtt-ble-influxdb/internal/watchdog"
)

var version = "dev" // replaced at build time

func main() {
	var (
		testMode    bool
		quietMode   bool
		mappingFile string
	)

	app := &cobra.Command{
		Use:           os.Args[0],
		Short:         "Ships RuuviTag BLE advertisements from MQTT into InfluxDB",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.LoadConfig()
			if err != nil {
				return err
			}
			cfg.TestMode = testMode
			cfg.QuietMode = quietMode
			cfg.MappingFile = mappingFile
			return run(cfg, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	app.Flags().BoolVar(&testMode, "test", false, "decode and echo records without writing them")
	app.Flags().BoolVar(&quietMode, "quiet", false, "do not echo records")
	app.Flags().StringVar(&mappingFile, "mapping-file", "-", "JSON object of MAC -> name ('-' reads stdin)")

	err := app.Execute()
	if err != nil {
		config.GetLogger().Printf("[error] %v", err)
	}
	os.Exit(exitCode(err))
}

func run(cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	logger := config.GetLogger()
	logger.Printf("[boot] ruuvi-loader %s test=%v quiet=%v mapping-file=%s%s", version, cfg.TestMode, cfg.QuietMode, cfg.MappingFile, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	stopSignals := runtime.SetupGracefulShutdown(cancel, logger)
	defer stopSignals()

	fileNames, err := names.LoadFile(cfg.MappingFile, stdin, logger)
	if err != nil {
		return err
	}
	logger.Printf("[boot] mappings: %v", fileNames)
	tables := []map[string]string{fileNames}
	if cfg.RedisEnabled() {
		redisNames, err := names.LoadRedis(ctx, names.RedisOpts{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
			Key:      cfg.RedisNamesKey,
			Timeout:  5 * time.Second,
		})
		if err != nil {
			logger.Printf("[warn] redis names unavailable: %v", err)
		} else {
			logger.Printf("[boot] redis mappings from %s: %v", cfg.RedisNamesKey, redisNames)
			tables = append(tables, redisNames)
		}
	}
	resolver := names.NewResolver(tables...)
	logger.Printf("[boot] %d name mappings loaded", resolver.Len())

	var closers runtime.Closers
	defer closers.CloseAll(logger)

	db := database.NewInfluxDB(cfg, logger)
	closers.Add("influx", db.Close)
	if !cfg.TestMode {
		db.Ping(ctx)
		db.EnsureBucket(ctx)
	}

	sinks := handler.MultiSink{db}
	opts := handler.Options{TestMode: cfg.TestMode, QuietMode: cfg.QuietMode, Echo: stdout}
	if cfg.KafkaEnabled() {
		if err := broker.EnsureKafkaTopics(ctx, cfg, logger); err != nil {
			logger.Printf("[warn] kafka ensure topics: %v", err)
		}
		producer := broker.NewProducer(cfg, logger)
		closers.Add("kafka", producer.Close)
		sinks = append(sinks, producer)
		opts.Rejects = producer
	}

	h := handler.New(logger, ruuvi.NewDecoder(), resolver, sinks, opts)

	transport, err := mqtt.NewTransport(cfg, logger)
	if err != nil {
		return err
	}
	closers.Add("mqtt", transport.Disconnect)

	clock := liveness.New()
	loop := ingest.NewLoop(transport, h, clock, logger)
	wd := watchdog.New(clock, logger)

	return supervise(ctx, loop, wd, cfg.MetricsAddr, &closers, logger)
}

// supervise runs the ingest loop, the watchdog and the optional metrics
// server until one of them fails or ctx is done, then releases closers.
// A nil return means a clean stop.
func supervise(ctx context.Context, loop *ingest.Loop, wd *watchdog.Watchdog, metricsAddr string, closers *runtime.Closers, logger *log.Logger) error {
	defer closers.CloseAll(logger)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return loop.Run(gctx) })
	g.Go(func() error { return wd.Run(gctx) })
	if metricsAddr != "" {
		g.Go(func() error { return metrics.Serve(gctx, metricsAddr, logger) })
	}

	if err := g.Wait(); err != nil {
		return fmt.Errorf("ruuvi-loader stopped: %w", err)
	}
	logger.Printf("[shutdown] ruuvi-loader stopped")
	return nil
}

func exitCode(err error) int {
	if err != nil {
		return 1
	}
	return 0
}
