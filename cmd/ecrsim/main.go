// Command ecrsim runs a discrete-event simulation of the energy-constrained
// routing protocol over a manifest-declared topology and packet schedule.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kprusa/ecrsim/internal/config"
	"github.com/kprusa/ecrsim/internal/ecr"
	"github.com/kprusa/ecrsim/internal/logger"
	zapfactory "github.com/kprusa/ecrsim/internal/logger/zap"
	"github.com/kprusa/ecrsim/internal/manifest"
	"github.com/kprusa/ecrsim/internal/telemetry"
)

var defaultConfigPath = "config/ecrsim.yaml"

func main() {
	configPath := flag.String("config", defaultConfigPath, "path to configuration file")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("failed to load configuration from %q: %v", *configPath, err)
	}
	cfg.ApplyEnvOverrides()
	if err := cfg.ValidateConfig(); err != nil {
		log.Fatalf("invalid configuration: %v", err)
	}

	var lgr logger.Logger
	if cfg.Logger.Active {
		zapLog, err := zapfactory.New(cfg.Logger)
		if err != nil {
			log.Fatalf("failed to initialize logger: %v", err)
		}
		defer func() { _ = zapLog.Sync() }()
		lgr = zapfactory.NewAdapter(zapLog)
	} else {
		lgr = logger.NopLogger{}
	}
	cfg.LogConfig(lgr)

	sink, stopMetrics := buildSink(cfg.Telemetry, lgr)
	if stopMetrics != nil {
		defer stopMetrics()
	}

	nodesFile, err := os.Open(cfg.Simulation.NodesFile)
	if err != nil {
		lgr.Error("failed to open nodes file", logger.F("err", err))
		os.Exit(1)
	}
	defer nodesFile.Close()

	constants := ecr.Constants{
		BatteryDrainConstant:  cfg.Simulation.Constants.BatteryDrainConstant,
		BatteryDrainPerPacket: cfg.Simulation.Constants.BatteryDrainPerPkt,
		EMAAlpha:              cfg.Simulation.Constants.EMAAlpha,
		Gamma:                 cfg.Simulation.Constants.Gamma,
		RDTimeout:             cfg.Simulation.Constants.RDTimeout,
		RDResend:              cfg.Simulation.Constants.RDResend,
		RUMinInterval:         cfg.Simulation.Constants.RUMinInterval,
	}

	topology, err := manifest.LoadNodes(nodesFile,
		ecr.WithLogger(lgr.Named("node")),
		ecr.WithConstants(constants),
	)
	if err != nil {
		lgr.Error("failed to load nodes manifest", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("topology loaded", logger.F("nodes", len(topology.Names())))

	packetsFile, err := os.Open(cfg.Simulation.PacketsFile)
	if err != nil {
		lgr.Error("failed to open packets file", logger.F("err", err))
		os.Exit(1)
	}
	defer packetsFile.Close()

	scheduler, err := manifest.LoadPackets(packetsFile)
	if err != nil {
		lgr.Error("failed to load packets manifest", logger.F("err", err))
		os.Exit(1)
	}
	lgr.Info("packet schedule loaded", logger.F("entries", scheduler.Len()))

	engine := ecr.NewEngine(topology, scheduler, constants, sink,
		ecr.WithEngineLogger(lgr.Named("engine")),
		ecr.WithMaxTicks(cfg.Simulation.MaxTicks),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		engine.Run()
	}()

	select {
	case <-done:
		lgr.Info("simulation complete", logger.F("ticks", engine.Tick()))
	case <-ctx.Done():
		lgr.Warn("shutdown signal received, waiting for the simulation run to finish")
		<-done
	}

	printSummary(lgr, cfg.Telemetry, engine, sink)
}

// buildSink wires the configured telemetry backends together, returning a
// single Sink and an optional shutdown func for a started Prometheus
// exporter.
func buildSink(cfg config.TelemetryConfig, lgr logger.Logger) (telemetry.Sink, func()) {
	var sinks []telemetry.Sink

	sinks = append(sinks, telemetry.NewBufferSink(cfg.PacketRingSize))

	fileSink := buildFileSink(cfg)
	if fileSink != nil {
		sinks = append(sinks, fileSink)
	}

	var stop func()
	if cfg.PrometheusEnabled {
		promSink := telemetry.NewPrometheusSink()
		sinks = append(sinks, promSink)

		mux := http.NewServeMux()
		mux.Handle("/metrics", promSink.Handler())
		srv := &http.Server{Addr: cfg.PrometheusAddr, Handler: mux}
		go func() {
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				lgr.Error("prometheus exporter stopped", logger.F("err", err))
			}
		}()
		lgr.Info("prometheus exporter listening", logger.F("addr", cfg.PrometheusAddr))

		stop = func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(shutdownCtx)
		}
	}

	return telemetry.NewMultiSink(sinks...), stop
}

func buildFileSink(cfg config.TelemetryConfig) *telemetry.FileSink {
	open := func(path string) *os.File {
		if path == "" {
			return nil
		}
		f, err := os.Create(path)
		if err != nil {
			log.Printf("telemetry: failed to open %q: %v", path, err)
			return nil
		}
		return f
	}

	full := open(cfg.FullLogPath)
	packet := open(cfg.PacketLogPath)
	errs := open(cfg.ErrorLogPath)
	performance := open(cfg.PerformanceLogPath)
	energy := open(cfg.EnergyLogPath)

	if full == nil && packet == nil && errs == nil && performance == nil && energy == nil {
		return nil
	}
	return telemetry.NewFileSink(full, packet, errs, performance, energy)
}

// printSummary logs the final run summary through lgr, naming every
// configured telemetry destination and the aggregate error count,
// independent of which backends were actually wired in.
func printSummary(lgr logger.Logger, cfg config.TelemetryConfig, engine *ecr.Engine, sink telemetry.Sink) {
	errorCount := 0
	if b, ok := sink.(interface{ ErrorCount() int }); ok {
		errorCount = b.ErrorCount()
	}

	lgr.Info("simulation summary",
		logger.F("ticks", engine.Tick()),
		logger.F("errors", errorCount),
		logger.F("full_log", cfg.FullLogPath),
		logger.F("packet_log", cfg.PacketLogPath),
		logger.F("error_log", cfg.ErrorLogPath),
		logger.F("performance_log", cfg.PerformanceLogPath),
		logger.F("energy_log", cfg.EnergyLogPath),
	)
}
