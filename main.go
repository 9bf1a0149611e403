package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"l2fwd/capture"
	"l2fwd/fwd"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	loglvlStr := flag.String("v", "info", "log level")
	configStr := flag.String("c", "", "config location, defaults are used when empty")
	ov := registerOverrides(flag.CommandLine)
	flag.Parse()
	loglvl, err := zerolog.ParseLevel(*loglvlStr)
	if err != nil {
		panic("Failed to parse log level, try info")
	}
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr}).Level(loglvl).With().Timestamp().Logger().With().Caller().Logger()

	cfg, err := loadConfig(*configStr)
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to load config '%s'", *configStr)
	}
	ov.apply(flag.CommandLine, &cfg)
	log.Debug().Msgf("Config: %+v", cfg)
	if err = cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid config")
	}

	host := capture.NewHost(cfg.Capture)
	fw, err := fwd.Setup(cfg.fwdConfig(), host, fwd.LogSink{})
	if err != nil {
		log.Fatal().Err(err).Msgf("Failed to set up forwarding between '%s' and '%s'", cfg.Net1, cfg.Net2)
	}
	log.Info().Msgf("Forwarding between %s and %s. Settings %+v, driver %s", fw.Binding(fwd.SideA), fw.Binding(fwd.SideB), fw.Settings(), cfg.Capture.Driver)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go fw.Report(ctx, cfg.ReportPeriod)

	runErr := fw.Run(ctx)
	if err = fw.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to detach cleanly")
	}
	log.Info().Msgf("Stopped. %s", fw.Stats())
	if runErr != nil {
		log.Fatal().Err(runErr).Msg("Forwarding failed")
	}
}
