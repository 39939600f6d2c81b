// Package main is the entry point for the notesampler API server
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/james-see/notesampler/pkg/api"
	"github.com/james-see/notesampler/pkg/config"
	"github.com/james-see/notesampler/pkg/logging"
	"github.com/james-see/notesampler/pkg/mapping"
	"github.com/james-see/notesampler/pkg/sound"
	"github.com/james-see/notesampler/pkg/sound/device"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "", "Config file (default ~/.config/notesampler/config.json)")
	port := flag.Int("port", 0, "Server port (overrides config)")
	noAudio := flag.Bool("no-audio", false, "Disable the audio device")
	flag.Parse()

	if err := run(*configPath, *port, *noAudio); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string, port int, noAudio bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.Server.Port = port
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	lib := sound.NewLibrary(cfg.Paths.SoundsDir)
	store := mapping.NewStore(cfg.Paths.MappingsDir, lib, lib.DefaultGroup(), log.Named("mapping"))

	var backend sound.Backend = sound.NewNullBackend(log)
	if cfg.Audio.Enabled && !noAudio {
		dev, err := device.NewEbitenBackend(cfg.Audio.SampleRate, log.Named("audio"))
		if err != nil {
			return err
		}
		backend = dev
	}
	player := sound.NewManager(lib, store, backend, log.Named("sound"))
	defer func() { _ = player.Close() }()

	srv, err := api.NewServer(cfg, lib, store, player, log)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("starting notesampler API server",
		zap.Int("port", cfg.Server.Port),
		zap.String("swagger", fmt.Sprintf("http://localhost:%d/swagger/index.html", cfg.Server.Port)))
	return srv.StartServer(ctx)
}
