package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/jorgetrad99/guitar-midi-sub000/config"
	"github.com/jorgetrad99/guitar-midi-sub000/engine"
	"github.com/jorgetrad99/guitar-midi-sub000/midi"
	"github.com/jorgetrad99/guitar-midi-sub000/notify"
	"github.com/jorgetrad99/guitar-midi-sub000/store"
	"github.com/jorgetrad99/guitar-midi-sub000/tui"
)

func main() {
	configPath := flag.String("config", "", "config file (default ~/.config/guitar-midi/config.yaml)")
	headless := flag.Bool("headless", false, "run without the status view")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: logLevel(cfg.LogLevel),
	}))

	if err := run(cfg, log, *headless); err != nil {
		log.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger, headless bool) error {
	transport, err := midi.NewRtTransport()
	if err != nil {
		return fmt.Errorf("midi backend: %w", err)
	}
	defer transport.Close()

	classifier := engine.NewClassifier(cfg.MatchRules(), cfg.Exclude)

	backend, cleanup := openBackend(transport, classifier, cfg.Synth.PortName, log)
	defer cleanup()

	st, closeStore, err := openStore(cfg, log)
	if err != nil {
		return err
	}
	defer closeStore()

	notifiers := []engine.Notifier{}
	var statusView *tui.Notifier
	if !headless {
		statusView = tui.NewNotifier()
		notifiers = append(notifiers, statusView)
	}
	if cfg.MQTT.Enabled {
		clientID := cfg.MQTT.ClientID
		if clientID == "" {
			clientID = "guitar-midi"
		}
		mq, err := notify.Connect(cfg.MQTT.Broker, clientID, log)
		if err != nil {
			log.Warn("mqtt unavailable, events stay local", "broker", cfg.MQTT.Broker, "err", err)
		} else {
			defer mq.Close()
			notifiers = append(notifiers, mq)
		}
	}

	router := engine.NewRouter(backend, st, engine.MultiNotifier(notifiers), log)
	registry := engine.NewRegistry(engine.RegistryConfig{
		Transport:    transport,
		Classifier:   classifier,
		Allocator:    engine.NewAllocator(cfg.BlockSize),
		Router:       router,
		Store:        st,
		Notifier:     engine.MultiNotifier(notifiers),
		Log:          log,
		ScanInterval: cfg.ScanInterval,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	done := make(chan struct{})
	go func() {
		registry.Run(ctx)
		close(done)
	}()

	if headless {
		log.Info("running headless, ^C to stop")
		<-done
		return nil
	}

	p := tea.NewProgram(tui.NewModel(registry, statusView), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		stop()
		<-done
		return fmt.Errorf("status view: %w", err)
	}
	stop()
	<-done
	return nil
}

// openBackend picks the sound generator: the first non-excluded output port
// matching the configured name, or the log when nothing matches. Excluded
// ports (loopbacks like "Midi Through") are never candidates, even with an
// empty port name.
func openBackend(transport midi.Transport, classifier *engine.Classifier, portName string, log *slog.Logger) (engine.SoundBackend, func()) {
	eps, err := transport.Endpoints()
	if err != nil {
		log.Warn("output enumeration failed, commands go to the log", "err", err)
		return engine.NewLogBackend(log), func() {}
	}
	for _, ep := range eps {
		if !ep.Output || classifier.Excluded(ep.ID) {
			continue
		}
		if portName != "" && !strings.Contains(strings.ToLower(ep.ID), strings.ToLower(portName)) {
			continue
		}
		out, err := transport.OpenOutput(ep.ID)
		if err != nil {
			log.Warn("output open failed", "port", ep.ID, "err", err)
			continue
		}
		log.Info("sound generator attached", "port", ep.ID)
		return engine.NewPortBackend(out, log), func() { out.Close() }
	}
	log.Warn("no sound generator port found, commands go to the log", "wanted", portName)
	return engine.NewLogBackend(log), func() {}
}

func openStore(cfg *config.Config, log *slog.Logger) (engine.Store, func(), error) {
	if !cfg.Store.Enabled {
		return engine.NopStore{}, func() {}, nil
	}
	path, err := cfg.DatabasePath()
	if err != nil {
		return nil, nil, fmt.Errorf("store path: %w", err)
	}
	s, err := store.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("store: %w", err)
	}
	log.Info("device store open", "path", path)
	return s, func() { s.Close() }, nil
}

func logLevel(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
