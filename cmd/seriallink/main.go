// Command seriallink bridges a serial port to stdin/stdout as a stream of
// fixed-width items.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	serial "github.com/luhtfiimanal/go-serial-link"
	"github.com/luhtfiimanal/go-serial-link/internal/config"
	"github.com/luhtfiimanal/go-serial-link/internal/logging"
)

func main() {
	if err := run(ParseFlags(os.Args[1:])); err != nil {
		fmt.Fprintln(os.Stderr, "seriallink:", err)
		os.Exit(1)
	}
}

func run(opts Options) error {
	// listing needs neither a valid config nor a logger
	if opts.ListPorts {
		return listPorts(os.Stdout)
	}

	level := zap.NewAtomicLevel()
	cfg, err := config.Watch(opts.ConfigPath, func(c *config.Config) {
		if err := logging.SetLevel(level, c.Log.Level); err == nil {
			zap.L().Info("log level reloaded", zap.String("level", c.Log.Level))
		}
	})
	if err != nil {
		return err
	}
	opts.apply(&cfg.Serial)
	if err := cfg.Validate(); err != nil {
		return err
	}

	logger, err := logging.New(cfg.Log, level)
	if err != nil {
		return err
	}
	defer logger.Sync()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch cfg.Serial.ItemSize {
	case 1:
		return serve[uint8](ctx, cfg, opts.Hex, logger)
	case 2:
		return serve[uint16](ctx, cfg, opts.Hex, logger)
	case 4:
		return serve[uint32](ctx, cfg, opts.Hex, logger)
	default:
		return serve[uint64](ctx, cfg, opts.Hex, logger)
	}
}

var portLister = serial.Ports

func listPorts(w io.Writer) error {
	ports, err := portLister()
	if err != nil {
		return err
	}
	for _, p := range ports {
		fmt.Fprintln(w, p)
	}
	return nil
}

func serve[T item](ctx context.Context, cfg *config.Config, hexMode bool, logger *zap.Logger) error {
	link, err := serial.Open[T](serial.Config{
		Device:     cfg.Serial.Port,
		BaudRate:   cfg.Serial.BaudRate,
		Driver:     serial.Driver(cfg.Serial.Driver),
		BufferSize: cfg.Serial.BufferSize,
		ChunkSize:  cfg.Serial.ChunkSize,
		ByteOrder:  cfg.Serial.Order(),
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer link.Close()

	b := newBridge(link, cfg.Serial.Order(), hexMode, os.Stdout, logger)
	return b.run(ctx, os.Stdin, cfg.Serial.PollInterval)
}
