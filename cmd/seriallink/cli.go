package main

import (
	"flag"

	"github.com/luhtfiimanal/go-serial-link/internal/config"
)

// Options holds CLI options. Non-zero serial fields override the config file.
type Options struct {
	ConfigPath string
	Port       string
	BaudRate   int
	ItemSize   int
	Driver     string
	Hex        bool
	ListPorts  bool
}

// ParseFlags parses CLI flags from args and returns Options.
func ParseFlags(args []string) Options {
	fs := flag.NewFlagSet("seriallink", flag.ExitOnError)
	var opts Options
	fs.StringVar(&opts.ConfigPath, "config", "", "Path to YAML config file")
	fs.StringVar(&opts.Port, "port", "", "Serial device, e.g. /dev/ttyUSB0 or COM3")
	fs.IntVar(&opts.BaudRate, "baud", 0, "Baud rate")
	fs.IntVar(&opts.ItemSize, "item", 0, "Item width in bytes (1, 2, 4 or 8)")
	fs.StringVar(&opts.Driver, "driver", "", "Transport driver: tty, portable or tarm")
	fs.BoolVar(&opts.Hex, "hex", false, "Hex text on stdin/stdout instead of raw bytes")
	fs.BoolVar(&opts.ListPorts, "list", false, "List serial ports and exit")
	_ = fs.Parse(args)
	return opts
}

func (o Options) apply(s *config.SerialConfig) {
	if o.Port != "" {
		s.Port = o.Port
	}
	if o.BaudRate != 0 {
		s.BaudRate = o.BaudRate
	}
	if o.ItemSize != 0 {
		s.ItemSize = o.ItemSize
	}
	if o.Driver != "" {
		s.Driver = o.Driver
	}
}
