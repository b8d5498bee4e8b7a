// cmd/dspmbox/main.go
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/tamzrod/dsp-mailbox/internal/config"
	"github.com/tamzrod/dsp-mailbox/internal/session"
)

const usage = `usage: dspmbox [-config path] [-log level] <command> [args]

commands:
  load [device [core]]                   run the firmware flow
  status <device>                        frame status, counter and revision per core
  send <device> <core> <command>         invoke a parameterless command (e.g. GET_COUNTER)
  kcs-read <device> <core> <offset> <n>  hex dump of KCS
  kcs-write <device> <core> <offset> <file>
  clock <device> stop|restart            broadcast a clock command
  serve                                  load, monitor and publish status until interrupted
`

var errUsage = errors.New("invalid arguments")

func main() {
	cfgPath := flag.String("config", "dspmbox.yaml", "configuration file")
	level := flag.String("log", "info", "log level: trace, debug, info, warn, error")
	flag.Usage = func() { fmt.Fprint(flag.CommandLine.Output(), usage) }
	flag.Parse()

	lvl, err := parseLevel(*level)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))

	args := flag.Args()
	if len(args) == 0 {
		flag.Usage()
		os.Exit(2)
	}

	// --------------------
	// Load + validate config
	// --------------------

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fatal(log, "config load failed", err)
	}
	if err := config.Validate(cfg); err != nil {
		fatal(log, "config validation failed", err)
	}
	config.Normalize(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := &app{cfg: cfg, log: log, out: os.Stdout}
	if err := a.run(ctx, args[0], args[1:]); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "%s: %v\n\n", args[0], err)
			flag.Usage()
			os.Exit(2)
		}
		fatal(log, args[0]+" failed", err)
	}
}

func fatal(log *slog.Logger, msg string, err error) {
	log.Error(msg, slog.Any("err", err))
	os.Exit(1)
}

func parseLevel(s string) (slog.Level, error) {
	if strings.EqualFold(s, "trace") {
		return session.LevelTrace, nil
	}
	var l slog.Level
	if err := l.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level: %w", err)
	}
	return l, nil
}
