// Command watchlist edits the monitored selection from the shell.
//
//	watchlist list
//	watchlist add -reason 押し目 7203 9984
//	watchlist remove 7203
//	watchlist clear
//	watchlist prune
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/config"
	"KabuSentinel/internal/watchlist"
)

func usage() {
	fmt.Fprintln(os.Stderr, "usage: watchlist [-config path] list|add|remove|clear|prune [args]")
	os.Exit(2)
}

func main() {
	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "config file")
	flag.Parse()
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	if flag.NArg() == 0 {
		usage()
	}
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	cal, err := cfg.Calendar()
	if err != nil {
		log.Fatal().Err(err).Msg("calendar")
	}
	mgr := &watchlist.Manager{
		Store:    watchlist.NewFileStore(cfg.Watchlist.Path),
		Calendar: cal,
		MaxAge:   cfg.Watchlist.MaxAgeDays,
	}

	cmd, args := flag.Arg(0), flag.Args()[1:]
	switch cmd {
	case "list":
		entries, err := mgr.List()
		exitOn(err)
		fmt.Println(watchlist.Format(entries))
	case "add":
		fs := flag.NewFlagSet("add", flag.ExitOnError)
		reason := fs.String("reason", watchlist.DefaultReason, "why the tickers are watched")
		fs.Parse(args)
		if fs.NArg() == 0 {
			usage()
		}
		entries, err := mgr.Add(*reason, fs.Args()...)
		exitOn(err)
		fmt.Println(watchlist.Format(entries))
	case "remove":
		if len(args) == 0 {
			usage()
		}
		entries, err := mgr.Remove(args...)
		exitOn(err)
		fmt.Println(watchlist.Format(entries))
	case "clear":
		exitOn(mgr.Clear())
		fmt.Println(watchlist.Format(nil))
	case "prune":
		removed, err := mgr.Prune()
		exitOn(err)
		fmt.Printf("pruned %d\n", len(removed))
	default:
		usage()
	}
}

func exitOn(err error) {
	if err != nil {
		log.Fatal().Err(err).Msg("watchlist")
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
