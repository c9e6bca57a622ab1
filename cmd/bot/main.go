package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"KabuSentinel/internal/collector"
	"KabuSentinel/internal/config"
	"KabuSentinel/internal/cooldown"
	"KabuSentinel/internal/notifier"
	"KabuSentinel/internal/recorder"
	"KabuSentinel/internal/scheduler"
	"KabuSentinel/internal/strategy"
	"KabuSentinel/internal/universe"
	"KabuSentinel/internal/watchlist"
)

func main() {
	cfgPath := flag.String("config", envOr("CONFIG_PATH", "configs/config.yaml"), "config file")
	scan := flag.Bool("scan", false, "scan the universe and add buy setups to the watchlist")
	daemon := flag.Bool("daemon", false, "keep running and evaluate on the configured cron schedule")
	force := flag.Bool("force", false, "evaluate even when the market is closed")
	flag.Parse()

	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339})

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	setupLogging(cfg)
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("config validation")
	}
	log.Info().Str("config", *cfgPath).Msg("KabuSentinel starting")

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cal, err := cfg.Calendar()
	if err != nil {
		log.Fatal().Err(err).Msg("calendar")
	}

	fetcher := newFetcher(cfg)
	log.Info().Str("source", fetcher.Name()).Msg("price source ready")
	col := collector.NewCollector(fetcher, cfg.DataSource.Plans)

	cd, closeCooldown := newCooldown(cfg)
	defer closeCooldown()

	sinks, telegram, closeSinks := newNotifier(cfg)
	defer closeSinks()

	rec := recorder.New(cfg.Database.Driver, cfg.Database.DSN)
	defer rec.Close()

	store := watchlist.NewFileStore(cfg.Watchlist.Path)
	src := cfg.SheetSource()
	uni := func(ctx context.Context) *universe.Universe {
		return universe.LoadOrDefault(ctx, nil, src, cfg.Tickers)
	}

	sched := scheduler.NewScheduler(col, cal, uni, store, cd, sinks, rec, scheduler.Options{
		Rules:  strategy.RuleSet(cfg.Strategy.DisabledRules),
		Params: cfg.Params,
		MaxAge: cfg.Watchlist.MaxAgeDays,
		Force:  *force,
	})

	switch {
	case *scan:
		added, err := sched.Scan(ctx, time.Now())
		if err != nil {
			log.Fatal().Err(err).Msg("scan")
		}
		log.Info().Strs("added", watchlist.Tickers(added)).Msg("scan complete")
	case *daemon:
		if err := sched.Register(ctx, cfg.Schedule.PassCron, cfg.Schedule.ScanCron); err != nil {
			log.Fatal().Err(err).Msg("register cron jobs")
		}
		sched.Start()
		if telegram != nil && cfg.Notify.Telegram.Commands {
			mgr := &watchlist.Manager{Store: store, Calendar: cal, MaxAge: cfg.Watchlist.MaxAgeDays}
			go telegram.Listen(ctx, sched.Commands(ctx, mgr))
		}
		log.Info().Str("pass_cron", cfg.Schedule.PassCron).Msg("KabuSentinel is running, press Ctrl+C to stop")
		<-ctx.Done()
		log.Info().Msg("shutdown signal received, stopping")
		sched.Stop()
	default:
		sched.RunOnce(ctx, time.Now())
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupLogging(cfg *config.Config) {
	level, err := zerolog.ParseLevel(cfg.Log.Level)
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	if cfg.Log.JSON {
		log.Logger = zerolog.New(os.Stderr).With().Timestamp().Logger()
	}
}

func newFetcher(cfg *config.Config) collector.Fetcher {
	switch cfg.DataSource.Kind {
	case "financego":
		return collector.NewFinanceGoFetcher()
	case "mock":
		return &collector.MockFetcher{Price: 2500}
	default:
		y := collector.NewYahooFetcher(cfg.Proxy, cfg.DataSource.RateLimit)
		if cfg.DataSource.BaseURL != "" {
			y.BaseURL = cfg.DataSource.BaseURL
		}
		return y
	}
}

func newCooldown(cfg *config.Config) (cooldown.Store, func()) {
	if cfg.Cooldown.RedisAddr == "" {
		return cooldown.NewMemoryStore(cfg.Cooldown.Window), func() {}
	}
	rs := cooldown.NewRedisStore(redis.NewClient(&redis.Options{
		Addr: cfg.Cooldown.RedisAddr,
		DB:   cfg.Cooldown.RedisDB,
	}), cfg.Cooldown.Window)
	log.Info().Str("addr", cfg.Cooldown.RedisAddr).Msg("cooldown shared through redis")
	return rs, func() { rs.Close() }
}

func newNotifier(cfg *config.Config) (notifier.Notifier, *notifier.TelegramNotifier, func()) {
	var (
		sinks    notifier.Multi
		telegram *notifier.TelegramNotifier
		closers  []func()
	)
	retry := func(n notifier.Notifier) notifier.Notifier {
		return notifier.WithRetry(n, cfg.Notify.MaxRetries, cfg.Notify.MaxElapsed)
	}
	if cfg.Notify.DiscordURL != "" {
		sinks = append(sinks, retry(notifier.NewDiscordNotifier(cfg.Notify.DiscordURL)))
	}
	if cfg.Notify.Telegram.BotToken != "" {
		tn, err := notifier.NewTelegramNotifier(cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID, cfg.Proxy)
		if err != nil {
			log.Error().Err(err).Msg("telegram disabled")
		} else {
			telegram = tn
			sinks = append(sinks, retry(tn))
		}
	}
	if len(cfg.Notify.Kafka.Brokers) > 0 {
		kn := notifier.NewKafkaNotifier(cfg.Notify.Kafka.Brokers, cfg.Notify.Kafka.Topic, "alerts")
		sinks = append(sinks, retry(kn))
		closers = append(closers, func() { kn.Close() })
	}
	if len(sinks) == 0 {
		log.Warn().Msg("no alert sink configured, reports are only logged")
		sinks = append(sinks, logNotifier{})
	}
	return sinks, telegram, func() {
		for _, c := range closers {
			c()
		}
	}
}

// logNotifier prints reports when no sink is configured.
type logNotifier struct{}

func (logNotifier) Name() string { return "log" }

func (logNotifier) Send(_ context.Context, text string) error {
	log.Info().Str("component", "notifier").Msg(text)
	return nil
}
