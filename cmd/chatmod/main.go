package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mychatmanager/chatmod/util/cliutil"

	"github.com/carlmjohnson/versioninfo"
	_ "github.com/joho/godotenv/autoload"
	cli "github.com/urfave/cli/v2"
)

func main() {
	if err := run(os.Args); err != nil {
		slog.Error("exiting", "err", err)
		os.Exit(-1)
	}
}

func run(args []string) error {

	app := cli.App{
		Name:    "chatmod",
		Usage:   "group chat moderation daemon (spam, flood, escalation)",
		Version: versioninfo.Short(),
	}

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    "log-level",
			Usage:   "log verbosity level (eg: warn, info, debug)",
			EnvVars: []string{"CHATMOD_LOG_LEVEL", "LOG_LEVEL"},
		},
		&cli.StringFlag{
			Name:    "log-format",
			Usage:   "log output format (text or json)",
			EnvVars: []string{"CHATMOD_LOG_FMT", "LOG_FMT"},
		},
		&cli.IntFlag{
			Name:    "max-db-connections",
			EnvVars: []string{"MAX_DB_CONNECTIONS"},
			Value:   40,
		},
	}

	app.Commands = []*cli.Command{
		runCmd,
	}

	return app.Run(args)
}

var runCmd = &cli.Command{
	Name:  "run",
	Usage: "run the service",
	Flags: []cli.Flag{
		&cli.StringFlag{
			Name:    "database-url",
			Usage:   "database for chat settings and the audit log (sqlite or postgres); empty for in-memory settings",
			Value:   "sqlite://data/chatmod/chatmod.db",
			EnvVars: []string{"DATABASE_URL"},
		},
		&cli.BoolFlag{
			Name:    "db-tracing",
			Usage:   "enable OTEL tracing of database queries",
			EnvVars: []string{"CHATMOD_DB_TRACING"},
		},
		&cli.StringFlag{
			Name:    "redis-url",
			Usage:   "redis connection URL for shared moderation state",
			EnvVars: []string{"CHATMOD_REDIS_URL"},
		},
		&cli.StringFlag{
			Name:    "kafka-brokers",
			Usage:   "comma-separated list of kafka brokers to relay moderation events to",
			EnvVars: []string{"CHATMOD_KAFKA_BROKERS"},
		},
		&cli.StringFlag{
			Name:    "kafka-topic",
			Value:   "chatmod-events",
			EnvVars: []string{"CHATMOD_KAFKA_TOPIC"},
		},
		&cli.StringFlag{
			Name:    "relay-redis-channel",
			Usage:   "redis pub/sub channel to relay moderation events to (requires redis-url)",
			EnvVars: []string{"CHATMOD_RELAY_REDIS_CHANNEL"},
		},
		&cli.StringFlag{
			Name:    "platform-host",
			Usage:   "method, hostname, and port of the chat platform bot API",
			Value:   "https://api.telegram.org",
			EnvVars: []string{"CHATMOD_PLATFORM_HOST"},
		},
		&cli.StringFlag{
			Name:    "platform-token",
			Usage:   "bot API token for the chat platform",
			EnvVars: []string{"CHATMOD_PLATFORM_TOKEN", "BOT_TOKEN"},
		},
		&cli.Float64Flag{
			Name:    "platform-rate-limit",
			Usage:   "max requests per second to the chat platform",
			Value:   30,
			EnvVars: []string{"CHATMOD_PLATFORM_RATE_LIMIT"},
		},
		&cli.BoolFlag{
			Name:    "readonly",
			Usage:   "only log enforcement actions, without calling the chat platform",
			EnvVars: []string{"CHATMOD_READONLY", "READONLY"},
		},
		&cli.StringFlag{
			Name:    "sets-json",
			Usage:   "file path of JSON file containing the global blacklist",
			EnvVars: []string{"CHATMOD_SETS_JSON"},
		},
		&cli.StringFlag{
			Name:    "slack-webhook-url",
			Usage:   "full URL of slack webhook for ban and kick notifications",
			EnvVars: []string{"SLACK_WEBHOOK_URL"},
		},
		&cli.StringFlag{
			Name:    "admin-token",
			Usage:   "bearer token required on admin API requests",
			EnvVars: []string{"CHATMOD_ADMIN_TOKEN"},
		},
		&cli.DurationFlag{
			Name:    "policy-cache-ttl",
			Value:   cliDefaults.PolicyCacheTTL,
			EnvVars: []string{"CHATMOD_POLICY_CACHE_TTL"},
		},
		&cli.DurationFlag{
			Name:    "lock-timeout",
			Usage:   "max wait for the per-member lock before a message is skipped",
			Value:   cliDefaults.LockTimeout,
			EnvVars: []string{"CHATMOD_LOCK_TIMEOUT"},
		},
		&cli.IntFlag{
			Name:    "bus-capacity",
			Value:   cliDefaults.BusCapacity,
			EnvVars: []string{"CHATMOD_BUS_CAPACITY"},
		},
		&cli.DurationFlag{
			Name:    "bus-enqueue-timeout",
			Value:   cliDefaults.BusEnqueueTimeout,
			EnvVars: []string{"CHATMOD_BUS_ENQUEUE_TIMEOUT"},
		},
		&cli.DurationFlag{
			Name:    "shutdown-grace",
			Usage:   "max time to finish in-flight messages and drain events on shutdown",
			Value:   cliDefaults.ShutdownGrace,
			EnvVars: []string{"CHATMOD_SHUTDOWN_GRACE"},
		},
		&cli.StringFlag{
			Name:    "bind",
			Usage:   "IP or address, and port, to listen on for HTTP APIs",
			Value:   ":3990",
			EnvVars: []string{"CHATMOD_BIND"},
		},
		&cli.StringFlag{
			Name:    "metrics-listen",
			Usage:   "IP or address, and port, to listen on for metrics APIs",
			Value:   ":3991",
			EnvVars: []string{"CHATMOD_METRICS_LISTEN"},
		},
	},
	Action: func(cctx *cli.Context) error {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		logger, err := cliutil.SetupSlog(cliutil.LogOptions{
			LogLevel:  cctx.String("log-level"),
			LogFormat: cctx.String("log-format"),
		})
		if err != nil {
			return err
		}

		shutdownOTEL := configOTEL("chatmod")
		defer shutdownOTEL()

		var brokers []string
		if s := cctx.String("kafka-brokers"); s != "" {
			for _, b := range strings.Split(s, ",") {
				if b = strings.TrimSpace(b); b != "" {
					brokers = append(brokers, b)
				}
			}
		}

		srv, err := NewServer(Config{
			Logger:            logger,
			DatabaseURL:       cctx.String("database-url"),
			MaxDBConnections:  cctx.Int("max-db-connections"),
			DBTracing:         cctx.Bool("db-tracing"),
			RedisURL:          cctx.String("redis-url"),
			KafkaBrokers:      brokers,
			KafkaTopic:        cctx.String("kafka-topic"),
			RelayRedisChannel: cctx.String("relay-redis-channel"),
			PlatformHost:      cctx.String("platform-host"),
			PlatformToken:     cctx.String("platform-token"),
			PlatformRateLimit: cctx.Float64("platform-rate-limit"),
			ReadOnly:          cctx.Bool("readonly"),
			SetsFileJSON:      cctx.String("sets-json"),
			SlackWebhookURL:   cctx.String("slack-webhook-url"),
			AdminToken:        cctx.String("admin-token"),
			PolicyCacheTTL:    cctx.Duration("policy-cache-ttl"),
			LockTimeout:       cctx.Duration("lock-timeout"),
			BusCapacity:       cctx.Int("bus-capacity"),
			BusEnqueueTimeout: cctx.Duration("bus-enqueue-timeout"),
			ShutdownGrace:     cctx.Duration("shutdown-grace"),
			Bind:              cctx.String("bind"),
		})
		if err != nil {
			return err
		}

		go func() {
			if err := srv.RunMetrics(cctx.String("metrics-listen")); err != nil {
				slog.Error("failed to start metrics endpoint", "error", err)
				panic(fmt.Errorf("failed to start metrics endpoint: %w", err))
			}
		}()

		if err := srv.Run(ctx); err != nil {
			return fmt.Errorf("failed to run chatmod service: %w", err)
		}
		return nil
	},
}
