package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/0x6flab/namegenerator"
	"github.com/absmach/fedtree"
	"github.com/absmach/fedtree/api"
	"github.com/absmach/fedtree/cli"
	"github.com/absmach/fedtree/coordinator"
	"github.com/absmach/fedtree/pkg/channel"
	"github.com/absmach/fedtree/pkg/dispatch"
	"github.com/absmach/fedtree/pkg/mqtt"
	"github.com/absmach/fedtree/pkg/output"
	"github.com/absmach/fedtree/pkg/roleconf"
	"github.com/absmach/fedtree/pkg/store"
	"github.com/absmach/fedtree/pkg/supervisor"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

const (
	defaultMQTTTimeout = 30 * time.Second
	shutdownTimeout    = 10 * time.Second
)

var logLevel slog.Level

func main() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		sig := <-sigChan
		slog.Info("Received shutdown signal", slog.String("signal", sig.String()))
		cancel()
	}()

	a := &app{}
	err := newRootCmd(a).ExecuteContext(ctx)
	a.close()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

type app struct {
	cfgPath string
	cfg     *fedtree.Config
	logger  *slog.Logger
	st      store.Store
	closers []func()
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "fedtree",
		Short: "Coordinate the participants of FedTree distributed training jobs",
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := fedtree.LoadConfig(a.cfgPath)
			if err != nil {
				return fmt.Errorf("failed to load configuration: %w", err)
			}
			a.cfg = cfg
			a.logger = configureLogger(cfg.Log.Level)
			slog.SetDefault(a.logger)

			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&a.cfgPath, "config", "c", os.Getenv(fedtree.EnvPrefix+"CONFIG"), "Path to the TOML configuration file")

	root.AddCommand(
		cli.NewRunCmd(a.runRegistry, func() string { return a.cfg.Participant.ID }),
		cli.NewTranslateCmd(a.catalog),
		cli.NewResultCmd(a.queryStore),
		cli.NewServeCmd(a.serve),
	)

	return root
}

func configureLogger(level string) *slog.Logger {
	if err := logLevel.UnmarshalText([]byte(level)); err != nil {
		log.Printf("Invalid log level: %s. Defaulting to info.\n", level)
		logLevel = slog.LevelInfo
	}

	logHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})

	return slog.New(logHandler)
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}

func (a *app) catalog() roleconf.Catalog {
	return roleconf.NewStaticCatalog(a.cfg.Data.Dir, a.cfg.Data.Features)
}

func (a *app) redisClient(url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}
	client := redis.NewClient(opts)
	a.closers = append(a.closers, func() {
		if err := client.Close(); err != nil {
			a.logger.Error("failed to close redis client", slog.Any("error", err))
		}
	})

	return client, nil
}

func (a *app) store(ctx context.Context) (store.Store, error) {
	if a.st != nil {
		return a.st, nil
	}
	st, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	a.st = st

	return st, nil
}

func (a *app) openStore(ctx context.Context) (store.Store, error) {
	c := a.cfg.Store
	switch c.Backend {
	case fedtree.BackendRedis:
		if c.RedisURL == "" {
			return nil, errors.New("store.redis_url is required for the redis backend")
		}
		client, err := a.redisClient(c.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach store: %w", err)
		}

		prefix := c.Prefix
		if prefix == "" && a.cfg.Participant.ID != "" {
			prefix = store.DefaultPrefix + ":" + a.cfg.Participant.ID
		}

		return store.NewRedis(client, prefix, fedtree.Seconds(c.TTLS)), nil
	default:
		return store.NewMemory(), nil
	}
}

func (a *app) channels(ctx context.Context) (channel.Factory, error) {
	f, err := a.openChannels(ctx)
	if err != nil {
		return nil, err
	}
	if key := a.cfg.ChannelKey(); key != nil {
		return channel.SealedFactory(f, key), nil
	}

	return f, nil
}

func (a *app) openChannels(ctx context.Context) (channel.Factory, error) {
	c := a.cfg.Channel
	switch c.Backend {
	case fedtree.BackendMQTT:
		if c.MQTTURL == "" {
			return nil, errors.New("channel.mqtt_url is required for the mqtt backend")
		}
		timeout := fedtree.Seconds(c.MQTTTimeoutS)
		if timeout == 0 {
			timeout = defaultMQTTTimeout
		}
		ps, err := mqtt.NewPubSub(mqtt.Config{
			URL:      c.MQTTURL,
			QoS:      byte(c.MQTTQoS),
			ID:       fmt.Sprintf("fedtree-%s", namegenerator.NewGenerator().Generate()),
			Username: c.MQTTUsername,
			Password: c.MQTTPassword,
			Timeout:  timeout,
			CAPath:   c.MQTTCAPath,
			CertPath: c.MQTTCertPath,
			KeyPath:  c.MQTTKeyPath,
		}, a.logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MQTT broker: %w", err)
		}
		a.closers = append(a.closers, func() {
			if err := ps.Disconnect(context.Background()); err != nil {
				a.logger.Error("failed to disconnect from MQTT broker", slog.Any("error", err))
			}
		})

		return func(_ context.Context, jobID, self string) (channel.Channel, error) {
			return channel.NewMQTT(ps, jobID, self, a.logger), nil
		}, nil
	case fedtree.BackendRedis:
		if c.RedisURL == "" {
			return nil, errors.New("channel.redis_url is required for the redis backend")
		}
		client, err := a.redisClient(c.RedisURL)
		if err != nil {
			return nil, err
		}
		if err := client.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to reach channel broker: %w", err)
		}
		opts := channel.RedisOptions{
			KeyPrefix: c.RedisPrefix,
			TTL:       fedtree.Seconds(c.RedisTTLS),
			Poll:      fedtree.Seconds(c.RedisPollS),
		}

		return func(_ context.Context, jobID, self string) (channel.Channel, error) {
			return channel.NewRedis(client, jobID, self, opts), nil
		}, nil
	default:
		return channel.NewHub().Factory(), nil
	}
}

func (a *app) registry(ctx context.Context) (*dispatch.Registry, error) {
	st, err := a.store(ctx)
	if err != nil {
		return nil, err
	}
	channels, err := a.channels(ctx)
	if err != nil {
		return nil, err
	}

	normalizer := output.Normalizer{Marker: a.cfg.Output.Marker, Field: a.cfg.Output.Field}
	sup := supervisor.New(a.cfg.Protocol.TempDir, normalizer, a.logger)
	svc := coordinator.NewService(coordinator.Config{
		ServerBinary:      a.cfg.Binaries.Server,
		ClientBinary:      a.cfg.Binaries.Client,
		RendezvousTimeout: fedtree.Seconds(a.cfg.Protocol.RendezvousTimeoutS),
		CompletionTimeout: fedtree.Seconds(a.cfg.Protocol.CompletionTimeoutS),
		AdvertiseAddress:  a.cfg.Protocol.AdvertiseAddress,
	}, a.catalog(), channels, sup, st, a.logger)

	r := dispatch.NewRegistry()
	if err := svc.Register(r); err != nil {
		return nil, err
	}

	return r, nil
}

func (a *app) runRegistry(ctx context.Context) (*dispatch.Registry, error) {
	if err := a.cfg.CheckRun(); err != nil {
		return nil, err
	}

	return a.registry(ctx)
}

func (a *app) queryStore(ctx context.Context) (store.Store, error) {
	if err := a.cfg.CheckQuery(); err != nil {
		return nil, err
	}

	return a.store(ctx)
}

func (a *app) serve(ctx context.Context) error {
	st, err := a.store(ctx)
	if err != nil {
		return err
	}
	r, err := a.registry(ctx)
	if err != nil {
		return err
	}

	server := &http.Server{
		Addr:              a.cfg.HTTP.Addr,
		Handler:           api.MakeHandler(st, r.Names()),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("HTTP server started", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}

		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
