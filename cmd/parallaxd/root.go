package main

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/cometbft/cometbft/abci/server"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/polluterofminds/parallax-contract/internal/app"
	"github.com/polluterofminds/parallax-contract/internal/config"
	"github.com/polluterofminds/parallax-contract/internal/events"
	"github.com/polluterofminds/parallax-contract/internal/metrics"
	"github.com/polluterofminds/parallax-contract/internal/state"
	"github.com/polluterofminds/parallax-contract/internal/store"
)

// NewRootCmd creates the parallaxd command tree.
func NewRootCmd() *cobra.Command {
	v := viper.New()
	config.SetDefaults(v)

	rootCmd := &cobra.Command{
		Use:           "parallaxd",
		Short:         "Parallax case ledger (CometBFT ABCI application)",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().String(config.KeyHome, config.DefaultConfig().Home, "node home directory (state under <home>/data, config under <home>/config)")
	_ = v.BindPFlag(config.KeyHome, rootCmd.PersistentFlags().Lookup(config.KeyHome))

	rootCmd.AddCommand(
		newStartCmd(v),
		newGenesisCmd(),
		newKeygenCmd(),
	)
	return rootCmd
}

func newStartCmd(v *viper.Viper) *cobra.Command {
	d := config.DefaultConfig()
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the ABCI server",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(v)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runNode(ctx, cfg)
		},
	}

	f := cmd.Flags()
	f.String(config.KeyABCIAddr, d.ABCIAddr, "ABCI listen address")
	f.String(config.KeyTransport, d.Transport, "ABCI transport (socket|grpc)")
	f.String(config.KeyLogLevel, d.LogLevel, "log level (trace|debug|info|warn|error)")
	f.String(config.KeyLogFormat, d.LogFormat, "log format (text|json)")
	f.String(config.KeyRedisAddr, d.RedisAddr, "Redis address for event publishing (empty disables)")
	f.String(config.KeyRedisPassword, d.RedisPassword, "Redis password")
	f.Int(config.KeyRedisDB, d.RedisDB, "Redis database")
	f.String(config.KeyEventChannel, d.EventChannel, "Redis channel prefix for ledger events")
	f.String(config.KeyMetricsAddr, d.MetricsAddr, "Prometheus listen address, e.g. :9102 (empty disables)")
	_ = v.BindPFlags(f)
	return cmd
}

func runNode(ctx context.Context, cfg config.Config) error {
	logger, err := cfg.Logger()
	if err != nil {
		return err
	}
	log.SetLevel(logger.GetLevel())
	log.SetFormatter(logger.Formatter)
	entry := logger.WithField("module", "parallax")

	db, err := store.Open(cfg.DataDir())
	if err != nil {
		return err
	}
	defer db.Close()

	opts := []app.Option{app.WithLogger(entry)}

	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			_ = client.Close()
			return fmt.Errorf("connect redis %s: %w", cfg.RedisAddr, err)
		}
		pub, err := events.NewRedisPublisher(client, cfg.EventChannel)
		if err != nil {
			return err
		}
		defer pub.Close()
		opts = append(opts, app.WithPublisher(pub))
		entry.WithField("addr", cfg.RedisAddr).Info("publishing ledger events to redis")
	}

	if cfg.MetricsAddr != "" {
		opts = append(opts, app.WithMetrics(metrics.New(prometheus.DefaultRegisterer)))
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.Handler())
		metricsServer := &http.Server{Addr: cfg.MetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			entry.WithField("addr", cfg.MetricsAddr).Info("starting metrics server")
			if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				entry.WithError(err).Error("metrics server failed")
			}
		}()
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = metricsServer.Shutdown(shutdownCtx)
		}()
	}

	a, err := app.New(db, opts...)
	if err != nil {
		return fmt.Errorf("init app: %w", err)
	}

	srv, err := server.NewServer(cfg.ABCIAddr, cfg.Transport, a)
	if err != nil {
		return fmt.Errorf("create abci server: %w", err)
	}
	if err := srv.Start(); err != nil {
		return fmt.Errorf("abci server start: %w", err)
	}
	defer func() { _ = srv.Stop() }()

	entry.WithFields(log.Fields{
		"addr":      cfg.ABCIAddr,
		"transport": cfg.Transport,
		"home":      cfg.Home,
	}).Info("parallaxd started")

	<-ctx.Done()
	entry.Info("shutting down")
	return nil
}

func newGenesisCmd() *cobra.Command {
	var (
		operator    string
		operatorKey string
	)
	p := state.DefaultParams()
	cmd := &cobra.Command{
		Use:   "genesis",
		Short: "Print a genesis app_state for CometBFT's genesis.json",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, err := base64.StdEncoding.DecodeString(operatorKey)
			if err != nil {
				return fmt.Errorf("operator-pubkey: %w", err)
			}
			g := state.DefaultGenesis(operator)
			g.Params = p
			g.Accounts = []state.GenesisAccount{{Address: operator, PubKey: pub}}
			if err := g.Validate(); err != nil {
				return err
			}
			b, err := json.MarshalIndent(g, "", "  ")
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), string(b))
			return err
		},
	}
	f := cmd.Flags()
	f.StringVar(&operator, "operator", "", "operator principal")
	f.StringVar(&operatorKey, "operator-pubkey", "", "operator ed25519 public key (base64)")
	f.StringVar(&p.Denom, "denom", p.Denom, "settlement denomination")
	f.Uint64Var(&p.EntryFee, "entry-fee", p.EntryFee, "entry fee per case")
	f.Uint64Var(&p.ExtraSolutionFee, "extra-fee", p.ExtraSolutionFee, "fee per extra solution attempt")
	f.Uint32Var(&p.CommissionPercent, "commission", p.CommissionPercent, "operator commission percent")
	_ = cmd.MarkFlagRequired("operator")
	_ = cmd.MarkFlagRequired("operator-pubkey")
	return cmd
}

func newKeygenCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keygen",
		Short: "Generate an ed25519 key pair for signing txs",
		RunE: func(cmd *cobra.Command, _ []string) error {
			pub, priv, err := ed25519.GenerateKey(rand.Reader)
			if err != nil {
				return err
			}
			out := map[string]string{
				"pubKey":  base64.StdEncoding.EncodeToString(pub),
				"privKey": base64.StdEncoding.EncodeToString(priv),
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(out); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.ErrOrStderr(), "keep privKey secret; register pubKey via genesis or auth/register_account")
			return err
		},
	}
}
