package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/wattlebot/wattle"
	"github.com/wattlebot/wattle/pkg/adapters/httpchannel"
	"github.com/wattlebot/wattle/pkg/adapters/memory"
	redisadapter "github.com/wattlebot/wattle/pkg/adapters/redis"
	"github.com/wattlebot/wattle/pkg/observability"
	"github.com/wattlebot/wattle/pkg/plugin"
	"github.com/wattlebot/wattle/pkg/plugin/llm"
	"github.com/wattlebot/wattle/pkg/plugin/script"
	"github.com/wattlebot/wattle/pkg/session/middleware"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP event server",
	Long:  `Starts the engine in server mode, exposing the event and session APIs as JSON over HTTP. With --redis-addr set, sessions and turn locks live in Redis so multiple replicas can share subscribers.`,
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config-file", "", "Path to config file")
	serveCmd.Flags().StringP("addr", "a", ":8080", "HTTP listen address")
	serveCmd.Flags().String("redis-addr", "", "Redis host:port; empty keeps sessions in memory")
	serveCmd.Flags().String("redis-password", "", "Redis password")
	serveCmd.Flags().Int("redis-db", 0, "Redis database number")
	serveCmd.Flags().Duration("session-ttl", 0, "Session expiry when using Redis (0 keeps sessions forever)")
	serveCmd.Flags().String("fallback-block", "", "Block executed when nothing matches")
	serveCmd.Flags().StringSlice("fallback-text", nil, "Messages sent when nothing matches")
	serveCmd.Flags().Int("max-chain-depth", 0, "Cap on attached block chains (0 uses the default)")
	serveCmd.Flags().Duration("plugin-timeout", 0, "Per-call plugin deadline (0 uses the default)")
	serveCmd.Flags().StringSlice("redact", nil, "Variable name patterns masked before sessions are persisted")
	serveCmd.Flags().String("session-key", "", "Hex-encoded 32-byte AES key; encrypts sessions at rest")

	cobra.CheckErr(viper.BindPFlags(serveCmd.Flags()))
}

func runServe(cmd *cobra.Command, args []string) error {
	if file := viper.GetString("config-file"); file != "" {
		viper.SetConfigFile(file)
		if err := viper.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return fmt.Errorf("reading config: %w", err)
			}
		}
	}

	logger := newLogger(cmd)
	flowPath, _ := cmd.Flags().GetString("flow")

	metrics := observability.NewMetrics(prometheus.DefaultRegisterer)
	content := memory.NewContentStore()

	opts := []wattle.Option{
		wattle.WithLogger(logger),
		wattle.WithContentStore(content),
		wattle.WithLifecycleHooks(metrics.Hooks()),
		wattle.WithPlugins(llm.New(content, llm.WithLogger(logger)), script.New()),
	}

	var redisClient *goredis.Client
	if addr := viper.GetString("redis-addr"); addr != "" {
		redisClient = goredis.NewClient(&goredis.Options{
			Addr:     addr,
			Password: viper.GetString("redis-password"),
			DB:       viper.GetInt("redis-db"),
		})
		defer redisClient.Close()

		var storeOpts []redisadapter.Option
		if ttl := viper.GetDuration("session-ttl"); ttl > 0 {
			storeOpts = append(storeOpts, redisadapter.WithTTL(ttl))
		}
		opts = append(opts,
			wattle.WithSessionStore(redisadapter.NewFromClient(redisClient, storeOpts...)),
			wattle.WithDistributedLocker(redisadapter.NewLocker(redisClient, "wattle:")),
		)
	}

	var storeMws []middleware.Middleware
	if patterns := viper.GetStringSlice("redact"); len(patterns) > 0 {
		storeMws = append(storeMws, middleware.NewRedaction(patterns))
	}
	if keyHex := viper.GetString("session-key"); keyHex != "" {
		key, err := hex.DecodeString(keyHex)
		if err != nil || len(key) != 32 {
			return fmt.Errorf("session-key must be 64 hex characters (32 bytes)")
		}
		storeMws = append(storeMws, middleware.NewEncryption(middleware.EncryptionConfig{ActiveKey: key}))
	}
	if len(storeMws) > 0 {
		opts = append(opts, wattle.WithSessionMiddleware(storeMws...))
	}

	if block := viper.GetString("fallback-block"); block != "" {
		opts = append(opts, wattle.WithGlobalFallbackBlock(block))
	}
	if texts := viper.GetStringSlice("fallback-text"); len(texts) > 0 {
		opts = append(opts, wattle.WithGlobalFallbackTexts(texts...))
	}
	if depth := viper.GetInt("max-chain-depth"); depth > 0 {
		opts = append(opts, wattle.WithMaxChainDepth(depth))
	}
	if timeout := viper.GetDuration("plugin-timeout"); timeout > 0 {
		opts = append(opts, wattle.WithPluginTimeout(plugin.WithTimeout(timeout)))
	}

	engine, err := wattle.New(flowPath, opts...)
	if err != nil {
		return fmt.Errorf("initializing engine: %w", err)
	}

	handler := httpchannel.NewHandler(engine, engine.Sessions(),
		httpchannel.WithLogger(logger),
		httpchannel.WithMetrics(promhttp.Handler()),
	)

	srv := &http.Server{
		Addr:    viper.GetString("addr"),
		Handler: handler,
	}

	// Channel to listen for errors coming from the listener.
	serverErrors := make(chan error, 1)

	go func() {
		logger.Info("server listening", "addr", srv.Addr, "flow", flowPath)
		serverErrors <- srv.ListenAndServe()
	}()

	// Channel to listen for interrupt or terminate signals.
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		logger.Info("starting shutdown", "signal", sig.String())

		// Give outstanding requests a deadline for completion.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("graceful shutdown did not complete", "err", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("killing server: %w", err)
			}
		}
		logger.Info("server stopped")
	}

	return nil
}
