package cmd

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"live-relay/internal/config"
	"live-relay/internal/liveness"
	"live-relay/internal/server"
	"live-relay/internal/stats"
	"live-relay/pkg/discovery"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:           "relay",
	Short:         "WebRTC signaling relay for one-to-many live video",
	Long:          "relay 在推流端、观众和控制端之间转发 WebRTC 信令，并提供房间级的直播控制（开播、广告、字幕）。媒体数据不经过本服务。",
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			return err
		}
		logger, err := config.NewLogger(cfg.Log.Level, cfg.Log.Format)
		if err != nil {
			return err
		}
		defer logger.Sync()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return serve(ctx, cfg, logger)
	},
}

// Execute 由 main.main 调用
func Execute() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "relay:", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml)")

	flags := rootCmd.Flags()
	flags.String("addr", config.DefaultAddr, "HTTP listen address")
	flags.String("ws-path", "/ws", "WebSocket endpoint path")
	flags.Duration("ping-interval", 0, "liveness probe interval")
	flags.Float64("rate-limit", 0, "inbound frames per second per connection, 0 disables")
	flags.StringSlice("ice-server", nil, "STUN/TURN url served on /ice-servers (repeatable)")
	flags.Bool("discovery", false, "broadcast the relay address on the LAN")
	flags.String("log-level", "", "debug, info, warn or error")
	flags.String("log-format", "", "production or development")

	bind := map[string]string{
		config.KeyAddr:         "addr",
		config.KeyWSPath:       "ws-path",
		config.KeyPingInterval: "ping-interval",
		config.KeyRateLimit:    "rate-limit",
		config.KeyICEServers:   "ice-server",
		config.KeyDiscoveryOn:  "discovery",
		config.KeyLogLevel:     "log-level",
		config.KeyLogFormat:    "log-format",
	}
	for key, name := range bind {
		viper.BindPFlag(key, flags.Lookup(name))
	}

	config.SetDefaults(viper.GetViper())
}

// initConfig 读取配置文件，文件不存在时只使用默认值、参数和环境变量
func initConfig() {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			viper.AddConfigPath(home)
		}
		viper.SetConfigType("yaml")
		viper.SetConfigName(".relay")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			fmt.Fprintln(os.Stderr, "Error reading config file:", err)
		}
	}
}

func serve(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	ledger := stats.NewLedger(stats.WithLimits(cfg.HistoryCap, cfg.HistoryKeep))
	router := server.NewRouter(server.NewRegistry(), ledger, logger.Named("router"))
	supervisor := liveness.New(cfg.PingInterval, logger.Named("liveness"))
	srv := server.NewServer(router, supervisor, server.Options{
		WriteTimeout: cfg.WriteTimeout,
		ReadLimit:    cfg.ReadLimit,
		SendBuffer:   cfg.SendBuffer,
		RateLimit:    cfg.RateLimit,
		RateBurst:    cfg.RateBurst,
		ICEServers:   cfg.ICEServers,
	}, logger)

	addr, shutdown, err := server.StartHTTPServer(cfg.Addr, srv.Handler(cfg.WSPath), cfg.ShutdownTimeout, logger)
	if err != nil {
		return fmt.Errorf("listen %s: %w", cfg.Addr, err)
	}
	logger.Info("signaling server listening",
		zap.String("addr", addr),
		zap.String("ws_path", cfg.WSPath),
		zap.Duration("ping_interval", cfg.PingInterval),
		zap.Int("ice_servers", len(cfg.ICEServers)),
	)

	go srv.Run(ctx)

	if cfg.Discovery.Enabled {
		go startBeacon(ctx, cfg, addr, logger)
	}

	<-ctx.Done()
	logger.Info("shutting down")
	srv.CloseAll()
	shutdown()
	return nil
}

func startBeacon(ctx context.Context, cfg config.Config, listenAddr string, logger *zap.Logger) {
	_, portStr, err := net.SplitHostPort(listenAddr)
	if err != nil {
		logger.Warn("discovery disabled", zap.Error(err))
		return
	}
	port, _ := strconv.Atoi(portStr)

	host := discovery.LocalIPv4()
	if host == "" {
		logger.Warn("discovery disabled: no LAN IPv4 address")
		return
	}

	beacon := discovery.Beacon{
		Announcement: discovery.Announcement{
			Name: cfg.Discovery.Name,
			Host: host,
			Port: port,
			Path: cfg.WSPath,
		},
		Target:   net.JoinHostPort(net.IPv4bcast.String(), strconv.Itoa(cfg.Discovery.Port)),
		Interval: cfg.Discovery.Interval,
	}
	logger.Info("discovery beacon started", zap.String("url", beacon.SignalURL()), zap.Int("port", cfg.Discovery.Port))
	if err := beacon.Run(ctx); err != nil {
		logger.Warn("discovery beacon stopped", zap.Error(err))
	}
}
