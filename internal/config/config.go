package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pion/stun/v3"
	"github.com/pion/webrtc/v4"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// 配置键，同时也是 YAML 配置文件中的字段名。
// 环境变量为 RELAY_ 前缀加大写键名，点号换成下划线，例如 RELAY_DISCOVERY_PORT
const (
	KeyAddr            = "addr"
	KeyPort            = "port"
	KeyWSPath          = "ws_path"
	KeyPingInterval    = "ping_interval"
	KeyWriteTimeout    = "write_timeout"
	KeyReadLimit       = "read_limit"
	KeySendBuffer      = "send_buffer"
	KeyHistoryCap      = "history_cap"
	KeyHistoryKeep     = "history_keep"
	KeyRateLimit       = "rate_limit"
	KeyRateBurst       = "rate_burst"
	KeyICEServers      = "ice_servers"
	KeyICEUsername     = "ice_username"
	KeyICECredential   = "ice_credential"
	KeyDiscoveryOn     = "discovery.enabled"
	KeyDiscoveryName   = "discovery.name"
	KeyDiscoveryPort   = "discovery.port"
	KeyDiscoveryEvery  = "discovery.interval"
	KeyLogLevel        = "log.level"
	KeyLogFormat       = "log.format"
	KeyShutdownTimeout = "shutdown_timeout"
)

const (
	EnvPrefix   = "RELAY"
	DefaultAddr = ":10000"
)

var ErrInvalid = errors.New("invalid config")

type Config struct {
	Addr            string
	WSPath          string
	PingInterval    time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	ReadLimit       int64
	SendBuffer      int
	HistoryCap      int
	HistoryKeep     int
	RateLimit       float64
	RateBurst       int
	ICEServers      []webrtc.ICEServer
	Discovery       Discovery
	Log             Log
}

// Discovery 局域网广播参数
type Discovery struct {
	Enabled  bool
	Name     string
	Port     int
	Interval time.Duration
}

type Log struct {
	Level  string
	Format string
}

// SetDefaults 写入全部默认值，并开启环境变量读取
func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyAddr, DefaultAddr)
	v.SetDefault(KeyWSPath, "/ws")
	v.SetDefault(KeyPingInterval, 30*time.Second)
	v.SetDefault(KeyWriteTimeout, 10*time.Second)
	v.SetDefault(KeyReadLimit, 512*1024)
	v.SetDefault(KeySendBuffer, 256)
	v.SetDefault(KeyHistoryCap, 1000)
	v.SetDefault(KeyHistoryKeep, 500)
	v.SetDefault(KeyRateLimit, 0)
	v.SetDefault(KeyRateBurst, 64)
	v.SetDefault(KeyICEServers, []string{})
	v.SetDefault(KeyDiscoveryOn, false)
	v.SetDefault(KeyDiscoveryName, "")
	v.SetDefault(KeyDiscoveryPort, 47815)
	v.SetDefault(KeyDiscoveryEvery, 3*time.Second)
	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "production")
	v.SetDefault(KeyShutdownTimeout, 5*time.Second)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 兼容 PaaS 平台注入的 PORT
	_ = v.BindEnv(KeyPort, "PORT")
}

// Load 从 viper 读取并校验配置
func Load(v *viper.Viper) (Config, error) {
	cfg := Config{
		Addr:            v.GetString(KeyAddr),
		WSPath:          v.GetString(KeyWSPath),
		PingInterval:    v.GetDuration(KeyPingInterval),
		WriteTimeout:    v.GetDuration(KeyWriteTimeout),
		ShutdownTimeout: v.GetDuration(KeyShutdownTimeout),
		ReadLimit:       v.GetInt64(KeyReadLimit),
		SendBuffer:      v.GetInt(KeySendBuffer),
		HistoryCap:      v.GetInt(KeyHistoryCap),
		HistoryKeep:     v.GetInt(KeyHistoryKeep),
		RateLimit:       v.GetFloat64(KeyRateLimit),
		RateBurst:       v.GetInt(KeyRateBurst),
		Discovery: Discovery{
			Enabled:  v.GetBool(KeyDiscoveryOn),
			Name:     v.GetString(KeyDiscoveryName),
			Port:     v.GetInt(KeyDiscoveryPort),
			Interval: v.GetDuration(KeyDiscoveryEvery),
		},
		Log: Log{
			Level:  v.GetString(KeyLogLevel),
			Format: v.GetString(KeyLogFormat),
		},
	}

	if port := strings.TrimSpace(v.GetString(KeyPort)); port != "" && cfg.Addr == DefaultAddr {
		cfg.Addr = ":" + port
	}
	if !strings.HasPrefix(cfg.WSPath, "/") {
		cfg.WSPath = "/" + cfg.WSPath
	}

	servers, err := ParseICEServers(
		v.GetStringSlice(KeyICEServers),
		v.GetString(KeyICEUsername),
		v.GetString(KeyICECredential),
	)
	if err != nil {
		return Config{}, err
	}
	cfg.ICEServers = servers

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: %s is empty", ErrInvalid, KeyAddr)
	case c.PingInterval <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyPingInterval)
	case c.WriteTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyWriteTimeout)
	case c.ShutdownTimeout <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyShutdownTimeout)
	case c.ReadLimit <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeyReadLimit)
	case c.SendBuffer <= 0:
		return fmt.Errorf("%w: %s must be positive", ErrInvalid, KeySendBuffer)
	case c.HistoryKeep <= 0 || c.HistoryKeep >= c.HistoryCap:
		return fmt.Errorf("%w: need 0 < %s < %s", ErrInvalid, KeyHistoryKeep, KeyHistoryCap)
	case c.RateLimit < 0:
		return fmt.Errorf("%w: %s must not be negative", ErrInvalid, KeyRateLimit)
	case c.RateLimit > 0 && c.RateBurst <= 0:
		return fmt.Errorf("%w: %s must be positive when rate limiting", ErrInvalid, KeyRateBurst)
	case c.Discovery.Enabled && (c.Discovery.Port <= 0 || c.Discovery.Interval <= 0):
		return fmt.Errorf("%w: discovery needs a port and a positive interval", ErrInvalid)
	}
	return nil
}

// ParseICEServers 把 URL 列表转换为 ICE 服务器配置。
// 每一项可以是逗号分隔的多个 URL；TURN 地址需要用户名和密码
func ParseICEServers(entries []string, username, credential string) ([]webrtc.ICEServer, error) {
	servers := []webrtc.ICEServer{}
	for _, entry := range entries {
		for _, raw := range strings.Split(entry, ",") {
			raw = strings.TrimSpace(raw)
			if raw == "" {
				continue
			}
			uri, err := stun.ParseURI(raw)
			if err != nil {
				return nil, fmt.Errorf("%w: ice server %q: %v", ErrInvalid, raw, err)
			}

			server := webrtc.ICEServer{URLs: []string{raw}}
			if uri.Scheme == stun.SchemeTypeTURN || uri.Scheme == stun.SchemeTypeTURNS {
				if username == "" || credential == "" {
					return nil, fmt.Errorf("%w: turn server %q needs %s and %s", ErrInvalid, raw, KeyICEUsername, KeyICECredential)
				}
				server.Username = username
				server.Credential = credential
			}
			servers = append(servers, server)
		}
	}
	return servers, nil
}

// NewLogger 按级别与格式构造 zap logger，format 为 production（JSON）或 development（控制台）
func NewLogger(level, format string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("%w: log level: %v", ErrInvalid, err)
	}

	var zc zap.Config
	switch format {
	case "", "production", "json":
		zc = zap.NewProductionConfig()
	case "development", "console":
		zc = zap.NewDevelopmentConfig()
	default:
		return nil, fmt.Errorf("%w: unknown log format %q", ErrInvalid, format)
	}
	zc.Level = zap.NewAtomicLevelAt(lvl)
	return zc.Build()
}
