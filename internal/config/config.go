package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the root server configuration
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Logging  LoggingConfig  `mapstructure:"logging"`
	Game     GameConfig     `mapstructure:"game"`
	Database DatabaseConfig `mapstructure:"database"`
}

// ServerConfig groups the listener settings
type ServerConfig struct {
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	GRPC      GRPCConfig      `mapstructure:"grpc"`
}

// WebSocketConfig configures the player-facing WebSocket endpoint
type WebSocketConfig struct {
	Address         string        `mapstructure:"address"`
	Path            string        `mapstructure:"path"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
	MaxMessageSize  int64         `mapstructure:"max_message_size"`
	WriteWait       time.Duration `mapstructure:"write_wait"`
	PongWait        time.Duration `mapstructure:"pong_wait"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	SendBuffer      int           `mapstructure:"send_buffer"`
}

// GRPCConfig configures the admin gRPC listener (health + reflection).
// An empty address disables it.
type GRPCConfig struct {
	Address string `mapstructure:"address"`
}

// LoggingConfig configures zap
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// GameConfig holds the battle and match rules
type GameConfig struct {
	CardPoolSize   int           `mapstructure:"card_pool_size"`
	WinThreshold   int           `mapstructure:"win_threshold"`
	TurnDelay      time.Duration `mapstructure:"turn_delay"`
	CritThreshold  float64       `mapstructure:"crit_threshold"`
	MissThreshold  float64       `mapstructure:"miss_threshold"`
	CritMultiplier float64       `mapstructure:"crit_multiplier"`
}

// DatabaseConfig configures the optional match history store.
// An empty URL keeps history in memory only.
type DatabaseConfig struct {
	URL           string        `mapstructure:"url"`
	MaxConns      int32         `mapstructure:"max_conns"`
	RecordTimeout time.Duration `mapstructure:"record_timeout"`
}

// EnvPrefix is prepended to environment overrides, e.g. CARDBATTLE_GAME_WIN_THRESHOLD.
const EnvPrefix = "CARDBATTLE"

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.websocket.address", ":8080")
	v.SetDefault("server.websocket.path", "/ws")
	v.SetDefault("server.websocket.read_buffer_size", 1024)
	v.SetDefault("server.websocket.write_buffer_size", 1024)
	v.SetDefault("server.websocket.max_message_size", 64*1024)
	v.SetDefault("server.websocket.write_wait", 10*time.Second)
	v.SetDefault("server.websocket.pong_wait", 60*time.Second)
	v.SetDefault("server.websocket.ping_period", 54*time.Second)
	v.SetDefault("server.websocket.send_buffer", 256)

	v.SetDefault("server.grpc.address", "")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")

	v.SetDefault("game.card_pool_size", 3)
	v.SetDefault("game.win_threshold", 3)
	v.SetDefault("game.turn_delay", time.Second)
	v.SetDefault("game.crit_threshold", 0.9)
	v.SetDefault("game.miss_threshold", 0.9)
	v.SetDefault("game.crit_multiplier", 1.3)

	v.SetDefault("database.url", "")
	v.SetDefault("database.max_conns", 4)
	v.SetDefault("database.record_timeout", 5*time.Second)
}

// Default returns the configuration used when no file or environment overrides exist.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	cfg := &Config{}
	// Defaults always decode.
	_ = v.Unmarshal(cfg)
	return cfg
}

// Load reads configuration from path (optional) and the environment.
// A missing file is not an error; defaults and env still apply.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise break the game loop
func (c *Config) Validate() error {
	if c.Server.WebSocket.Address == "" {
		return fmt.Errorf("server.websocket.address is required")
	}
	if !strings.HasPrefix(c.Server.WebSocket.Path, "/") {
		return fmt.Errorf("server.websocket.path must start with '/': %q", c.Server.WebSocket.Path)
	}
	if c.Server.WebSocket.PingPeriod >= c.Server.WebSocket.PongWait {
		return fmt.Errorf("server.websocket.ping_period (%s) must be shorter than pong_wait (%s)",
			c.Server.WebSocket.PingPeriod, c.Server.WebSocket.PongWait)
	}
	if c.Server.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("server.websocket.send_buffer must be positive")
	}

	g := c.Game
	if g.CardPoolSize <= 0 {
		return fmt.Errorf("game.card_pool_size must be positive")
	}
	if g.WinThreshold <= 0 {
		return fmt.Errorf("game.win_threshold must be positive")
	}
	if g.TurnDelay < 0 {
		return fmt.Errorf("game.turn_delay must not be negative")
	}
	if g.CritThreshold < 0 || g.CritThreshold > 1 {
		return fmt.Errorf("game.crit_threshold must be within [0,1]: %v", g.CritThreshold)
	}
	if g.MissThreshold < 0 || g.MissThreshold > 1 {
		return fmt.Errorf("game.miss_threshold must be within [0,1]: %v", g.MissThreshold)
	}
	if g.CritMultiplier < 1 {
		return fmt.Errorf("game.crit_multiplier must be at least 1: %v", g.CritMultiplier)
	}
	return nil
}
