package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/noah-isme/runar/internal/models"
)

// Config holds runtime configuration values for a session process.
type Config struct {
	AppName              string
	AppPort              string
	LogLevel             string
	UserID               string
	Role                 string
	Users                []models.User
	SettingsNamespace    string
	SettingsBackend      string
	DatabaseURL          string
	RedisURL             string
	NATSURL              string
	PebblePath           string
	TransportDriver      string
	TransportChannel     string
	TransportCodec       string
	PinsMode             string
	TypingStaleAfter     time.Duration
	TypingThrottle       time.Duration
	TypingIdleTimeout    time.Duration
	MonitorCapacity      int
	JWTSecret            string
	CORSAllowOrigins     string
	DesktopNotifications bool
	SoundEnabled         bool
	SoundPath            string
	SoundVolume          float64
}

// HTTPAddress returns the address the HTTP server should listen on.
func (c Config) HTTPAddress() string {
	if strings.HasPrefix(c.AppPort, ":") {
		return c.AppPort
	}

	return fmt.Sprintf(":%s", c.AppPort)
}

// IsPrivileged reports whether the session runs with the gm role.
func (c Config) IsPrivileged() bool {
	return c.Role == models.RoleGM
}

// Load reads configuration from the command line, environment variables, an optional .env file
// and an optional config file.
func Load() (Config, error) {
	return LoadArgs(os.Args[1:])
}

// LoadArgs is Load with explicit command-line arguments.
func LoadArgs(args []string) (Config, error) {
	_ = godotenv.Load()

	flags := pflag.NewFlagSet("runar", pflag.ContinueOnError)
	configFile := flags.String("config", "", "path to a YAML config file")
	flags.String("user", "", "session user id")
	flags.String("role", "", "session role (gm or player)")
	flags.String("port", "", "local API port")
	if err := flags.Parse(args); err != nil {
		return Config{}, fmt.Errorf("parse flags: %w", err)
	}

	v := viper.New()
	v.SetEnvPrefix("RUNAR")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "runar")
	v.SetDefault("app.port", "8080")
	v.SetDefault("log.level", "info")
	v.SetDefault("settings.namespace", "ragnaroks-runar")
	v.SetDefault("settings.backend", "sqlite")
	v.SetDefault("database.url", "file:runar.db?cache=shared")
	v.SetDefault("pebble.path", "data/settings")
	v.SetDefault("transport.driver", "redis")
	v.SetDefault("transport.channel", "module.ragnaroks-runar")
	v.SetDefault("transport.codec", "json")
	v.SetDefault("pins.mode", "local")
	v.SetDefault("typing.stale_after", "5s")
	v.SetDefault("typing.throttle", "1s")
	v.SetDefault("typing.idle_timeout", "3s")
	v.SetDefault("monitor.capacity", 50)
	v.SetDefault("cors.allow_origins", "*")
	v.SetDefault("notifications.desktop", true)
	v.SetDefault("sound.enabled", true)
	v.SetDefault("sound.path", "sounds/notify.ogg")
	v.SetDefault("sound.volume", 0.5)

	bindings := map[string]string{
		"session.user_id": "user",
		"session.role":    "role",
		"app.port":        "port",
	}
	for key, flag := range bindings {
		if err := v.BindPFlag(key, flags.Lookup(flag)); err != nil {
			return Config{}, fmt.Errorf("bind flag %s: %w", flag, err)
		}
	}

	if *configFile != "" {
		v.SetConfigFile(*configFile)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
	}

	users, err := loadRoster(v)
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		AppName:              v.GetString("app.name"),
		AppPort:              v.GetString("app.port"),
		LogLevel:             strings.ToLower(v.GetString("log.level")),
		UserID:               strings.TrimSpace(v.GetString("session.user_id")),
		Role:                 strings.ToLower(strings.TrimSpace(v.GetString("session.role"))),
		Users:                users,
		SettingsNamespace:    v.GetString("settings.namespace"),
		SettingsBackend:      strings.ToLower(v.GetString("settings.backend")),
		DatabaseURL:          v.GetString("database.url"),
		RedisURL:             v.GetString("redis.url"),
		NATSURL:              v.GetString("nats.url"),
		PebblePath:           v.GetString("pebble.path"),
		TransportDriver:      strings.ToLower(v.GetString("transport.driver")),
		TransportChannel:     v.GetString("transport.channel"),
		TransportCodec:       strings.ToLower(v.GetString("transport.codec")),
		PinsMode:             strings.ToLower(v.GetString("pins.mode")),
		TypingStaleAfter:     v.GetDuration("typing.stale_after"),
		TypingThrottle:       v.GetDuration("typing.throttle"),
		TypingIdleTimeout:    v.GetDuration("typing.idle_timeout"),
		MonitorCapacity:      v.GetInt("monitor.capacity"),
		JWTSecret:            v.GetString("auth.jwt_secret"),
		CORSAllowOrigins:     v.GetString("cors.allow_origins"),
		DesktopNotifications: v.GetBool("notifications.desktop"),
		SoundEnabled:         v.GetBool("sound.enabled"),
		SoundPath:            v.GetString("sound.path"),
		SoundVolume:          v.GetFloat64("sound.volume"),
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	if c.UserID == "" {
		return fmt.Errorf("session user id must be provided")
	}

	var self *models.User
	for i := range c.Users {
		if c.Users[i].ID == c.UserID {
			self = &c.Users[i]
			break
		}
	}
	if self == nil {
		return fmt.Errorf("session user %q is not in the roster", c.UserID)
	}
	if c.Role == "" {
		c.Role = self.Role
	}
	if c.Role != models.RoleGM && c.Role != models.RolePlayer {
		return fmt.Errorf("invalid session role %q", c.Role)
	}
	self.Role = c.Role
	self.Active = true

	if err := oneOf("settings.backend", c.SettingsBackend, "sqlite", "postgres", "redis", "pebble"); err != nil {
		return err
	}
	if err := oneOf("transport.driver", c.TransportDriver, "redis", "nats", "memory"); err != nil {
		return err
	}
	if err := oneOf("transport.codec", c.TransportCodec, "json", "cbor"); err != nil {
		return err
	}
	if err := oneOf("pins.mode", c.PinsMode, "local", "shared"); err != nil {
		return err
	}

	if (c.SettingsBackend == "redis" || c.TransportDriver == "redis") && c.RedisURL == "" {
		return fmt.Errorf("redis url must be provided")
	}
	if c.TransportDriver == "nats" && c.NATSURL == "" {
		return fmt.Errorf("nats url must be provided")
	}
	if c.SettingsBackend == "postgres" && c.DatabaseURL == "" {
		return fmt.Errorf("database url must be provided")
	}

	if c.MonitorCapacity <= 0 {
		c.MonitorCapacity = 50
	}
	if c.SoundVolume < 0 || c.SoundVolume > 1 {
		return fmt.Errorf("sound volume must be between 0 and 1")
	}
	return nil
}

func oneOf(key, value string, allowed ...string) error {
	for _, candidate := range allowed {
		if value == candidate {
			return nil
		}
	}
	return fmt.Errorf("invalid %s %q (expected one of %s)", key, value, strings.Join(allowed, ", "))
}

type rosterEntry struct {
	ID     string `mapstructure:"id"`
	Name   string `mapstructure:"name"`
	Avatar string `mapstructure:"avatar"`
	Role   string `mapstructure:"role"`
	Active *bool  `mapstructure:"active"`
}

// loadRoster accepts either a list of entries from the config file or the compact
// "id:name[:role],..." form from the environment.
func loadRoster(v *viper.Viper) ([]models.User, error) {
	raw := v.Get("users")
	if raw == nil {
		return nil, nil
	}
	if compact, ok := raw.(string); ok {
		return ParseRoster(compact)
	}

	var entries []rosterEntry
	if err := v.UnmarshalKey("users", &entries); err != nil {
		return nil, fmt.Errorf("invalid users roster: %w", err)
	}
	users := make([]models.User, 0, len(entries))
	for _, entry := range entries {
		user := models.User{
			ID:     strings.TrimSpace(entry.ID),
			Name:   strings.TrimSpace(entry.Name),
			Avatar: entry.Avatar,
			Role:   normalizeRole(entry.Role),
			Active: entry.Active == nil || *entry.Active,
		}
		if user.ID == "" {
			return nil, fmt.Errorf("roster entry without id")
		}
		if user.Name == "" {
			user.Name = user.ID
		}
		users = append(users, user)
	}
	return users, nil
}

// ParseRoster parses "id:name[:role],..." into roster entries. Every parsed user is active.
func ParseRoster(compact string) ([]models.User, error) {
	var users []models.User
	for _, item := range strings.Split(compact, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		parts := strings.Split(item, ":")
		if len(parts) < 2 || len(parts) > 3 {
			return nil, fmt.Errorf("invalid roster entry %q (expected id:name[:role])", item)
		}
		user := models.User{
			ID:     strings.TrimSpace(parts[0]),
			Name:   strings.TrimSpace(parts[1]),
			Role:   models.RolePlayer,
			Active: true,
		}
		if len(parts) == 3 {
			user.Role = normalizeRole(parts[2])
		}
		if user.ID == "" || user.Name == "" {
			return nil, fmt.Errorf("invalid roster entry %q", item)
		}
		users = append(users, user)
	}
	return users, nil
}

func normalizeRole(role string) string {
	role = strings.ToLower(strings.TrimSpace(role))
	if role == "" {
		return models.RolePlayer
	}
	return role
}
