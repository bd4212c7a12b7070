package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/runar/internal/models"
)

func TestLoadFromEnvironmentAndFlags(t *testing.T) {
	t.Setenv("RUNAR_USERS", "gm:Game Master:gm, alice:Alice, bob:Bob:player")
	t.Setenv("RUNAR_TRANSPORT_DRIVER", "memory")

	cfg, err := LoadArgs([]string{"--user", "alice"})
	require.NoError(t, err)

	require.Equal(t, "alice", cfg.UserID)
	require.Equal(t, models.RolePlayer, cfg.Role)
	require.False(t, cfg.IsPrivileged())
	require.Len(t, cfg.Users, 3)
	require.Equal(t, models.User{ID: "gm", Name: "Game Master", Role: models.RoleGM, Active: true}, cfg.Users[0])

	require.Equal(t, ":8080", cfg.HTTPAddress())
	require.Equal(t, "sqlite", cfg.SettingsBackend)
	require.Equal(t, "ragnaroks-runar", cfg.SettingsNamespace)
	require.Equal(t, "module.ragnaroks-runar", cfg.TransportChannel)
	require.Equal(t, "json", cfg.TransportCodec)
	require.Equal(t, "local", cfg.PinsMode)
	require.Equal(t, 5*time.Second, cfg.TypingStaleAfter)
	require.Equal(t, time.Second, cfg.TypingThrottle)
	require.Equal(t, 3*time.Second, cfg.TypingIdleTimeout)
	require.Equal(t, 50, cfg.MonitorCapacity)
	require.Equal(t, "*", cfg.CORSAllowOrigins)
	require.True(t, cfg.DesktopNotifications)
}

func TestLoadFromConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "runar.yaml")
	content := `
session:
  user_id: gm
  role: gm
pins:
  mode: shared
transport:
  driver: nats
nats:
  url: nats://127.0.0.1:4222
users:
  - id: gm
    name: Game Master
    role: gm
  - id: alice
    name: Alice
    avatar: tokens/alice.webp
  - id: bob
    name: Bob
    active: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := LoadArgs([]string{"--config", path, "--port", "9090"})
	require.NoError(t, err)

	require.True(t, cfg.IsPrivileged())
	require.Equal(t, ":9090", cfg.HTTPAddress())
	require.Equal(t, "shared", cfg.PinsMode)
	require.Equal(t, "nats", cfg.TransportDriver)
	require.Len(t, cfg.Users, 3)
	require.Equal(t, "tokens/alice.webp", cfg.Users[1].Avatar)
	require.Equal(t, models.RolePlayer, cfg.Users[1].Role)
	require.True(t, cfg.Users[1].Active)
	require.False(t, cfg.Users[2].Active)
}

func TestLoadRejectsInvalidSession(t *testing.T) {
	t.Setenv("RUNAR_USERS", "gm:Game Master:gm,alice:Alice")
	t.Setenv("RUNAR_TRANSPORT_DRIVER", "memory")

	_, err := LoadArgs(nil)
	require.ErrorContains(t, err, "user id")

	_, err = LoadArgs([]string{"--user", "mallory"})
	require.ErrorContains(t, err, "not in the roster")

	_, err = LoadArgs([]string{"--user", "alice", "--role", "admin"})
	require.ErrorContains(t, err, "invalid session role")

	t.Setenv("RUNAR_PINS_MODE", "everyone")
	_, err = LoadArgs([]string{"--user", "alice"})
	require.ErrorContains(t, err, "pins.mode")
}

func TestLoadRequiresBrokerURL(t *testing.T) {
	t.Setenv("RUNAR_USERS", "alice:Alice")
	t.Setenv("RUNAR_TRANSPORT_DRIVER", "redis")

	_, err := LoadArgs([]string{"--user", "alice"})
	require.ErrorContains(t, err, "redis url")
}

func TestParseRoster(t *testing.T) {
	users, err := ParseRoster("gm:Game Master:GM,,alice:Alice")
	require.NoError(t, err)
	require.Len(t, users, 2)
	require.Equal(t, models.RoleGM, users[0].Role)
	require.Equal(t, models.RolePlayer, users[1].Role)

	_, err = ParseRoster("alice")
	require.Error(t, err)
	_, err = ParseRoster("alice:Alice:gm:extra")
	require.Error(t, err)
	_, err = ParseRoster(":Nobody")
	require.Error(t, err)
}
