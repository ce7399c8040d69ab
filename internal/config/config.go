package config // package config loads application configuration from environment variables

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all runtime configuration values.  Each field corresponds to
// an environment variable.
type Config struct {
	Env     string // application environment (e.g. "development", "production")
	Port    string // HTTP port to listen on
	Version string // reported by the info endpoint

	DBUser string // database username
	DBPass string // database password (optional)
	DBHost string // database host address
	DBPort string // database port number
	DBName string // database name

	JWTSecret string        // secret used to sign session tokens
	JWTTTL    time.Duration // session token lifetime

	DiscordClientID     string
	DiscordClientSecret string
	DiscordRedirectURI  string
	DiscordBotToken     string // optional, enables guild auto-join together with DiscordGuildID
	DiscordGuildID      string
	DiscordInviteURL    string // shown in the welcome notification when auto-join did not happen

	StoreName   string
	FrontendURL string
	CORSOrigins []string
	APISecret   string // shared secret for backend-to-backend calls

	LogLevel  string
	LogFormat string

	AMQPURL        string // empty disables activity events
	ActivityQueue  string
	ActivityLogDir string
}

// AutoJoinEnabled reports whether both Discord bot credentials are present.
func (c Config) AutoJoinEnabled() bool {
	return c.DiscordBotToken != "" && c.DiscordGuildID != ""
}

// Load reads configuration values from environment variables.  Every missing
// required variable is collected so the operator sees them all at once.
func Load() (Config, error) {
	var missing []string
	must := func(key string) string {
		v, ok := os.LookupEnv(key)
		if !ok || strings.TrimSpace(v) == "" {
			missing = append(missing, key)
		}
		return v
	}

	cfg := Config{
		Env:     envStr("APP_ENV", "development"),
		Port:    envStr("APP_PORT", envStr("PORT", "3002")),
		Version: envStr("APP_VERSION", "1.0.0"),

		DBUser: must("DB_USER"),
		DBPass: os.Getenv("DB_PASS"),
		DBHost: envStr("DB_HOST", "127.0.0.1"),
		DBPort: envStr("DB_PORT", "3306"),
		DBName: must("DB_NAME"),

		JWTSecret: must("JWT_SECRET"),

		DiscordClientID:     must("DISCORD_CLIENT_ID"),
		DiscordClientSecret: must("DISCORD_CLIENT_SECRET"),
		DiscordRedirectURI:  must("DISCORD_REDIRECT_URI"),
		DiscordBotToken:     os.Getenv("DISCORD_BOT_TOKEN"),
		DiscordGuildID:      os.Getenv("DISCORD_GUILD_ID"),
		DiscordInviteURL:    envStr("DISCORD_INVITE_URL", "discord.gg/hypestore"),

		StoreName:   envStr("STORE_NAME", "Hype Store"),
		FrontendURL: strings.TrimRight(must("FRONTEND_URL"), "/"),
		APISecret:   must("API_SECRET"),

		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		AMQPURL:        envStr("RABBITMQ_URL", os.Getenv("AMQP_URL")),
		ActivityQueue:  envStr("ACTIVITY_QUEUE", "customer.activity"),
		ActivityLogDir: envStr("ACTIVITY_LOG_DIR", "logs"),
	}
	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required env vars: %s", strings.Join(missing, ", "))
	}

	ttl, err := parseTTL(envStr("JWT_EXPIRES_IN", "7d"))
	if err != nil {
		return Config{}, fmt.Errorf("invalid JWT_EXPIRES_IN: %w", err)
	}
	cfg.JWTTTL = ttl
	cfg.CORSOrigins = corsOrigins(cfg.FrontendURL, os.Getenv("CORS_ORIGINS"))
	return cfg, nil
}

// parseTTL accepts Go durations ("90m", "24h") and whole days ("7d").
func parseTTL(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if strings.HasSuffix(s, "d") {
		n, err := strconv.Atoi(strings.TrimSuffix(s, "d"))
		if err != nil || n <= 0 {
			return 0, fmt.Errorf("bad day count %q", s)
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d <= 0 {
		return 0, fmt.Errorf("non-positive duration %q", s)
	}
	return d, nil
}

func corsOrigins(frontend, extra string) []string {
	out := []string{frontend}
	seen := map[string]bool{frontend: true}
	for _, o := range strings.Split(extra, ",") {
		o = strings.TrimRight(strings.TrimSpace(o), "/")
		if o == "" || seen[o] {
			continue
		}
		seen[o] = true
		out = append(out, o)
	}
	return out
}
