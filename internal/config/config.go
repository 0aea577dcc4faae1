// Package config handles TOML configuration loading and validation.
package config

import (
	"cmp"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"sort"
	"strings"

	"github.com/alecthomas/kong"
	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"

	"edge-gateway/internal/model"
)

// Gateway modes.
const (
	ModePublic = "public"
	ModeTenant = "tenant"
)

// DefaultMetricsPath is used when metrics.path is unset.
const DefaultMetricsPath = "/metrics"

// ReservedPaths are served by the gateway itself and cannot be routed.
var ReservedPaths = []string{"/healthz", "/gateway/status"}

// configSearchPaths lists paths checked in order when no explicit config is given.
var configSearchPaths = []string{
	"/etc/edge-gateway/config.toml",
	"configs/config.toml",
}

// CLI holds command-line arguments parsed by Kong.
type CLI struct {
	Config         string           `kong:"short='c',help='Path to TOML config file.',env='CONFIG_PATH'"`
	Host           string           `kong:"help='Listen host (overrides config).',env='HOST'"`
	Port           int              `kong:"short='p',help='Listen port (overrides config).',env='PORT'"`
	Mode           string           `kong:"help='Gateway mode: public|tenant (overrides config).',env='GATEWAY_MODE'"`
	AllowedOrigins []string         `kong:"help='Allowed CORS origins, first is the default (public mode).',env='ALLOWED_ORIGINS'"`
	ChatURL        string           `kong:"name='chat-url',help='Backend URL for /chat (public mode).',env='CHAT_URL'"`
	FitFinderURL   string           `kong:"name='fit-finder-url',help='Backend URL for /fit-finder (public mode).',env='FIT_FINDER_URL'"`
	BearerToken    string           `kong:"help='Shared bearer secret (tenant mode).',env='BEARER_TOKEN'"`
	Routes         string           `kong:"help='JSON route table {key: {url, headers}} (tenant mode).',env='ROUTES'"`
	LogLevel       string           `kong:"help='Log level: debug|info|warn|error (overrides config).',env='LOG_LEVEL'"`
	Version        kong.VersionFlag `kong:"help='Print version and exit.'"`
}

// Config is the top-level application configuration.
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Gateway  GatewayConfig  `toml:"gateway"`
	Public   PublicConfig   `toml:"public"`
	Tenant   TenantConfig   `toml:"tenant"`
	Upstream UpstreamConfig `toml:"upstream"`
	Log      LogConfig      `toml:"log"`
	Metrics  MetricsConfig  `toml:"metrics"`

	filePath string // resolved config file path (unexported)
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `toml:"host"`
	Port         int    `toml:"port"` // 0 means "use default" (8080)
	BodyMaxBytes int64  `toml:"body_max_bytes"`
}

// GatewayConfig selects the gateway variant.
type GatewayConfig struct {
	Mode string `toml:"mode"`
}

// PublicConfig configures the open CORS-aware gateway.
type PublicConfig struct {
	AllowedOrigins []string          `toml:"allowed_origins"`
	Routes         map[string]string `toml:"routes"` // exact path → backend URL
}

// TenantConfig configures the token-gated multi-route gateway.
type TenantConfig struct {
	BearerToken string           `toml:"bearer_token"`
	RoutesJSON  string           `toml:"routes_json"`
	Routes      model.RouteTable `toml:"routes"`
}

// UpstreamConfig holds upstream connection settings.
type UpstreamConfig struct {
	TimeoutSeconds  int `toml:"timeout_seconds"`
	IdleConnections int `toml:"idle_connections"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
}

// LoadDotEnv loads variables from the given .env files into the process
// environment. Missing files are skipped; variables already set win.
func LoadDotEnv(paths ...string) error {
	for _, p := range paths {
		if _, err := os.Stat(p); errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(p); err != nil {
			return fmt.Errorf("config: load %s: %w", p, err)
		}
	}
	return nil
}

// Load reads the TOML config file and applies CLI overrides.
// When no explicit path is given (via --config or CONFIG_PATH), it searches
// /etc/edge-gateway/config.toml then configs/config.toml. If none exists the
// configuration comes from flags and environment alone.
func Load(cli *CLI) (*Config, error) {
	var cfg Config

	path := cli.Config
	if path == "" {
		path = findConfig()
	}
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: read %s: %w", path, err)
		}
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return nil, fmt.Errorf("config: parse %s: %w", path, err)
		}
		cfg.filePath = path
	}

	cfg.applyCLI(cli)

	if err := cfg.mergeRoutesJSON(); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("config: validate: %w", err)
	}

	cfg.setDefaults()
	return &cfg, nil
}

// applyCLI overrides config values with non-zero CLI flags.
func (c *Config) applyCLI(cli *CLI) {
	if cli.Host != "" {
		c.Server.Host = cli.Host
	}
	if cli.Port != 0 {
		c.Server.Port = cli.Port
	}
	if cli.Mode != "" {
		c.Gateway.Mode = cli.Mode
	}
	if len(cli.AllowedOrigins) > 0 {
		c.Public.AllowedOrigins = cli.AllowedOrigins
	}
	if cli.ChatURL != "" {
		c.setPublicRoute("/chat", cli.ChatURL)
	}
	if cli.FitFinderURL != "" {
		c.setPublicRoute("/fit-finder", cli.FitFinderURL)
	}
	if cli.BearerToken != "" {
		c.Tenant.BearerToken = cli.BearerToken
	}
	if cli.Routes != "" {
		c.Tenant.RoutesJSON = cli.Routes
	}
	if cli.LogLevel != "" {
		c.Log.Level = cli.LogLevel
	}
}

func (c *Config) setPublicRoute(path, target string) {
	if c.Public.Routes == nil {
		c.Public.Routes = make(map[string]string)
	}
	c.Public.Routes[path] = target
}

// mergeRoutesJSON decodes tenant.routes_json once and layers it over any
// [tenant.routes] tables from the file.
func (c *Config) mergeRoutesJSON() error {
	raw := strings.TrimSpace(c.Tenant.RoutesJSON)
	if raw == "" {
		return nil
	}

	var table model.RouteTable
	if err := json.Unmarshal([]byte(raw), &table); err != nil {
		return fmt.Errorf("parse tenant routes JSON: %w", err)
	}

	if c.Tenant.Routes == nil {
		c.Tenant.Routes = make(model.RouteTable, len(table))
	}
	for key, backend := range table {
		c.Tenant.Routes[key] = backend
	}
	return nil
}

// Mode returns the normalized gateway mode, defaulting to public.
func (c *Config) Mode() string {
	if m := strings.ToLower(c.Gateway.Mode); m != "" {
		return m
	}
	return ModePublic
}

func (c *Config) validate() error {
	switch c.Mode() {
	case ModePublic:
		if err := c.validatePublic(); err != nil {
			return err
		}
	case ModeTenant:
		if err := c.validateTenant(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("gateway.mode must be one of: public, tenant; got %q", c.Gateway.Mode)
	}

	// Numeric bounds.
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be 0–65535; got %d", c.Server.Port)
	}
	if c.Server.BodyMaxBytes < 0 {
		return fmt.Errorf("server.body_max_bytes must be non-negative; got %d", c.Server.BodyMaxBytes)
	}
	if c.Upstream.TimeoutSeconds < 0 {
		return fmt.Errorf("upstream.timeout_seconds must be non-negative; got %d", c.Upstream.TimeoutSeconds)
	}
	if c.Upstream.IdleConnections < 0 {
		return fmt.Errorf("upstream.idle_connections must be non-negative; got %d", c.Upstream.IdleConnections)
	}

	// Log fields.
	switch strings.ToLower(c.Log.Level) {
	case "debug", "info", "warn", "error", "":
	default:
		return fmt.Errorf("log.level must be one of: debug, info, warn, error; got %q", c.Log.Level)
	}
	switch strings.ToLower(c.Log.Format) {
	case "json", "text", "":
	default:
		return fmt.Errorf("log.format must be one of: json, text; got %q", c.Log.Format)
	}

	if c.Metrics.Enabled {
		p := cmp.Or(c.Metrics.Path, DefaultMetricsPath)
		if p[0] != '/' {
			return fmt.Errorf("metrics.path must start with '/'; got %q", p)
		}
		for _, reserved := range ReservedPaths {
			if p == reserved || strings.HasPrefix(p, reserved+"/") {
				return fmt.Errorf("metrics.path %q conflicts with reserved route %q", p, reserved)
			}
		}
		for _, prefix := range c.RoutePrefixes() {
			if p == prefix || strings.HasPrefix(p, prefix+"/") {
				return fmt.Errorf("metrics.path %q conflicts with gateway route %q", p, prefix)
			}
		}
	}

	return nil
}

func (c *Config) validatePublic() error {
	if len(c.Public.AllowedOrigins) == 0 {
		return fmt.Errorf("public.allowed_origins must list at least one origin")
	}
	for _, o := range c.Public.AllowedOrigins {
		u, err := url.Parse(o)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return fmt.Errorf("public.allowed_origins: %q is not an absolute http(s) origin", o)
		}
	}

	if len(c.Public.Routes) == 0 {
		return fmt.Errorf("public.routes must define at least one route (or set CHAT_URL / FIT_FINDER_URL)")
	}
	for path, target := range c.Public.Routes {
		if !strings.HasPrefix(path, "/") {
			return fmt.Errorf("public.routes: path %q must start with '/'", path)
		}
		if isReserved(path) {
			return fmt.Errorf("public.routes: path %q is reserved", path)
		}
		if err := validateBackendURL(target); err != nil {
			return fmt.Errorf("public.routes[%q]: %w", path, err)
		}
	}
	return nil
}

func (c *Config) validateTenant() error {
	if c.Tenant.BearerToken == "" {
		return fmt.Errorf("tenant.bearer_token is required in tenant mode")
	}
	if len(c.Tenant.Routes) == 0 {
		return fmt.Errorf("tenant.routes must define at least one route (or set ROUTES)")
	}
	for key, backend := range c.Tenant.Routes {
		if key == "" || strings.Contains(key, "/") {
			return fmt.Errorf("tenant.routes: key %q must be a single non-empty path segment", key)
		}
		if isReserved("/" + key) {
			return fmt.Errorf("tenant.routes: key %q is reserved", key)
		}
		if err := validateBackendURL(backend.URL); err != nil {
			return fmt.Errorf("tenant.routes[%q]: %w", key, err)
		}
	}
	return nil
}

func isReserved(path string) bool {
	for _, r := range ReservedPaths {
		if path == r || strings.HasPrefix(r, path+"/") {
			return true
		}
	}
	return false
}

func validateBackendURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("url is required")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("url is not valid: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("url must use http or https; got %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("url %q has no host", raw)
	}
	return nil
}

// setDefaults fills zero-valued fields with sensible defaults.
// For integer fields, zero means "unset" because TOML cannot distinguish
// between an explicit 0 and an omitted key.
func (c *Config) setDefaults() {
	c.Gateway.Mode = c.Mode()
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.BodyMaxBytes == 0 {
		c.Server.BodyMaxBytes = 10 * 1024 * 1024 // 10 MB
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = 120
	}
	if c.Upstream.IdleConnections == 0 {
		c.Upstream.IdleConnections = 100
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "json"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}

// RoutePrefixes returns the path prefixes served by the active gateway mode,
// sorted.
func (c *Config) RoutePrefixes() []string {
	var prefixes []string
	switch c.Mode() {
	case ModeTenant:
		for key := range c.Tenant.Routes {
			prefixes = append(prefixes, "/"+key)
		}
	default:
		for path := range c.Public.Routes {
			prefixes = append(prefixes, path)
		}
	}
	sort.Strings(prefixes)
	return prefixes
}

// findConfig returns the first config path that exists, or empty string.
func findConfig() string {
	return findConfigInPaths(configSearchPaths)
}

// findConfigInPaths returns the first path that exists on disk, or empty string.
func findConfigInPaths(paths []string) string {
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// Addr returns the server listen address as host:port.
func (c *ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// WarnPermissions logs a warning if the config file is readable by group or others.
// The file may carry the bearer secret and backend credentials.
func (c *Config) WarnPermissions(logger *slog.Logger) {
	if c.filePath == "" {
		return
	}
	info, err := os.Stat(c.filePath)
	if err != nil {
		return
	}
	if perm := info.Mode().Perm(); perm&0o077 != 0 {
		logger.Warn("config file is readable by group/others; consider chmod 600",
			"path", c.filePath,
			"mode", fmt.Sprintf("%04o", perm),
		)
	}
}
