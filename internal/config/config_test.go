package config

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
)

// cliWithPath returns a CLI struct pointing at the given config file.
func cliWithPath(path string) *CLI {
	return &CLI{Config: path}
}

// writeConfig writes data to a config.toml in a temp dir and returns its path.
func writeConfig(t *testing.T, data string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

const publicConfig = `
[server]
host = "127.0.0.1"
port = 9000
body_max_bytes = 5242880

[gateway]
mode = "public"

[public]
allowed_origins = ["https://example.com", "https://www.example.com"]

[public.routes]
"/chat" = "https://chat.example.run.app"
"/fit-finder" = "https://fit.example.run.app"

[upstream]
timeout_seconds = 60
idle_connections = 50

[log]
level = "debug"
format = "text"
`

const tenantConfig = `
[gateway]
mode = "tenant"

[tenant]
bearer_token = "s3cret"

[tenant.routes.files]
url = "https://files.example.com"

[tenant.routes.files.headers]
"X-Key" = "abc"

[tenant.routes.wiki]
url = "http://wiki.internal:8080"
`

func TestLoad_PublicConfig(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, publicConfig)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "127.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "127.0.0.1")
	}
	if cfg.Server.Port != 9000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 9000)
	}
	if cfg.Mode() != ModePublic {
		t.Errorf("Mode() = %q, want %q", cfg.Mode(), ModePublic)
	}
	if len(cfg.Public.AllowedOrigins) != 2 || cfg.Public.AllowedOrigins[0] != "https://example.com" {
		t.Errorf("Public.AllowedOrigins = %v", cfg.Public.AllowedOrigins)
	}
	if cfg.Public.Routes["/chat"] != "https://chat.example.run.app" {
		t.Errorf("Public.Routes[/chat] = %q", cfg.Public.Routes["/chat"])
	}
	if cfg.Upstream.TimeoutSeconds != 60 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 60)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "debug")
	}
	if cfg.Log.Format != "text" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "text")
	}

	got := strings.Join(cfg.RoutePrefixes(), ",")
	if got != "/chat,/fit-finder" {
		t.Errorf("RoutePrefixes() = %q, want %q", got, "/chat,/fit-finder")
	}
}

func TestLoad_TenantConfig(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, tenantConfig)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Mode() != ModeTenant {
		t.Errorf("Mode() = %q, want %q", cfg.Mode(), ModeTenant)
	}
	files, ok := cfg.Tenant.Routes["files"]
	if !ok {
		t.Fatal("expected route files")
	}
	if files.URL != "https://files.example.com" {
		t.Errorf("files.URL = %q", files.URL)
	}
	if files.Headers["X-Key"] != "abc" {
		t.Errorf("files.Headers[X-Key] = %q, want %q", files.Headers["X-Key"], "abc")
	}

	got := strings.Join(cfg.RoutePrefixes(), ",")
	if got != "/files,/wiki" {
		t.Errorf("RoutePrefixes() = %q, want %q", got, "/files,/wiki")
	}
}

func TestLoad_RoutesJSON(t *testing.T) {
	cli := &CLI{
		Config:      writeConfig(t, tenantConfig),
		BearerToken: "from-env",
		Routes:      `{"files":{"url":"https://files-v2.example.com","headers":{"CF-Access-Client-Id":"id"}},"docs":{"url":"https://docs.example.com"}}`,
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tenant.BearerToken != "from-env" {
		t.Errorf("Tenant.BearerToken = %q, want %q", cfg.Tenant.BearerToken, "from-env")
	}
	if got := cfg.Tenant.Routes["files"].URL; got != "https://files-v2.example.com" {
		t.Errorf("JSON route should override TOML route; files.URL = %q", got)
	}
	if got := cfg.Tenant.Routes["files"].Headers["CF-Access-Client-Id"]; got != "id" {
		t.Errorf("files.Headers = %v", cfg.Tenant.Routes["files"].Headers)
	}
	if _, ok := cfg.Tenant.Routes["docs"]; !ok {
		t.Error("expected docs route from JSON")
	}
	if _, ok := cfg.Tenant.Routes["wiki"]; !ok {
		t.Error("expected wiki route from TOML to survive the merge")
	}
}

func TestLoad_RoutesJSONInvalid(t *testing.T) {
	cli := &CLI{Mode: "tenant", BearerToken: "t", Routes: `{"files": "https://files.example.com"}`}
	_, err := Load(cli)
	if err == nil {
		t.Fatal("expected error for malformed routes JSON")
	}
	if !strings.Contains(err.Error(), "routes JSON") {
		t.Errorf("error = %v, want mention of routes JSON", err)
	}
}

func TestLoad_EnvOnly(t *testing.T) {
	// No config file anywhere: everything comes from flags/env.
	cli := &CLI{
		Config:         "",
		AllowedOrigins: []string{"https://example.com"},
		ChatURL:        "https://chat.example.run.app",
		FitFinderURL:   "https://fit.example.run.app",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Mode() != ModePublic {
		t.Errorf("Mode() = %q, want %q", cfg.Mode(), ModePublic)
	}
	if cfg.Public.Routes["/fit-finder"] != "https://fit.example.run.app" {
		t.Errorf("Public.Routes = %v", cfg.Public.Routes)
	}
}

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load(cliWithPath(writeConfig(t, tenantConfig)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "0.0.0.0" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "0.0.0.0")
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 8080)
	}
	if cfg.Server.BodyMaxBytes != 10*1024*1024 {
		t.Errorf("Server.BodyMaxBytes = %d, want %d", cfg.Server.BodyMaxBytes, 10*1024*1024)
	}
	if cfg.Upstream.TimeoutSeconds != 120 {
		t.Errorf("Upstream.TimeoutSeconds = %d, want %d", cfg.Upstream.TimeoutSeconds, 120)
	}
	if cfg.Upstream.IdleConnections != 100 {
		t.Errorf("Upstream.IdleConnections = %d, want %d", cfg.Upstream.IdleConnections, 100)
	}
	if cfg.Log.Level != "info" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "info")
	}
	if cfg.Log.Format != "json" {
		t.Errorf("Log.Format = %q, want %q", cfg.Log.Format, "json")
	}
	if cfg.Metrics.Path != "/metrics" {
		t.Errorf("Metrics.Path = %q, want %q", cfg.Metrics.Path, "/metrics")
	}
}

func TestLoad_ModeDefaultsToPublic(t *testing.T) {
	data := strings.Replace(publicConfig, `mode = "public"`, "", 1)
	cfg, err := Load(cliWithPath(writeConfig(t, data)))
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Gateway.Mode != ModePublic {
		t.Errorf("Gateway.Mode = %q, want %q", cfg.Gateway.Mode, ModePublic)
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(cliWithPath("/nonexistent/path/config.toml"))
	if err == nil {
		t.Fatal("expected error for missing config file")
	}
}

func TestLoad_CLIOverrides(t *testing.T) {
	cli := &CLI{
		Config:   writeConfig(t, publicConfig),
		Host:     "10.0.0.1",
		Port:     3000,
		LogLevel: "warn",
		ChatURL:  "https://chat-v2.example.run.app",
	}

	cfg, err := Load(cli)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.Host != "10.0.0.1" {
		t.Errorf("Server.Host = %q, want %q", cfg.Server.Host, "10.0.0.1")
	}
	if cfg.Server.Port != 3000 {
		t.Errorf("Server.Port = %d, want %d", cfg.Server.Port, 3000)
	}
	if cfg.Log.Level != "warn" {
		t.Errorf("Log.Level = %q, want %q", cfg.Log.Level, "warn")
	}
	if cfg.Public.Routes["/chat"] != "https://chat-v2.example.run.app" {
		t.Errorf("Public.Routes[/chat] = %q", cfg.Public.Routes["/chat"])
	}
	if cfg.Public.Routes["/fit-finder"] != "https://fit.example.run.app" {
		t.Errorf("Public.Routes[/fit-finder] = %q", cfg.Public.Routes["/fit-finder"])
	}
}

func TestLoad_ValidationErrors(t *testing.T) {
	tests := []struct {
		name    string
		data    string
		wantErr string
	}{
		{
			name:    "unknown mode",
			data:    "[gateway]\nmode = \"mesh\"\n",
			wantErr: "gateway.mode",
		},
		{
			name:    "public without origins",
			data:    "[public.routes]\n\"/chat\" = \"https://chat.example.com\"\n",
			wantErr: "allowed_origins",
		},
		{
			name:    "public origin not absolute",
			data:    "[public]\nallowed_origins = [\"example.com\"]\n[public.routes]\n\"/chat\" = \"https://chat.example.com\"\n",
			wantErr: "allowed_origins",
		},
		{
			name:    "public without routes",
			data:    "[public]\nallowed_origins = [\"https://example.com\"]\n",
			wantErr: "public.routes",
		},
		{
			name:    "public route without slash",
			data:    "[public]\nallowed_origins = [\"https://example.com\"]\n[public.routes]\n\"chat\" = \"https://chat.example.com\"\n",
			wantErr: "must start with '/'",
		},
		{
			name:    "public route reserved",
			data:    "[public]\nallowed_origins = [\"https://example.com\"]\n[public.routes]\n\"/healthz\" = \"https://chat.example.com\"\n",
			wantErr: "reserved",
		},
		{
			name:    "public backend not http",
			data:    "[public]\nallowed_origins = [\"https://example.com\"]\n[public.routes]\n\"/chat\" = \"ftp://chat.example.com\"\n",
			wantErr: "http or https",
		},
		{
			name:    "tenant without token",
			data:    strings.Replace(tenantConfig, `bearer_token = "s3cret"`, "", 1),
			wantErr: "bearer_token",
		},
		{
			name:    "tenant without routes",
			data:    "[gateway]\nmode = \"tenant\"\n[tenant]\nbearer_token = \"x\"\n",
			wantErr: "tenant.routes",
		},
		{
			name:    "tenant reserved key",
			data:    "[gateway]\nmode = \"tenant\"\n[tenant]\nbearer_token = \"x\"\n[tenant.routes.gateway]\nurl = \"https://a.example.com\"\n",
			wantErr: "reserved",
		},
		{
			name:    "tenant backend without host",
			data:    "[gateway]\nmode = \"tenant\"\n[tenant]\nbearer_token = \"x\"\n[tenant.routes.files]\nurl = \"https://\"\n",
			wantErr: "no host",
		},
		{
			name:    "tenant backend without url",
			data:    "[gateway]\nmode = \"tenant\"\n[tenant]\nbearer_token = \"x\"\n[tenant.routes.files]\nurl = \"\"\n",
			wantErr: "url is required",
		},
		{
			name:    "invalid log level",
			data:    tenantConfig + "\n[log]\nlevel = \"verbose\"\n",
			wantErr: "log.level",
		},
		{
			name:    "invalid log format",
			data:    tenantConfig + "\n[log]\nformat = \"xml\"\n",
			wantErr: "log.format",
		},
		{
			name:    "negative port",
			data:    tenantConfig + "\n[server]\nport = -1\n",
			wantErr: "server.port",
		},
		{
			name:    "negative body max bytes",
			data:    tenantConfig + "\n[server]\nbody_max_bytes = -100\n",
			wantErr: "server.body_max_bytes",
		},
		{
			name:    "negative timeout",
			data:    tenantConfig + "\n[upstream]\ntimeout_seconds = -5\n",
			wantErr: "upstream.timeout_seconds",
		},
		{
			name:    "metrics path without slash",
			data:    tenantConfig + "\n[metrics]\nenabled = true\npath = \"metrics\"\n",
			wantErr: "must start with '/'",
		},
		{
			name:    "metrics path conflicts with reserved route",
			data:    tenantConfig + "\n[metrics]\nenabled = true\npath = \"/healthz\"\n",
			wantErr: "conflicts with reserved route",
		},
		{
			name:    "default metrics path conflicts with tenant key",
			data:    "[gateway]\nmode = \"tenant\"\n[tenant]\nbearer_token = \"x\"\n[tenant.routes.metrics]\nurl = \"https://m.example.com\"\n[metrics]\nenabled = true\n",
			wantErr: "conflicts with gateway route",
		},
		{
			name:    "default metrics path conflicts with public route",
			data:    "[public]\nallowed_origins = [\"https://example.com\"]\n[public.routes]\n\"/metrics\" = \"https://m.example.com\"\n[metrics]\nenabled = true\n",
			wantErr: "conflicts with gateway route",
		},
		{
			name:    "metrics path conflicts with gateway route",
			data:    tenantConfig + "\n[metrics]\nenabled = true\npath = \"/files/metrics\"\n",
			wantErr: "conflicts with gateway route",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(cliWithPath(writeConfig(t, tt.data)))
			if err == nil {
				t.Fatalf("expected error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %v, want substring %q", err, tt.wantErr)
			}
		})
	}
}

func TestLoad_MetricsDisabledSkipsPathValidation(t *testing.T) {
	data := tenantConfig + "\n[metrics]\nenabled = false\npath = \"no-slash\"\n"
	if _, err := Load(cliWithPath(writeConfig(t, data))); err != nil {
		t.Fatalf("Load() error = %v; disabled metrics should skip path validation", err)
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	data := "EDGE_GATEWAY_TEST_TOKEN=from-dotenv\nEDGE_GATEWAY_TEST_KEEP=from-dotenv\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("EDGE_GATEWAY_TEST_KEEP", "from-env")
	t.Setenv("EDGE_GATEWAY_TEST_TOKEN", "")
	os.Unsetenv("EDGE_GATEWAY_TEST_TOKEN")

	if err := LoadDotEnv(filepath.Join(t.TempDir(), "missing.env"), path); err != nil {
		t.Fatalf("LoadDotEnv() error = %v", err)
	}

	if got := os.Getenv("EDGE_GATEWAY_TEST_TOKEN"); got != "from-dotenv" {
		t.Errorf("EDGE_GATEWAY_TEST_TOKEN = %q, want %q", got, "from-dotenv")
	}
	if got := os.Getenv("EDGE_GATEWAY_TEST_KEEP"); got != "from-env" {
		t.Errorf("EDGE_GATEWAY_TEST_KEEP = %q, want existing env to win", got)
	}
}

func TestWarnPermissions_Loose(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	if err := os.WriteFile(path, []byte("# test"), 0o644); err != nil {
		t.Fatal(err)
	}
	// WriteFile is subject to umask; force the mode under test.
	if err := os.Chmod(path, 0o644); err != nil {
		t.Fatal(err)
	}

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if !strings.Contains(buf.String(), "readable by group/others") {
		t.Errorf("expected permission warning, got: %q", buf.String())
	}
}

func TestWarnPermissions_Strict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("permission bits not meaningful on Windows")
	}
	path := writeConfig(t, "# test")

	cfg := &Config{filePath: path}
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelWarn}))
	cfg.WarnPermissions(logger)

	if buf.Len() != 0 {
		t.Errorf("expected no warning for 0600 file, got: %q", buf.String())
	}
}

func TestWarnPermissions_NoFile(t *testing.T) {
	cfg := &Config{}
	var buf bytes.Buffer
	cfg.WarnPermissions(slog.New(slog.NewTextHandler(&buf, nil)))
	if buf.Len() != 0 {
		t.Errorf("expected no output without a config file, got: %q", buf.String())
	}
}

func TestFindConfigInPaths_Priority(t *testing.T) {
	path1 := writeConfig(t, "# first")
	path2 := writeConfig(t, "# second")

	got := findConfigInPaths([]string{"/nonexistent/a.toml", path1, path2})
	if got != path1 {
		t.Errorf("findConfigInPaths() = %q, want first match %q", got, path1)
	}
	if got := findConfigInPaths([]string{"/nonexistent/a.toml"}); got != "" {
		t.Errorf("findConfigInPaths() = %q, want empty", got)
	}
}

func TestServerConfig_Addr(t *testing.T) {
	sc := &ServerConfig{Host: "127.0.0.1", Port: 8080}
	if got := sc.Addr(); got != "127.0.0.1:8080" {
		t.Errorf("Addr() = %q, want %q", got, "127.0.0.1:8080")
	}
}
