// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/autobrr/liberry/internal/domain"
)

var envPrefix = "LIBERRY__"

type AppConfig struct {
	Config  *domain.Config
	viper   *viper.Viper
	version string

	listenersMu sync.RWMutex
	listeners   []func(*domain.Config)
}

func New(configDirOrPath string, versions ...string) (*AppConfig, error) {
	version := "dev"
	if len(versions) > 0 && strings.TrimSpace(versions[0]) != "" {
		version = versions[0]
	}

	c := &AppConfig{
		viper:   viper.New(),
		Config:  &domain.Config{},
		version: version,
	}

	c.defaults()

	if err := c.load(configDirOrPath); err != nil {
		return nil, err
	}

	if err := c.loadFromEnv(); err != nil {
		return nil, err
	}

	if err := c.viper.Unmarshal(c.Config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	c.Config.Version = c.version

	c.watchConfig()

	return c, nil
}

func (c *AppConfig) defaults() {
	host := "localhost"
	if detectContainer() {
		host = "0.0.0.0"
	}

	c.viper.SetDefault("host", host)
	c.viper.SetDefault("port", 3000)
	c.viper.SetDefault("baseUrl", "/")
	c.viper.SetDefault("logLevel", "INFO")
	c.viper.SetDefault("logPath", "")
	c.viper.SetDefault("logMaxSize", 50)
	c.viper.SetDefault("logMaxBackups", 3)
	c.viper.SetDefault("pprofEnabled", false)
	c.viper.SetDefault("metricsEnabled", false)
	c.viper.SetDefault("metricsHost", "127.0.0.1")
	c.viper.SetDefault("metricsPort", 9075)
	c.viper.SetDefault("metricsBasicAuthUsers", "")

	c.viper.SetDefault("hardcoverApiKey", "")
	c.viper.SetDefault("hardcoverUrl", "https://api.hardcover.app/v1/graphql")

	c.viper.SetDefault("mamId", "")
	c.viper.SetDefault("mamDisabled", false)
	c.viper.SetDefault("mamUrl", "https://www.myanonamouse.net")

	c.viper.SetDefault("indexerBackend", "prowlarr")
	c.viper.SetDefault("indexerUrl", "http://localhost:9696")
	c.viper.SetDefault("indexerApiKey", "")
	c.viper.SetDefault("indexerMode", "fetch")
	c.viper.SetDefault("indexerTimeout", 30)
	c.viper.SetDefault("releaseFilter", "")

	c.viper.SetDefault("qbitUrl", "http://localhost:8080")
	c.viper.SetDefault("qbitUsername", "admin")
	c.viper.SetDefault("qbitPassword", "adminadmin")
	c.viper.SetDefault("qbitCategory", "")
	c.viper.SetDefault("qbitTags", []string{})
	c.viper.SetDefault("qbitTlsSkipVerify", false)

	c.viper.SetDefault("calibreUrl", "")
	c.viper.SetDefault("calibreLibraryId", "")
	c.viper.SetDefault("calibreUsername", "")
	c.viper.SetDefault("calibrePassword", "")
	c.viper.SetDefault("calibreTimeout", 5)
	c.viper.SetDefault("calibreIngestFolder", "/calibre/ingest")
}

func (c *AppConfig) load(configDirOrPath string) error {
	c.viper.SetConfigType("toml")

	if configDirOrPath != "" {
		configPath := c.resolveConfigPath(configDirOrPath)
		c.viper.SetConfigFile(configPath)

		if err := c.viper.ReadInConfig(); err != nil {
			// SetConfigFile reports a missing file as a plain fs error
			if !isNotFound(err) {
				return fmt.Errorf("failed to read config: %w", err)
			}
			if err := c.writeDefaultConfig(configPath); err != nil {
				return err
			}
			if err := c.viper.ReadInConfig(); err != nil {
				return fmt.Errorf("failed to read newly created config: %w", err)
			}
		}
		return nil
	}

	c.viper.SetConfigName("config")
	c.viper.AddConfigPath(".")
	c.viper.AddConfigPath(GetDefaultConfigDir())

	if err := c.viper.ReadInConfig(); err != nil {
		if !isNotFound(err) {
			return fmt.Errorf("failed to read config: %w", err)
		}
		defaultConfigPath := filepath.Join(GetDefaultConfigDir(), "config.toml")
		if err := c.writeDefaultConfig(defaultConfigPath); err != nil {
			return err
		}
		c.viper.SetConfigFile(defaultConfigPath)
		if err := c.viper.ReadInConfig(); err != nil {
			return fmt.Errorf("failed to read newly created config: %w", err)
		}
	}

	return nil
}

func isNotFound(err error) bool {
	if _, ok := err.(viper.ConfigFileNotFoundError); ok {
		return true
	}
	return os.IsNotExist(err)
}

// envBinding maps a config key to its prefixed variable and any legacy names the
// earlier deployments used. The first variable that is set wins.
type envBinding struct {
	key    string
	name   string
	legacy []string
	secret bool
}

var envBindings = []envBinding{
	{key: "host", name: "HOST"},
	{key: "port", name: "PORT", legacy: []string{"PORT"}},
	{key: "baseUrl", name: "BASE_URL"},
	{key: "logLevel", name: "LOG_LEVEL"},
	{key: "logPath", name: "LOG_PATH"},
	{key: "logMaxSize", name: "LOG_MAX_SIZE"},
	{key: "logMaxBackups", name: "LOG_MAX_BACKUPS"},
	{key: "pprofEnabled", name: "PPROF_ENABLED"},
	{key: "metricsEnabled", name: "METRICS_ENABLED"},
	{key: "metricsHost", name: "METRICS_HOST"},
	{key: "metricsPort", name: "METRICS_PORT"},
	{key: "metricsBasicAuthUsers", name: "METRICS_BASIC_AUTH_USERS", secret: true},

	{key: "hardcoverApiKey", name: "HARDCOVER_API_KEY", legacy: []string{"HARDCOVER_API_KEY"}, secret: true},
	{key: "hardcoverUrl", name: "HARDCOVER_URL"},

	{key: "mamId", name: "MAM_ID", legacy: []string{"MAM_ID"}, secret: true},
	{key: "mamDisabled", name: "MAM_DISABLED"},
	{key: "mamUrl", name: "MAM_URL"},

	{key: "indexerBackend", name: "INDEXER_BACKEND"},
	{key: "indexerUrl", name: "INDEXER_URL", legacy: []string{"PROWLARR_URL"}},
	{key: "indexerApiKey", name: "INDEXER_API_KEY", legacy: []string{"PROWLARR_API_KEY"}, secret: true},
	{key: "indexerMode", name: "INDEXER_MODE"},
	{key: "indexerTimeout", name: "INDEXER_TIMEOUT"},
	{key: "releaseFilter", name: "RELEASE_FILTER"},

	{key: "qbitUrl", name: "QBIT_URL", legacy: []string{"QBIT_URL"}},
	{key: "qbitUsername", name: "QBIT_USERNAME", legacy: []string{"QBIT_USERNAME"}},
	{key: "qbitPassword", name: "QBIT_PASSWORD", legacy: []string{"QBIT_PASSWORD"}, secret: true},
	{key: "qbitCategory", name: "QBIT_CATEGORY"},
	{key: "qbitTags", name: "QBIT_TAGS"},
	{key: "qbitTlsSkipVerify", name: "QBIT_TLS_SKIP_VERIFY"},

	{key: "calibreUrl", name: "CALIBRE_URL"},
	{key: "calibreLibraryId", name: "CALIBRE_LIBRARY_ID"},
	{key: "calibreUsername", name: "CALIBRE_USERNAME"},
	{key: "calibrePassword", name: "CALIBRE_PASSWORD", secret: true},
	{key: "calibreTimeout", name: "CALIBRE_TIMEOUT"},
	{key: "calibreIngestFolder", name: "CALIBRE_INGEST_FOLDER", legacy: []string{"CALIBRE_INGEST_FOLDER"}},
}

func (c *AppConfig) loadFromEnv() error {
	// DO NOT use AutomaticEnv() - it reads ALL env vars and causes conflicts with K8s
	// Instead, explicitly bind only the environment variables we want
	for _, b := range envBindings {
		names := append([]string{envPrefix + b.name}, b.legacy...)
		if b.secret {
			if err := c.bindOrReadFromFile(b.key, names...); err != nil {
				return err
			}
			continue
		}
		if err := c.viper.BindEnv(append([]string{b.key}, names...)...); err != nil {
			return fmt.Errorf("failed to bind %s: %w", b.key, err)
		}
	}
	return nil
}

// bindOrReadFromFile sets viperVar from the file named by the first <env>_FILE
// variable present, otherwise binds the plain variables.
func (c *AppConfig) bindOrReadFromFile(viperVar string, envVars ...string) error {
	for _, envVar := range envVars {
		envVarFile := envVar + "_FILE"
		filePath := os.Getenv(envVarFile)
		if filePath == "" {
			continue
		}
		content, err := os.ReadFile(filePath)
		if err != nil {
			return fmt.Errorf("could not read %s: %w", envVarFile, err)
		}
		c.viper.Set(viperVar, strings.TrimSpace(string(content)))
		return nil
	}

	if err := c.viper.BindEnv(append([]string{viperVar}, envVars...)...); err != nil {
		return fmt.Errorf("failed to bind %s: %w", viperVar, err)
	}
	return nil
}

func (c *AppConfig) watchConfig() {
	c.viper.WatchConfig()
	c.viper.OnConfigChange(func(e fsnotify.Event) {
		log.Info().Msgf("Config file changed: %s", e.Name)

		if err := c.viper.Unmarshal(c.Config); err != nil {
			log.Error().Err(err).Msg("Failed to reload configuration")
			return
		}

		c.applyDynamicChanges()
	})
}

func (c *AppConfig) applyDynamicChanges() {
	c.Config.Version = c.version
	c.ApplyLogConfig()
	c.notifyListeners()
}

// RegisterReloadListener registers a callback that's invoked when the configuration file is reloaded.
func (c *AppConfig) RegisterReloadListener(fn func(*domain.Config)) {
	c.listenersMu.Lock()
	defer c.listenersMu.Unlock()
	c.listeners = append(c.listeners, fn)
}

func (c *AppConfig) notifyListeners() {
	c.listenersMu.RLock()
	listeners := append([]func(*domain.Config){}, c.listeners...)
	c.listenersMu.RUnlock()

	if len(listeners) == 0 {
		return
	}

	copied := *c.Config
	for _, listener := range listeners {
		listener(&copied)
	}
}

const configTemplate = `# config.toml - Auto-generated on first run

# Hostname / IP
# Default: "localhost" (or "0.0.0.0" in containers)
host = "{{ .host }}"

# Port
# Default: 3000
port = {{ .port }}

# Base URL
# Set custom baseUrl eg /liberry/ to serve in subdirectory.
# Optional
#baseUrl = "/liberry/"

# Log file path
# If not defined, logs to stdout
# Optional
#logPath = "log/liberry.log"

# Log rotation
# Maximum log file size in megabytes before rotation
# Default: {{ .logMaxSize }}
#logMaxSize = {{ .logMaxSize }}

# Number of rotated log files to retain (0 keeps all)
# Default: {{ .logMaxBackups }}
#logMaxBackups = {{ .logMaxBackups }}

# Log level
# Default: "INFO"
# Options: "ERROR", "DEBUG", "INFO", "WARN", "TRACE"
logLevel = "{{ .logLevel }}"

# Hardcover metadata search
# API token from https://hardcover.app/account/api
#hardcoverApiKey = ""

# MyAnonaMouse
# mam_id session cookie value. Leave empty to search indexers only.
#mamId = ""
#mamDisabled = false

# Indexer aggregator
# Options: "prowlarr", "jackett"
indexerBackend = "{{ .indexerBackend }}"
indexerUrl = "{{ .indexerUrl }}"
#indexerApiKey = ""

# Acquisition mode
# "fetch" downloads the release and adds it to qBittorrent
# "grab" asks Prowlarr to send the release to its own download client
indexerMode = "{{ .indexerMode }}"

# Indexer request timeout in seconds
#indexerTimeout = {{ .indexerTimeout }}

# Optional release filter expression, evaluated after the format rules
# Fields: Title, Size, Seeders, Indexer, Year, Group, Ext
# Example: "Seeders >= 2 && Size < 200 * 1024 * 1024"
#releaseFilter = ""

# qBittorrent
qbitUrl = "{{ .qbitUrl }}"
qbitUsername = "{{ .qbitUsername }}"
#qbitPassword = ""
#qbitCategory = ""
#qbitTags = ["liberry"]
#qbitTlsSkipVerify = false

# Calibre
# Folder qBittorrent saves completed ebooks into for Calibre to ingest
calibreIngestFolder = "{{ .calibreIngestFolder }}"

# Calibre content server used for library presence checks
#calibreUrl = "http://localhost:8081"
#calibreLibraryId = ""
#calibreUsername = ""
#calibrePassword = ""

# Per-step presence check timeout in seconds
#calibreTimeout = {{ .calibreTimeout }}

# Prometheus Metrics
# Default: false
#metricsEnabled = false

# Metrics server host (bind address for metrics endpoint)
# Default: "127.0.0.1"
#metricsHost = "127.0.0.1"

# Metrics server port
# Default: 9075
#metricsPort = 9075

# Basic authentication for metrics endpoint (optional)
# Format: "username:bcrypt_hash" or "user1:hash1,user2:hash2" for multiple users
#metricsBasicAuthUsers = ""
`

func (c *AppConfig) writeDefaultConfig(path string) error {
	if _, err := os.Stat(path); err == nil {
		log.Debug().Msgf("Config file already exists at: %s", path)
		return nil
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory %s: %w", dir, err)
	}
	log.Debug().Msgf("Created config directory: %s", dir)

	data := map[string]any{
		"host":                c.viper.GetString("host"),
		"port":                c.viper.GetInt("port"),
		"logLevel":            c.viper.GetString("logLevel"),
		"logMaxSize":          c.viper.GetInt("logMaxSize"),
		"logMaxBackups":       c.viper.GetInt("logMaxBackups"),
		"indexerBackend":      c.viper.GetString("indexerBackend"),
		"indexerUrl":          c.viper.GetString("indexerUrl"),
		"indexerMode":         c.viper.GetString("indexerMode"),
		"indexerTimeout":      c.viper.GetInt("indexerTimeout"),
		"qbitUrl":             c.viper.GetString("qbitUrl"),
		"qbitUsername":        c.viper.GetString("qbitUsername"),
		"calibreIngestFolder": c.viper.GetString("calibreIngestFolder"),
		"calibreTimeout":      c.viper.GetInt("calibreTimeout"),
	}

	tmpl, err := template.New("config").Parse(configTemplate)
	if err != nil {
		return fmt.Errorf("failed to parse config template: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create config file: %w", err)
	}
	defer f.Close()

	if err := tmpl.Execute(f, data); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	log.Info().Msgf("Created default config file: %s", path)
	return nil
}

// GetDefaultConfigDir returns the OS-specific config directory
func GetDefaultConfigDir() string {
	// Docker images set XDG_CONFIG_HOME to /config
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		if xdgConfig == "/config" {
			return xdgConfig
		}
		return filepath.Join(xdgConfig, "liberry")
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "liberry")
		}
		home, _ := os.UserHomeDir()
		return filepath.Join(home, "AppData", "Roaming", "liberry")
	default:
		home, _ := os.UserHomeDir()
		return filepath.Join(home, ".config", "liberry")
	}
}

func detectContainer() bool {
	if _, err := os.Stat("/.dockerenv"); err == nil {
		return true
	}
	if _, err := os.Stat("/dev/.lxc-boot-id"); err == nil {
		return true
	}
	return os.Getpid() == 1
}

func (c *AppConfig) ApplyLogConfig() {
	zerolog.TimeFieldFormat = time.RFC3339

	setLogLevel(c.Config.LogLevel)

	writer := baseLogWriter(c.version)

	if c.Config.LogPath != "" {
		multiWriter, err := setupLogFile(c.Config.LogPath, writer, c.Config.LogMaxSize, c.Config.LogMaxBackups)
		if err != nil {
			log.Error().Err(err).Msg("Failed to setup log file")
		} else {
			writer = multiWriter
		}
	}

	log.Logger = log.Logger.Output(writer)
}

func setLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil || lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	log.Logger = log.Logger.Level(lvl)
}

func setupLogFile(path string, base io.Writer, maxSize, maxBackups int) (io.Writer, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	if maxSize <= 0 {
		maxSize = 50
	}
	if maxBackups < 0 {
		maxBackups = 0
	}

	rotator := &lumberjack.Logger{
		Filename:   path,
		MaxSize:    maxSize,
		MaxBackups: maxBackups,
	}

	return io.MultiWriter(base, rotator), nil
}

func baseLogWriter(version string) io.Writer {
	if isDevBuild(version) {
		writer := zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
		writer.PartsOrder = []string{zerolog.TimestampFieldName, zerolog.LevelFieldName, zerolog.MessageFieldName}
		return writer
	}
	return os.Stderr
}

// InitDefaultLogger configures zerolog with the default writer for this version.
// This is used by CLI entry points before a configuration file is loaded.
func InitDefaultLogger(version string) {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Logger.Output(baseLogWriter(version))
}

func isDevBuild(version string) bool {
	v := strings.ToLower(strings.TrimSpace(version))
	return v == "" || v == "dev" || strings.HasSuffix(v, "-dev")
}

// resolveConfigPath determines the actual config file path from the provided directory or file path
func (c *AppConfig) resolveConfigPath(configDirOrPath string) string {
	return ResolveConfigPath(configDirOrPath)
}

// ResolveConfigPath accepts a .toml file, an existing file, or a directory that
// will hold config.toml.
func ResolveConfigPath(configDirOrPath string) string {
	if configDirOrPath == "" {
		return filepath.Join(GetDefaultConfigDir(), "config.toml")
	}
	if strings.HasSuffix(strings.ToLower(configDirOrPath), ".toml") {
		return configDirOrPath
	}
	if info, err := os.Stat(configDirOrPath); err == nil && !info.IsDir() {
		return configDirOrPath
	}
	return filepath.Join(configDirOrPath, "config.toml")
}

// GetConfigDir returns the directory containing the config file
func (c *AppConfig) GetConfigDir() string {
	if c.viper.ConfigFileUsed() != "" {
		return filepath.Dir(c.viper.ConfigFileUsed())
	}
	return GetDefaultConfigDir()
}

// WriteDefaultConfig renders the default config.toml to path unless it already exists.
func WriteDefaultConfig(path string) error {
	c := &AppConfig{
		viper: viper.New(),
	}

	c.defaults()

	return c.writeDefaultConfig(path)
}
