// Copyright (c) 2025, s0up and the autobrr contributors.
// SPDX-License-Identifier: GPL-2.0-or-later

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/autobrr/liberry/internal/domain"
)

func writeConfig(t *testing.T, dir, content string) string {
	t.Helper()
	configPath := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(configPath, []byte(content), 0o644))
	return configPath
}

func TestNewAppliesDefaults(t *testing.T) {
	configPath := writeConfig(t, t.TempDir(), "logLevel = \"DEBUG\"\n")

	cfg, err := New(configPath, "1.2.3")
	require.NoError(t, err)

	c := cfg.Config
	assert.Equal(t, "1.2.3", c.Version)
	assert.Equal(t, 3000, c.Port)
	assert.Equal(t, "DEBUG", c.LogLevel)
	assert.Equal(t, "prowlarr", c.IndexerBackend)
	assert.Equal(t, "http://localhost:9696", c.IndexerURL)
	assert.Equal(t, "fetch", c.IndexerMode)
	assert.Equal(t, 30, c.IndexerTimeout)
	assert.Equal(t, "http://localhost:8080", c.QbitURL)
	assert.Equal(t, "admin", c.QbitUsername)
	assert.Equal(t, "adminadmin", c.QbitPassword)
	assert.Equal(t, "/calibre/ingest", c.CalibreIngestFolder)
	assert.Equal(t, 5, c.CalibreTimeout)
	assert.False(t, c.PrivateTrackerEnabled())
	assert.False(t, c.CalibreConfigured())
}

func TestNewReadsFileValues(t *testing.T) {
	content := strings.Join([]string{
		`host = "0.0.0.0"`,
		`port = 9090`,
		`mamId = "abc123"`,
		`indexerBackend = "jackett"`,
		`indexerUrl = "http://jackett:9117"`,
		`qbitTags = ["books", "liberry"]`,
		`calibreUrl = "http://calibre:8081"`,
	}, "\n") + "\n"
	configPath := writeConfig(t, t.TempDir(), content)

	cfg, err := New(configPath)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Config.Host)
	assert.Equal(t, 9090, cfg.Config.Port)
	assert.Equal(t, "jackett", cfg.Config.IndexerBackend)
	assert.Equal(t, "http://jackett:9117", cfg.Config.IndexerURL)
	assert.Equal(t, []string{"books", "liberry"}, cfg.Config.QbitTags)
	assert.True(t, cfg.Config.PrivateTrackerEnabled())
	assert.True(t, cfg.Config.CalibreConfigured())
	assert.Equal(t, filepath.Dir(configPath), cfg.GetConfigDir())
}

func TestNewCreatesMissingConfig(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested")

	cfg, err := New(dir)
	require.NoError(t, err)

	configPath := filepath.Join(dir, "config.toml")
	require.FileExists(t, configPath)

	written, err := os.ReadFile(configPath)
	require.NoError(t, err)
	assert.Contains(t, string(written), `indexerBackend = "prowlarr"`)
	assert.Contains(t, string(written), `calibreIngestFolder = "/calibre/ingest"`)
	assert.Equal(t, 3000, cfg.Config.Port)
}

func TestEnvironmentOverrides(t *testing.T) {
	tests := []struct {
		name   string
		env    map[string]string
		assert func(t *testing.T, c *domain.Config)
	}{
		{
			name: "prefixed variables",
			env: map[string]string{
				"LIBERRY__PORT":        "4000",
				"LIBERRY__INDEXER_URL": "http://prowlarr:9696",
				"LIBERRY__MAM_ID":      "prefixed",
			},
			assert: func(t *testing.T, c *domain.Config) {
				assert.Equal(t, 4000, c.Port)
				assert.Equal(t, "http://prowlarr:9696", c.IndexerURL)
				assert.Equal(t, "prefixed", c.MAMID)
			},
		},
		{
			name: "legacy variables",
			env: map[string]string{
				"PORT":                  "5000",
				"HARDCOVER_API_KEY":     "hc-key",
				"MAM_ID":                "legacy",
				"PROWLARR_URL":          "http://legacy:9696",
				"PROWLARR_API_KEY":      "p-key",
				"QBIT_URL":              "http://qbit:8080",
				"QBIT_USERNAME":         "user",
				"QBIT_PASSWORD":         "pass",
				"CALIBRE_INGEST_FOLDER": "/books/ingest",
			},
			assert: func(t *testing.T, c *domain.Config) {
				assert.Equal(t, 5000, c.Port)
				assert.Equal(t, "hc-key", c.HardcoverAPIKey)
				assert.Equal(t, "legacy", c.MAMID)
				assert.Equal(t, "http://legacy:9696", c.IndexerURL)
				assert.Equal(t, "p-key", c.IndexerAPIKey)
				assert.Equal(t, "http://qbit:8080", c.QbitURL)
				assert.Equal(t, "user", c.QbitUsername)
				assert.Equal(t, "pass", c.QbitPassword)
				assert.Equal(t, "/books/ingest", c.CalibreIngestFolder)
			},
		},
		{
			name: "prefixed wins over legacy",
			env: map[string]string{
				"LIBERRY__QBIT_URL": "http://prefixed:8080",
				"QBIT_URL":          "http://legacy:8080",
			},
			assert: func(t *testing.T, c *domain.Config) {
				assert.Equal(t, "http://prefixed:8080", c.QbitURL)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			configPath := writeConfig(t, t.TempDir(), "port = 3000\n")

			cfg, err := New(configPath)
			require.NoError(t, err)
			tt.assert(t, cfg.Config)
		})
	}
}

func TestBindOrReadFromFile(t *testing.T) {
	keyFile := func(t *testing.T) string {
		path := filepath.Join(t.TempDir(), "key-file.txt")
		require.NoError(t, os.WriteFile(path, []byte("key-from-file\n"), 0o600))
		return path
	}

	tests := []struct {
		name     string
		envValue string
		fileEnv  string
		expected string
	}{
		{
			name:     "only file variable",
			fileEnv:  envPrefix + "QBIT_PASSWORD_FILE",
			expected: "key-from-file",
		},
		{
			name:     "only plain variable",
			envValue: "key-not-from-file",
			expected: "key-not-from-file",
		},
		{
			name:     "file variable wins over plain",
			envValue: "key-not-from-file",
			fileEnv:  envPrefix + "QBIT_PASSWORD_FILE",
			expected: "key-from-file",
		},
		{
			name:     "legacy file variable",
			fileEnv:  "QBIT_PASSWORD_FILE",
			expected: "key-from-file",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				t.Setenv(envPrefix+"QBIT_PASSWORD", tt.envValue)
			}
			if tt.fileEnv != "" {
				t.Setenv(tt.fileEnv, keyFile(t))
			}

			configPath := writeConfig(t, t.TempDir(), "qbitPassword = \"from-config\"\n")
			cfg, err := New(configPath)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, cfg.Config.QbitPassword)
		})
	}
}

func TestBindOrReadFromFileMissingFile(t *testing.T) {
	t.Setenv(envPrefix+"MAM_ID_FILE", filepath.Join(t.TempDir(), "missing"))

	_, err := New(writeConfig(t, t.TempDir(), "port = 3000\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "MAM_ID_FILE")
}

func TestResolveConfigPath(t *testing.T) {
	tests := []struct {
		name           string
		input          string
		setupFile      bool
		fileIsDir      bool
		expectedSuffix string
	}{
		{name: "toml_file_extension", input: "custom.toml", expectedSuffix: "custom.toml"},
		{name: "TOML_file_extension_uppercase", input: "CONFIG.TOML", expectedSuffix: "CONFIG.TOML"},
		{name: "directory_path", input: "config", expectedSuffix: "config.toml"},
		{name: "existing_file_without_toml", input: "configfile", setupFile: true, expectedSuffix: "configfile"},
		{name: "existing_directory", input: "configdir", setupFile: true, fileIsDir: true, expectedSuffix: filepath.Join("configdir", "config.toml")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			inputPath := filepath.Join(t.TempDir(), tt.input)

			if tt.setupFile {
				if tt.fileIsDir {
					require.NoError(t, os.MkdirAll(inputPath, 0o755))
				} else {
					require.NoError(t, os.WriteFile(inputPath, []byte("test"), 0o644))
				}
			}

			result := ResolveConfigPath(inputPath)
			assert.True(t, strings.HasSuffix(result, tt.expectedSuffix),
				"Expected result %s to end with %s", result, tt.expectedSuffix)
		})
	}
}

func TestReloadListenersReceiveCopy(t *testing.T) {
	cfg := &AppConfig{Config: &domain.Config{Port: 3000, ReleaseFilter: "Seeders > 0"}}

	var got *domain.Config
	cfg.RegisterReloadListener(func(c *domain.Config) {
		got = c
	})

	cfg.notifyListeners()

	require.NotNil(t, got)
	assert.Equal(t, "Seeders > 0", got.ReleaseFilter)
	got.Port = 1
	assert.Equal(t, 3000, cfg.Config.Port)
}

func TestWriteDefaultConfigSkipsExisting(t *testing.T) {
	path := writeConfig(t, t.TempDir(), "port = 1234\n")

	require.NoError(t, WriteDefaultConfig(path))

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "port = 1234\n", string(content))
}

func TestIsDevBuild(t *testing.T) {
	assert.True(t, isDevBuild(""))
	assert.True(t, isDevBuild("dev"))
	assert.True(t, isDevBuild("1.0.0-dev"))
	assert.False(t, isDevBuild("1.0.0"))
}
