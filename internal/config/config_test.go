package config

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "seriallink.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HOME", t.TempDir())

	cfg, err := Load("")
	require.NoError(t, err)
	require.Equal(t, Default().Serial, cfg.Serial)
	require.Equal(t, "info", cfg.Log.Level)
	require.Equal(t, []string{"stderr"}, cfg.Log.Outputs)
	require.Equal(t, binary.LittleEndian, cfg.Serial.Order())
}

func TestLoad_File(t *testing.T) {
	path := writeConfig(t, `
serial:
  port: /dev/ttyUSB1
  baud_rate: 9600
  driver: portable
  item_size: 4
  byte_order: Big
  poll_interval: 25ms
log:
  level: debug
  format: json
  outputs: [stdout]
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/dev/ttyUSB1", cfg.Serial.Port)
	require.Equal(t, 9600, cfg.Serial.BaudRate)
	require.Equal(t, "portable", cfg.Serial.Driver)
	require.Equal(t, 4, cfg.Serial.ItemSize)
	require.Equal(t, binary.BigEndian, cfg.Serial.Order())
	require.Equal(t, 25*time.Millisecond, cfg.Serial.PollInterval)
	require.Equal(t, 512, cfg.Serial.BufferSize)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, []string{"stdout"}, cfg.Log.Outputs)
}

func TestLoad_EnvOverride(t *testing.T) {
	path := writeConfig(t, "serial:\n  baud_rate: 9600\n")
	t.Setenv("SERIALLINK_SERIAL_BAUD_RATE", "57600")
	t.Setenv("SERIALLINK_SERIAL_PORT", "/dev/ttyACM0")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 57600, cfg.Serial.BaudRate)
	require.Equal(t, "/dev/ttyACM0", cfg.Serial.Port)
}

func TestLoad_Invalid(t *testing.T) {
	tests := map[string]string{
		"item size":     "serial:\n  item_size: 3\n",
		"byte order":    "serial:\n  byte_order: middle\n",
		"poll interval": "serial:\n  poll_interval: 0s\n",
		"log level":     "log:\n  level: loud\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			require.Error(t, err)
		})
	}
}

func TestLoad_MissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
}

func TestWatch_ReloadsOnWrite(t *testing.T) {
	path := writeConfig(t, "log:\n  level: info\n")

	changed := make(chan *Config, 4)
	cfg, err := Watch(path, func(c *Config) { changed <- c })
	require.NoError(t, err)
	require.Equal(t, "info", cfg.Log.Level)

	// give the watcher a moment to register
	time.Sleep(50 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644))

	deadline := time.After(2 * time.Second)
	for {
		select {
		case c := <-changed:
			if c.Log.Level == "debug" {
				return
			}
		case <-deadline:
			t.Fatal("config change not observed")
		}
	}
}
