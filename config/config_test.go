package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.viam.com/test"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/pam"
	"github.com/pam-robotics/vicontransformer/pubsub"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "vicon.json")
	test.That(t, os.WriteFile(path, []byte(content), 0o600), test.ShouldBeNil)
	return path
}

func TestReadDefaults(t *testing.T) {
	path := writeConfig(t, `{"source": {"type": "json_file", "path": "frame.json"}}`)
	cfg, err := Read(path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)
	test.That(t, cfg.ConfigFilePath, test.ShouldEqual, path)
	test.That(t, cfg.Setup, test.ShouldResemble, pam.DefaultSetup())
	test.That(t, cfg.Source.Type, test.ShouldEqual, SourceJSONFile)
	test.That(t, cfg.Source.Timeout, test.ShouldEqual, time.Second)
	test.That(t, cfg.Publishers, test.ShouldBeEmpty)
	test.That(t, cfg.Recording, test.ShouldBeNil)
}

func TestReadFull(t *testing.T) {
	t.Setenv("VICON_TEST_REDIS", "redis.local:6379")
	path := writeConfig(t, `{
		"setup": {
			"origin_subject": "rll_muscle_base",
			"subjects": ["rll_muscle_base", "rll_muscle_racket"],
			"robot_base_subject": "",
			"table_corner_subjects": [],
			"table": {"length": 2.0}
		},
		"source": {"type": "websocket", "url": "ws://vicon:8765/frames", "timeout": "250ms"},
		"publishers": [
			{"type": "websocket", "address": ":8766"},
			{"type": "redis", "redis": {"address": "${VICON_TEST_REDIS}", "channel": "frames"}}
		],
		"recording": {"dir": "/tmp/tapes", "note": "session 3"},
		"log": {"level": "debug"}
	}`)
	cfg, err := Read(path, logging.NewTestLogger(t))
	test.That(t, err, test.ShouldBeNil)

	test.That(t, cfg.Setup.OriginSubject, test.ShouldEqual, "rll_muscle_base")
	// lists replace the defaults
	test.That(t, cfg.Setup.Subjects, test.ShouldResemble, []string{"rll_muscle_base", "rll_muscle_racket"})
	test.That(t, cfg.Setup.TableCornerSubjects, test.ShouldBeEmpty)
	// unset fields keep the defaults
	test.That(t, cfg.Setup.Table.Length, test.ShouldEqual, 2.0)
	test.That(t, cfg.Setup.Table.Width, test.ShouldEqual, 1.525)
	test.That(t, cfg.Setup.ShoulderOffset, test.ShouldResemble, pam.DefaultSetup().ShoulderOffset)

	test.That(t, cfg.Source.Timeout, test.ShouldEqual, 250*time.Millisecond)
	test.That(t, cfg.Publishers, test.ShouldHaveLength, 2)
	test.That(t, cfg.Publishers[0].WebsocketPath(), test.ShouldEqual, DefaultWebsocketPath)
	test.That(t, cfg.Publishers[1].Redis.Address, test.ShouldEqual, "redis.local:6379")
	test.That(t, cfg.Recording.Note, test.ShouldEqual, "session 3")
	test.That(t, cfg.Log.Level, test.ShouldEqual, "debug")
}

func TestReadErrors(t *testing.T) {
	logger := logging.NewTestLogger(t)

	_, err := Read(filepath.Join(t.TempDir(), "missing.json"), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader("", strings.NewReader(`{`), logger)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = FromReader("", strings.NewReader(`{"source": {"type": "tape", "path": "a.tape"}, "extra": 1}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
	test.That(t, err.Error(), test.ShouldContainSubstring, "extra")

	_, err = FromReader("", strings.NewReader(`{"source": {"type": "tape", "path": "a.tape", "timeout": "soon"}}`), logger)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestValidate(t *testing.T) {
	for _, tc := range []struct {
		name     string
		mutate   func(cfg *Config)
		expected string
	}{
		{"no source type", func(cfg *Config) {}, `source: "type" is required`},
		{"unknown source", func(cfg *Config) { cfg.Source.Type = "udp" }, `unknown source type "udp"`},
		{"tape without path", func(cfg *Config) { cfg.Source.Type = SourceTape }, `source: "path" is required`},
		{"store without recording", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceStore, Path: "r.db"}
		}, `source: "recording_id" is required`},
		{"redis without address", func(cfg *Config) { cfg.Source.Type = SourceRedis }, `source.redis: "address" is required`},
		{"websocket without url", func(cfg *Config) { cfg.Source.Type = SourceWebsocket }, `source: "url" is required`},
		{"negative timeout", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceWebsocket, URL: "ws://x", Timeout: -1}
		}, "source.timeout"},
		{"publisher without address", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Publishers = []PublisherConfig{{Type: PublisherWebsocket}}
		}, `publishers.0: "address" is required`},
		{"unknown publisher", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Publishers = []PublisherConfig{{Type: PublisherWebsocket, Address: ":1"}, {Type: "zmq"}}
		}, `publishers.1: unknown publisher type "zmq"`},
		{"duplicate address", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Publishers = []PublisherConfig{{Type: PublisherWebsocket, Address: ":1"}, {Type: PublisherWebsocket, Address: ":1"}}
		}, "used more than once"},
		{"recording target", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Recording = &RecordingConfig{Dir: "a", Store: "b"}
		}, "exactly one of"},
		{"bad setup", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Setup.TableCornerSubjects = []string{"a"}
		}, "setup.table_corner_subjects"},
		{"bad log level", func(cfg *Config) {
			cfg.Source = SourceConfig{Type: SourceTape, Path: "a.tape"}
			cfg.Log.Level = "loud"
		}, "log.level"},
	} {
		t.Run(tc.name, func(t *testing.T) {
			cfg := Default()
			tc.mutate(&cfg)
			err := cfg.Validate()
			test.That(t, err, test.ShouldNotBeNil)
			test.That(t, err.Error(), test.ShouldContainSubstring, tc.expected)
		})
	}

	cfg := Default()
	cfg.Source = SourceConfig{Type: SourceRedis, Redis: pubsub.RedisConfig{Address: "localhost:6379"}}
	test.That(t, cfg.Validate(), test.ShouldBeNil)
}
