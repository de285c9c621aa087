// Package config defines the configuration of the vicon tools and the bridge service.
package config

import (
	"fmt"
	"time"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/pam-robotics/vicontransformer/logging"
	"github.com/pam-robotics/vicontransformer/pam"
	"github.com/pam-robotics/vicontransformer/pubsub"
	"github.com/pam-robotics/vicontransformer/vicon"
)

// SourceType names where frames come from.
type SourceType string

// The known source types.
const (
	SourceJSONFile  = SourceType("json_file")
	SourceTape      = SourceType("tape")
	SourceStore     = SourceType("store")
	SourceWebsocket = SourceType("websocket")
	SourceRedis     = SourceType("redis")
)

// PublisherType names a transport frames are published on.
type PublisherType string

// The known publisher types.
const (
	PublisherWebsocket = PublisherType("websocket")
	PublisherRedis     = PublisherType("redis")
)

// DefaultWebsocketPath is the HTTP path websocket publishers serve on if none is set.
const DefaultWebsocketPath = "/frames"

// Config is the full configuration.
type Config struct {
	ConfigFilePath string `json:"-"`

	Setup      vicon.Setup       `json:"setup"`
	Source     SourceConfig      `json:"source"`
	Publishers []PublisherConfig `json:"publishers"`
	Recording  *RecordingConfig  `json:"recording"`
	Log        logging.Config    `json:"log"`
}

// SourceConfig describes the frame source.
type SourceConfig struct {
	Type SourceType `json:"type"`
	// Path of the frame file, tape or store.
	Path string `json:"path"`
	// RecordingID selects the recording of a store.
	RecordingID string `json:"recording_id"`
	// URL of a websocket publisher.
	URL   string             `json:"url"`
	Redis pubsub.RedisConfig `json:"redis"`
	// Realtime paces tape and store playback by the frame timestamps.
	Realtime bool `json:"realtime"`
	// Loop restarts tape and store playback at the end.
	Loop bool `json:"loop"`
	// Timeout of subscribers, e.g. "500ms".
	Timeout time.Duration `json:"timeout"`
}

// PublisherConfig describes one publisher.
type PublisherConfig struct {
	Type PublisherType `json:"type"`
	// Address a websocket publisher listens on, e.g. ":8765".
	Address string             `json:"address"`
	Path    string             `json:"path"`
	Redis   pubsub.RedisConfig `json:"redis"`
}

// RecordingConfig enables recording of all forwarded frames, to a tape in Dir or to the
// store at Store.
type RecordingConfig struct {
	Dir   string `json:"dir"`
	Store string `json:"store"`
	Note  string `json:"note"`
}

// Default returns the configuration used for everything a file does not set.
func Default() Config {
	return Config{
		Setup:  pam.DefaultSetup(),
		Source: SourceConfig{Timeout: pubsub.DefaultReceiveTimeout},
	}
}

// Validate ensures all parts of the config are valid.
func (c *Config) Validate() error {
	if err := c.Setup.Validate("setup"); err != nil {
		return err
	}
	if err := c.Source.Validate("source"); err != nil {
		return err
	}
	for i := range c.Publishers {
		if err := c.Publishers[i].Validate(fmt.Sprintf("publishers.%d", i)); err != nil {
			return err
		}
	}
	addrs := lo.FilterMap(c.Publishers, func(p PublisherConfig, _ int) (string, bool) {
		return p.Address, p.Type == PublisherWebsocket
	})
	if dups := lo.FindDuplicates(addrs); len(dups) > 0 {
		return errors.Errorf("publishers: address %q used more than once", dups[0])
	}
	if c.Recording != nil {
		if err := c.Recording.Validate("recording"); err != nil {
			return err
		}
	}
	return c.Log.Validate("log")
}

func newFieldRequiredError(path, field string) error {
	return errors.Errorf("%s: %q is required", path, field)
}

// Validate ensures all parts of the config are valid.
func (c *SourceConfig) Validate(path string) error {
	switch c.Type {
	case SourceJSONFile, SourceTape:
		if c.Path == "" {
			return newFieldRequiredError(path, "path")
		}
	case SourceStore:
		if c.Path == "" {
			return newFieldRequiredError(path, "path")
		}
		if c.RecordingID == "" {
			return newFieldRequiredError(path, "recording_id")
		}
	case SourceWebsocket:
		if c.URL == "" {
			return newFieldRequiredError(path, "url")
		}
	case SourceRedis:
		if c.Redis.Address == "" {
			return newFieldRequiredError(path+".redis", "address")
		}
	case "":
		return newFieldRequiredError(path, "type")
	default:
		return errors.Errorf("%s: unknown source type %q", path, c.Type)
	}
	if c.Timeout < 0 {
		return errors.Errorf("%s.timeout must not be negative", path)
	}
	return nil
}

// Validate ensures all parts of the config are valid.
func (c *PublisherConfig) Validate(path string) error {
	switch c.Type {
	case PublisherWebsocket:
		if c.Address == "" {
			return newFieldRequiredError(path, "address")
		}
	case PublisherRedis:
		if c.Redis.Address == "" {
			return newFieldRequiredError(path+".redis", "address")
		}
	case "":
		return newFieldRequiredError(path, "type")
	default:
		return errors.Errorf("%s: unknown publisher type %q", path, c.Type)
	}
	return nil
}

// WebsocketPath returns the configured path or DefaultWebsocketPath.
func (c *PublisherConfig) WebsocketPath() string {
	if c.Path == "" {
		return DefaultWebsocketPath
	}
	return c.Path
}

// Validate ensures all parts of the config are valid.
func (c *RecordingConfig) Validate(path string) error {
	if (c.Dir == "") == (c.Store == "") {
		return errors.Errorf("%s: exactly one of \"dir\" and \"store\" must be set", path)
	}
	return nil
}
