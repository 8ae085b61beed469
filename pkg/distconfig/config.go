// Package distconfig holds the node-wide options the distribution core
// reads but never mutates: our node name, the shared cookie, our
// capability flags and protocol version, and the network tick interval.
package distconfig

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// OurVersion is the distribution protocol version this build speaks.
// The original advertises 5 for compatibility with older peers; modern
// peers use 7. This build targets modern peers.
const OurVersion uint16 = 7

// MinVersion is the oldest peer distribution protocol version this
// build still accepts a handshake from.
const MinVersion uint16 = 5

// DefaultTickInterval is used when a loaded config omits one.
const DefaultTickInterval = 15 * time.Second

// Options are the read-only node options shared by every Connection.
type Options struct {
	// Name is our node name, e.g. "relay@10.0.0.1".
	Name string `yaml:"name"`
	// Cookie authenticates cluster membership via the challenge digest.
	Cookie string `yaml:"cookie"`
	// Flags is our 32-bit distribution capability bitfield, advertised
	// verbatim in the CHALLENGE packet.
	Flags uint32 `yaml:"flags"`
	// TickInterval is the network tick period; two missed ticks with
	// no frames received closes the connection (spec.md §9).
	TickInterval time.Duration `yaml:"tick_interval"`
}

// Validate checks the options are usable to run a listener.
func (o *Options) Validate() error {
	if o.Name == "" {
		return fmt.Errorf("distconfig: node name is required")
	}
	if o.Cookie == "" {
		return fmt.Errorf("distconfig: cookie is required")
	}
	if o.TickInterval <= 0 {
		o.TickInterval = DefaultTickInterval
	}
	return nil
}

// Load reads Options from a YAML file at path.
func Load(path string) (*Options, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("distconfig: read %s: %w", path, err)
	}
	var o Options
	if err := yaml.Unmarshal(data, &o); err != nil {
		return nil, fmt.Errorf("distconfig: parse %s: %w", path, err)
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return &o, nil
}
