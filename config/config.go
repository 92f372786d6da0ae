package config

import (
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"gopkg.in/yaml.v2"
)

type Config struct {
	Tracker TrackerConfig `yaml:"tracker"`
	Peer    PeerConfig    `yaml:"peer"`
}

type TrackerConfig struct {
	// Listen is the address the tracker binds to.
	Listen string `yaml:"listen"`
	// URL is the base address peers use to reach the tracker. It is also
	// written as the announce field of new descriptors.
	URL string `yaml:"url"`
	// RateLimit is the number of requests per second allowed per client IP.
	// Zero disables limiting.
	RateLimit float64 `yaml:"rateLimit"`
	RateBurst int     `yaml:"rateBurst"`
}

type PeerConfig struct {
	Host          string        `yaml:"host"`
	SeedPort      int           `yaml:"seedPort"`
	RequestPort   int           `yaml:"requestPort"`
	StorageRoot   string        `yaml:"storageRoot"`
	DescriptorDir string        `yaml:"descriptorDir"`
	PieceLength   string        `yaml:"pieceLength"`
	Timeout       time.Duration `yaml:"timeout"`
	Verify        bool          `yaml:"verify"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var c Config
	c.applyDefaults()
	return c
}

// Load reads a YAML config file and fills in defaults. An empty path yields
// Default().
func Load(path string) (Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config: %w", err)
	}

	var c Config
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parsing config %s: %w", path, err)
	}
	c.applyDefaults()

	if _, err := c.Peer.PieceLengthBytes(); err != nil {
		return Config{}, err
	}
	return c, nil
}

func (c *Config) applyDefaults() {
	if c.Tracker.Listen == "" {
		c.Tracker.Listen = "0.0.0.0:5001"
	}
	if c.Tracker.URL == "" {
		c.Tracker.URL = "http://127.0.0.1:5001"
	}
	if c.Tracker.RateLimit > 0 && c.Tracker.RateBurst == 0 {
		c.Tracker.RateBurst = 10
	}
	if c.Peer.Host == "" {
		c.Peer.Host = "127.0.0.1"
	}
	if c.Peer.SeedPort == 0 {
		c.Peer.SeedPort = 6881
	}
	if c.Peer.RequestPort == 0 {
		c.Peer.RequestPort = 6882
	}
	if c.Peer.PieceLength == "" {
		c.Peer.PieceLength = "1MiB"
	}
	if c.Peer.Timeout == 0 {
		c.Peer.Timeout = 30 * time.Second
	}
}

// PeerFolder returns the storage root for a peer listening on port, falling
// back to peer_<port> when none is configured.
func (p PeerConfig) PeerFolder(port int) string {
	if p.StorageRoot != "" {
		return p.StorageRoot
	}
	return fmt.Sprintf("peer_%d", port)
}

// PieceLengthBytes parses PieceLength, which accepts sizes like "1MiB" or
// "524288".
func (p PeerConfig) PieceLengthBytes() (int, error) {
	n, err := humanize.ParseBytes(p.PieceLength)
	if err != nil {
		return 0, fmt.Errorf("invalid piece length %q: %w", p.PieceLength, err)
	}
	if n == 0 || n > 1<<30 {
		return 0, fmt.Errorf("piece length %q out of range", p.PieceLength)
	}
	return int(n), nil
}
