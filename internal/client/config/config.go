package config

import "time"

// Config holds runtime settings for the fluma CLI.
type Config struct {
	ServerEndpointAddr string
	DatabasePath       string
	Timeout            time.Duration
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerEndpointAddr = "127.0.0.1:50051"
	c.DatabasePath = "fluma.db"
	c.Timeout = 10 * time.Second
}

// LoadConfig builds a Config from defaults overlaid with the JSON file at
// path. An empty path yields the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()
	if path == "" {
		return cfg, nil
	}
	if err := loadJSON(path, cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
