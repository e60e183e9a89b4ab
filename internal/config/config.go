// Package config handles YAML configuration file parsing for a program
// built on Socket: the service to advertise and the hostname/address-family
// to bind. No other package in this module imports it.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config is the top-level example configuration file.
type Config struct {
	Server   ServerConfig    `yaml:"server"`
	Services []ServiceConfig `yaml:"services"`
}

// ServerConfig controls the socket this example binds.
type ServerConfig struct {
	Hostname string `yaml:"hostname"` // mDNS hostname, e.g. "myhost.local"; defaults to os.Hostname
	IPv6     bool   `yaml:"ipv6"`     // also bind and advertise on ff02::fb
}

// ServiceConfig describes one service instance to announce and answer
// queries for.
type ServiceConfig struct {
	Instance string            `yaml:"instance"` // e.g. "My Printer"
	Type     string            `yaml:"type"`     // e.g. "_http._tcp"
	Port     uint16            `yaml:"port"`
	TXT      map[string]string `yaml:"txt"`
}

// LoadConfig loads and parses a YAML configuration file.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return cfg, nil
}

// Example returns a commented YAML example config.
func Example() string {
	return `# mdns service configuration

server:
  hostname: myhost.local
  ipv6: false

services:
  - instance: My Printer
    type: _http._tcp
    port: 8080
    txt:
      path: /
      model: LaserJet
`
}
