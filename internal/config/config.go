package config

import (
	"fmt"
	"net"
	"os"

	"gopkg.in/yaml.v3"
)

// DefaultSpeakerPort is the UDP port camera firmware listens on for
// talkback audio when a camera entry does not set one explicitly.
const DefaultSpeakerPort = 5002

type Config struct {
	Gateway    GatewayConfig            `yaml:"gateway"`
	Health     HealthConfig             `yaml:"health"`
	Transcoder TranscoderConfig         `yaml:"transcoder"`
	Storage    StorageConfig            `yaml:"storage"`
	Cameras    map[string]CameraAddress `yaml:"cameras"`
}

type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// HealthConfig is the read-only operational listener. It defaults to
// loopback; it carries no authentication and is not meant to be exposed.
type HealthConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type TranscoderConfig struct {
	Path           string `yaml:"path"`
	GraceTimeoutMs int    `yaml:"grace_timeout_ms"` // wait before force-killing on stop
}

type StorageConfig struct {
	DSN string `yaml:"dsn"`
}

// CameraAddress is one entry of the static camera table: the LAN address
// of a camera's speaker ingest. The table is read-only after startup.
type CameraAddress struct {
	IP   string `yaml:"ip"`
	Port int    `yaml:"port"`
}

// UDPAddr returns the host:port dial target for the camera speaker.
func (a CameraAddress) UDPAddr() string {
	return fmt.Sprintf("%s:%d", a.IP, a.Port)
}

func Load(path string) (*Config, error) {
	cfg := Defaults()
	data, err := os.ReadFile(path)
	if err != nil {
		applyEnv(cfg)
		return cfg, nil
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	applyDefaults(cfg)
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Defaults() *Config {
	return &Config{
		Gateway: GatewayConfig{Host: "0.0.0.0", Port: 8090},
		Health:  HealthConfig{Host: "127.0.0.1", Port: 8091},
		Transcoder: TranscoderConfig{
			Path:           "ffmpeg",
			GraceTimeoutMs: 3000,
		},
		Storage: StorageConfig{DSN: "sqlite:./talkback.db"},
		Cameras: map[string]CameraAddress{},
	}
}

func applyDefaults(c *Config) {
	if c.Gateway.Host == "" {
		c.Gateway.Host = "0.0.0.0"
	}
	if c.Gateway.Port == 0 {
		c.Gateway.Port = 8090
	}
	if c.Health.Host == "" {
		c.Health.Host = "127.0.0.1"
	}
	if c.Health.Port == 0 {
		c.Health.Port = 8091
	}
	if c.Transcoder.Path == "" {
		c.Transcoder.Path = "ffmpeg"
	}
	if c.Transcoder.GraceTimeoutMs == 0 {
		c.Transcoder.GraceTimeoutMs = 3000
	}
	if c.Storage.DSN == "" {
		c.Storage.DSN = "sqlite:./talkback.db"
	}
	if c.Cameras == nil {
		c.Cameras = map[string]CameraAddress{}
	}
	for id, cam := range c.Cameras {
		if cam.Port == 0 {
			cam.Port = DefaultSpeakerPort
			c.Cameras[id] = cam
		}
	}
}

func applyEnv(c *Config) {
	if v := os.Getenv("TALKBACK_GATEWAY_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Gateway.Port)
	}
	if v := os.Getenv("TALKBACK_HEALTH_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &c.Health.Port)
	}
	if v := os.Getenv("TALKBACK_FFMPEG_PATH"); v != "" {
		c.Transcoder.Path = v
	}
	if v := os.Getenv("TALKBACK_STORAGE_DSN"); v != "" {
		c.Storage.DSN = v
	}
}

// Validate rejects camera entries that could not be dialed at runtime.
func (c *Config) Validate() error {
	for id, cam := range c.Cameras {
		if net.ParseIP(cam.IP) == nil {
			return fmt.Errorf("camera %s: invalid ip %q", id, cam.IP)
		}
		if cam.Port < 1 || cam.Port > 65535 {
			return fmt.Errorf("camera %s: invalid port %d", id, cam.Port)
		}
	}
	return nil
}
