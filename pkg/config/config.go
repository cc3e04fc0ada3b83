// Package config загружает конфигурацию коммутатора и модуля echo из TOML.
// Значения из файла накладываются на Default: отсутствующий ключ оставляет
// значение по умолчанию.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arzzra/echo_endpoint/pkg/logging"
	"github.com/arzzra/echo_endpoint/pkg/media"
)

// Transport тип медиа транспорта
type Transport string

const (
	TransportLoopback Transport = "loopback"
	TransportUDP      Transport = "udp"
)

// Config полная конфигурация процесса
type Config struct {
	Endpoint EndpointConfig
	Core     CoreConfig
	Media    MediaConfig
	Log      LogConfig
	HTTP     HTTPConfig
}

type EndpointConfig struct {
	Name      string
	Heartbeat time.Duration
}

type CoreConfig struct {
	MaxSessions int
}

type MediaConfig struct {
	Transport   Transport
	UDPAddr     string
	DSCP        int
	PTime       time.Duration
	RTPTimeout  time.Duration
	Video       bool
	JitterDepth int
	DTMFType    string
}

type LogConfig struct {
	Level  logging.Level
	Format logging.Format
}

type HTTPConfig struct {
	Addr string
}

// Default конфигурация по умолчанию
func Default() Config {
	return Config{
		Endpoint: EndpointConfig{Name: "echo", Heartbeat: 5 * time.Second},
		Core:     CoreConfig{MaxSessions: 1000},
		Media: MediaConfig{
			Transport:  TransportLoopback,
			UDPAddr:    "127.0.0.1",
			DSCP:       46,
			PTime:      20 * time.Millisecond,
			RTPTimeout: 2 * time.Second,
		},
		Log:  LogConfig{Level: logging.LevelInfo, Format: logging.FormatJSON},
		HTTP: HTTPConfig{Addr: "127.0.0.1:8021"},
	}
}

type fileConfig struct {
	Endpoint struct {
		Name      string `toml:"name"`
		Heartbeat string `toml:"heartbeat"`
	} `toml:"endpoint"`
	Core struct {
		MaxSessions int `toml:"max_sessions"`
	} `toml:"core"`
	Media struct {
		Transport   string `toml:"transport"`
		UDPAddr     string `toml:"udp_addr"`
		DSCP        int    `toml:"dscp"`
		PTime       string `toml:"ptime"`
		RTPTimeout  string `toml:"rtp_timeout"`
		Video       bool   `toml:"video"`
		JitterDepth int    `toml:"jitter_depth"`
		DTMFType    string `toml:"dtmf_type"`
	} `toml:"media"`
	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
	HTTP struct {
		Addr string `toml:"addr"`
	} `toml:"http"`
}

// Load читает файл конфигурации; пустой путь - конфигурация по умолчанию
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, cfg.Validate()
	}

	var raw fileConfig
	meta, err := toml.DecodeFile(path, &raw)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	if undecoded := meta.Undecoded(); len(undecoded) > 0 {
		return Config{}, fmt.Errorf("load config: неизвестный ключ %s", undecoded[0])
	}

	if meta.IsDefined("endpoint", "name") {
		cfg.Endpoint.Name = strings.TrimSpace(raw.Endpoint.Name)
	}
	if meta.IsDefined("endpoint", "heartbeat") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Endpoint.Heartbeat))
		if err != nil {
			return Config{}, fmt.Errorf("parse endpoint.heartbeat: %w", err)
		}
		cfg.Endpoint.Heartbeat = d
	}

	if meta.IsDefined("core", "max_sessions") {
		cfg.Core.MaxSessions = raw.Core.MaxSessions
	}

	if meta.IsDefined("media", "transport") {
		cfg.Media.Transport = Transport(strings.ToLower(strings.TrimSpace(raw.Media.Transport)))
	}
	if meta.IsDefined("media", "udp_addr") {
		cfg.Media.UDPAddr = strings.TrimSpace(raw.Media.UDPAddr)
	}
	if meta.IsDefined("media", "dscp") {
		cfg.Media.DSCP = raw.Media.DSCP
	}
	if meta.IsDefined("media", "ptime") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Media.PTime))
		if err != nil {
			return Config{}, fmt.Errorf("parse media.ptime: %w", err)
		}
		cfg.Media.PTime = d
	}
	if meta.IsDefined("media", "rtp_timeout") {
		d, err := time.ParseDuration(strings.TrimSpace(raw.Media.RTPTimeout))
		if err != nil {
			return Config{}, fmt.Errorf("parse media.rtp_timeout: %w", err)
		}
		cfg.Media.RTPTimeout = d
	}
	if meta.IsDefined("media", "video") {
		cfg.Media.Video = raw.Media.Video
	}
	if meta.IsDefined("media", "jitter_depth") {
		cfg.Media.JitterDepth = raw.Media.JitterDepth
	}
	if meta.IsDefined("media", "dtmf_type") {
		cfg.Media.DTMFType = strings.TrimSpace(raw.Media.DTMFType)
	}

	if meta.IsDefined("log", "level") {
		lvl, err := logging.ParseLevel(raw.Log.Level)
		if err != nil {
			return Config{}, fmt.Errorf("parse log.level: %w", err)
		}
		cfg.Log.Level = lvl
	}
	if meta.IsDefined("log", "format") {
		cfg.Log.Format = logging.Format(strings.ToLower(strings.TrimSpace(raw.Log.Format)))
	}

	if meta.IsDefined("http", "addr") {
		cfg.HTTP.Addr = strings.TrimSpace(raw.HTTP.Addr)
	}

	return cfg, cfg.Validate()
}

// Validate проверяет согласованность значений
func (c Config) Validate() error {
	if c.Endpoint.Name == "" {
		return fmt.Errorf("endpoint.name не может быть пустым")
	}
	if strings.ContainsAny(c.Endpoint.Name, "/ ") {
		return fmt.Errorf("endpoint.name %q содержит недопустимые символы", c.Endpoint.Name)
	}
	if c.Endpoint.Heartbeat <= 0 {
		return fmt.Errorf("endpoint.heartbeat должен быть положительным")
	}
	if c.Core.MaxSessions < 0 {
		return fmt.Errorf("core.max_sessions не может быть отрицательным")
	}
	switch c.Media.Transport {
	case TransportLoopback:
	case TransportUDP:
		if c.Media.UDPAddr == "" {
			return fmt.Errorf("media.udp_addr обязателен для udp транспорта")
		}
	default:
		return fmt.Errorf("неизвестный media.transport %q", c.Media.Transport)
	}
	if c.Media.DSCP < 0 || c.Media.DSCP > 63 {
		return fmt.Errorf("media.dscp вне диапазона 0..63")
	}
	if c.Media.DTMFType != "" {
		if _, ok := media.ParseDTMFType(c.Media.DTMFType); !ok {
			return fmt.Errorf("неизвестный media.dtmf_type %q", c.Media.DTMFType)
		}
	}
	if err := c.MediaParams().Validate(); err != nil {
		return fmt.Errorf("media: %w", err)
	}
	if c.Log.Format != logging.FormatJSON && c.Log.Format != logging.FormatConsole {
		return fmt.Errorf("неизвестный log.format %q", c.Log.Format)
	}
	return nil
}

// MediaParams параметры медиа handle для сессий echo
func (c Config) MediaParams() media.Params {
	params := media.DefaultParams()
	params.PTime = c.Media.PTime
	params.RTPTimeout = c.Media.RTPTimeout
	params.JitterDepth = c.Media.JitterDepth
	if c.Media.Transport == TransportUDP {
		params.LocalIP = c.Media.UDPAddr
	}
	if c.Media.Video {
		video := media.DefaultVideoCodec()
		params.Video = &video
	}
	return params
}

// TransportFactory фабрика транспорта по конфигурации
func (c Config) TransportFactory() media.TransportFactory {
	if c.Media.Transport == TransportUDP {
		return media.UDPFactory(c.Media.UDPAddr, c.Media.DSCP)
	}
	return media.LoopbackFactory(0)
}
