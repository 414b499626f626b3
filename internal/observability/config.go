package observability

import (
	"strings"

	"github.com/denhac/memberbridge/internal/config"
)

// Config is the telemetry view of the service configuration.
type Config struct {
	ServiceName string
	Environment string
	Version     string

	LogLevel  string
	LogFormat string

	OtelEnabled          bool
	OtelExporterEndpoint string
	OtelExporterProtocol string
	OtelSamplingRatio    float64
}

func LoadConfig(cfg config.Config) Config {
	tel := cfg.Telemetry
	return Config{
		ServiceName:          orDefault(cfg.AppName, "memberbridge"),
		Environment:          strings.TrimSpace(cfg.Environment),
		Version:              strings.TrimSpace(cfg.AppVersion),
		LogLevel:             strings.ToLower(orDefault(tel.LogLevel, "info")),
		LogFormat:            strings.ToLower(orDefault(tel.LogFormat, "json")),
		OtelEnabled:          tel.OtelEnabled,
		OtelExporterEndpoint: strings.TrimSpace(cfg.OTLPEndpoint),
		OtelExporterProtocol: strings.ToLower(orDefault(tel.OtelProtocol, "grpc")),
		OtelSamplingRatio:    tel.SamplingRatio,
	}
}

// Debug turns on verbose logging for debug level or a development
// environment.
func (c Config) Debug() bool {
	if c.LogLevel == "debug" {
		return true
	}
	switch strings.ToLower(c.Environment) {
	case "dev", "development", "local", "test":
		return true
	default:
		return false
	}
}

func orDefault(value, def string) string {
	if value = strings.TrimSpace(value); value != "" {
		return value
	}
	return def
}
