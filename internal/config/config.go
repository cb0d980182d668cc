// Package config provides configuration loading from environment variables.
package config

import (
	"time"
)

// ClientConfig holds configuration for the job-control client.
type ClientConfig struct {
	ControlPlaneURL string        // control plane endpoint; empty with DockerDiscovery resolves via Docker
	APIToken        string        // Bearer token, read from API_TOKEN_FILE
	RequestTimeout  time.Duration // per-request timeout for control channels
	MetricsPort     string        // port for the /metrics endpoint in watch mode
	DockerDiscovery bool          // resolve the control plane from a labeled Docker container
	DockerLabel     string        // label selecting the control-plane container
	ControlPort     uint16        // container-internal control port for Docker discovery
}

// LoadClientConfig loads client configuration from environment variables.
func LoadClientConfig() *ClientConfig {
	return &ClientConfig{
		ControlPlaneURL: GetEnv("CONTROL_PLANE_URL", "http://127.0.0.1:8081"),
		APIToken:        GetSecretFile(GetEnv("API_TOKEN_FILE", "")),
		RequestTimeout:  GetDurationEnv("REQUEST_TIMEOUT", 30*time.Second),
		MetricsPort:     GetEnv("METRICS_PORT", "9090"),
		DockerDiscovery: GetBoolEnv("DOCKER_DISCOVERY", false),
		DockerLabel:     GetEnv("DOCKER_LABEL", ""),
		ControlPort:     GetPortEnv("CONTROL_PORT", 8081),
	}
}
