// Package dockersession provides a cluster.Provider for control planes
// running as local Docker containers (dev and CI deployments). The
// container is discovered by label, its host-mapped control port is
// resolved, and REST channels are handed out against that endpoint.
package dockersession

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"

	"jobclient/internal/cluster"
	"jobclient/internal/cluster/rest"
)

// Default discovery settings.
const (
	DefaultLabel       = "jobclient.role=control-plane"
	DefaultControlPort = 8081
)

// Config holds configuration for the Docker session provider.
type Config struct {
	Label          string        // label selecting the control-plane container (default DefaultLabel)
	ControlPort    uint16        // container-internal control port (default 8081)
	APIToken       string        // optional Bearer token for the control plane
	RequestTimeout time.Duration // per-request timeout for handed-out channels
}

// Provider resolves the control plane endpoint once at construction
// and delegates channel manufacture to a REST provider pointed at it.
type Provider struct {
	docker   *client.Client
	rest     *rest.Provider
	endpoint string
}

// NewProvider connects to the Docker daemon, discovers the
// control-plane container, and builds the provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.Label == "" {
		cfg.Label = DefaultLabel
	}
	if cfg.ControlPort == 0 {
		cfg.ControlPort = DefaultControlPort
	}

	dockerClient, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}

	endpoint, err := resolveEndpoint(ctx, dockerClient, cfg.Label, cfg.ControlPort)
	if err != nil {
		dockerClient.Close()
		return nil, err
	}

	restProvider, err := rest.NewProvider(rest.Config{
		BaseURL:        endpoint,
		APIToken:       cfg.APIToken,
		RequestTimeout: cfg.RequestTimeout,
	})
	if err != nil {
		dockerClient.Close()
		return nil, err
	}

	slog.Info("Resolved control plane from Docker", "label", cfg.Label, "endpoint", endpoint)
	return &Provider{docker: dockerClient, rest: restProvider, endpoint: endpoint}, nil
}

// resolveEndpoint finds the running container carrying the label and
// maps the control port to its host binding.
func resolveEndpoint(ctx context.Context, dockerClient *client.Client, label string, controlPort uint16) (string, error) {
	containers, err := dockerClient.ContainerList(ctx, container.ListOptions{
		Filters: filters.NewArgs(filters.Arg("label", label)),
	})
	if err != nil {
		return "", fmt.Errorf("failed to list containers: %w", err)
	}
	if len(containers) == 0 {
		return "", fmt.Errorf("no running container with label %q", label)
	}
	if len(containers) > 1 {
		slog.Warn("Multiple control-plane containers found, using first",
			"label", label, "count", len(containers))
	}

	endpoint, err := endpointFromPorts(containers[0].Ports, controlPort)
	if err != nil {
		return "", fmt.Errorf("container %s: %w", containers[0].ID[:12], err)
	}
	return endpoint, nil
}

// endpointFromPorts picks the host binding of the control port.
func endpointFromPorts(ports []container.Port, controlPort uint16) (string, error) {
	for _, p := range ports {
		if p.PrivatePort != controlPort || p.Type != "tcp" {
			continue
		}
		if p.PublicPort == 0 {
			continue
		}
		host := p.IP
		if host == "" || host == "0.0.0.0" || host == "::" {
			host = "127.0.0.1"
		}
		return fmt.Sprintf("http://%s:%d", host, p.PublicPort), nil
	}
	return "", fmt.Errorf("control port %d/tcp is not published", controlPort)
}

// Endpoint returns the resolved control plane URL.
func (p *Provider) Endpoint() string {
	return p.endpoint
}

// ControlChannel hands out a REST channel against the resolved endpoint.
func (p *Provider) ControlChannel() (cluster.ControlChannel, error) {
	return p.rest.ControlChannel()
}

// Ready verifies both the daemon and the control plane are reachable.
func (p *Provider) Ready(ctx context.Context) error {
	if _, err := p.docker.Ping(ctx); err != nil {
		return fmt.Errorf("docker daemon unreachable: %w", err)
	}
	return p.rest.Ready(ctx)
}

// Close releases the Docker client. Channels already handed out are
// unaffected.
func (p *Provider) Close() error {
	return p.docker.Close()
}

// Verify Provider satisfies the cluster provider interface
var _ cluster.Provider = (*Provider)(nil)
