// Package docker provides a wrapper around the Docker SDK client.
package docker

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/client"
)

// Client wraps the Docker SDK client with additional functionality.
type Client struct {
	*client.Client
}

// NewClient creates a new Docker client. An empty host falls back to the
// DOCKER_HOST environment variable or the default unix socket.
func NewClient(host string) (*Client, error) {
	opts := []client.Opt{
		client.FromEnv,
		client.WithAPIVersionNegotiation(),
	}
	if host != "" {
		opts = append(opts, client.WithHost(host))
	}

	cli, err := client.NewClientWithOpts(opts...)
	if err != nil {
		log.Printf("Failed to create Docker client: %v", err)
		return nil, err
	}

	log.Println("Docker client created successfully")
	return &Client{Client: cli}, nil
}

// Ping verifies connection to the Docker daemon.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Client.Ping(ctx)
	if err != nil {
		log.Printf("Docker daemon ping failed: %v", err)
		return err
	}
	return nil
}

// ContainerIDByName resolves a container name to its ID. The name filter on
// the Docker API is a substring match, so candidates are checked for an
// exact name afterwards.
func (c *Client) ContainerIDByName(ctx context.Context, name string) (string, error) {
	containers, err := c.ContainerList(ctx, container.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("name", name)),
	})
	if err != nil {
		return "", err
	}

	for _, candidate := range containers {
		for _, candidateName := range candidate.Names {
			if strings.TrimPrefix(candidateName, "/") == name {
				return candidate.ID, nil
			}
		}
	}

	return "", fmt.Errorf("container %s not found", name)
}
