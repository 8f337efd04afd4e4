// Package registry fetches OCI image metadata so challenge images can be
// checked before players start instances from them.
package registry

import (
	"context"
	"errors"
	"slices"
	"strconv"
	"strings"
	"time"
)

// Sentinel errors for registry operations.
var (
	// ErrImageNotFound is returned when the requested image does not exist.
	ErrImageNotFound = errors.New("image not found")

	// ErrUnauthorized is returned when authentication fails.
	ErrUnauthorized = errors.New("unauthorized")

	// ErrInvalidRef is returned when the image reference is malformed.
	ErrInvalidRef = errors.New("invalid image reference")
)

// ImageMetadata contains OCI image metadata fetched from a registry.
type ImageMetadata struct {
	// Digest is the image's content-addressable digest (e.g., "sha256:...").
	Digest string

	// Labels from the image config (OCI annotations).
	Labels map[string]string

	// Created is when the image was created.
	Created time.Time

	// Architecture is the CPU architecture (e.g., "amd64", "arm64").
	Architecture string

	// OS is the operating system (e.g., "linux").
	OS string

	// ExposedPorts lists the TCP ports declared by the image, ascending.
	ExposedPorts []int
}

// Exposes reports whether the image declares the given TCP port.
func (m *ImageMetadata) Exposes(port int) bool {
	return slices.Contains(m.ExposedPorts, port)
}

// parseExposedPorts converts "3000/tcp" style keys into sorted TCP ports.
// UDP and malformed entries are skipped.
func parseExposedPorts[V any](exposed map[string]V) []int {
	ports := make([]int, 0, len(exposed))
	for key := range exposed {
		num, proto, _ := strings.Cut(key, "/")
		if proto != "" && proto != "tcp" {
			continue
		}
		port, err := strconv.Atoi(num)
		if err != nil || port <= 0 || port > 65535 {
			continue
		}
		ports = append(ports, port)
	}
	slices.Sort(ports)
	return ports
}

// ClientConfig configures the registry client.
type ClientConfig struct {
	// Insecure allows HTTP (non-TLS) connections to registries.
	Insecure bool

	// Timeout bounds each lookup. Zero uses DefaultTimeout.
	Timeout time.Duration
}

// Client fetches image metadata from OCI registries.
//
//go:generate go run github.com/matryer/moq@latest -pkg mocks -out mocks/client.go . Client
type Client interface {
	// GetMetadata fetches metadata for an image reference.
	// The reference can be a tag (e.g., "ghcr.io/ctf/web-login:latest")
	// or digest (e.g., "ghcr.io/ctf/web-login@sha256:...").
	GetMetadata(ctx context.Context, ref string) (*ImageMetadata, error)
}

// Verification is the result of checking one challenge image.
type Verification struct {
	Image  string
	Port   int
	Digest string
	// Exposed is false when the image resolves but does not declare Port.
	// Such images may still work; the runtime publishes Port regardless.
	Exposed bool
	Err     error
}

// OK reports whether the image resolved and declares its port.
func (v *Verification) OK() bool {
	return v.Err == nil && v.Exposed
}

// Verify resolves image and checks that it declares port.
func Verify(ctx context.Context, c Client, image string, port int) Verification {
	result := Verification{Image: image, Port: port}

	meta, err := c.GetMetadata(ctx, image)
	if err != nil {
		result.Err = err
		return result
	}

	result.Digest = meta.Digest
	result.Exposed = meta.Exposes(port)
	return result
}
