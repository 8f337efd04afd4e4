package registry

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/google/go-containerregistry/pkg/authn"
	"github.com/google/go-containerregistry/pkg/name"
	v1 "github.com/google/go-containerregistry/pkg/v1"
	"github.com/google/go-containerregistry/pkg/v1/remote"
	"github.com/google/go-containerregistry/pkg/v1/remote/transport"
)

// DefaultTimeout bounds a single metadata lookup.
const DefaultTimeout = 30 * time.Second

// remoteClient resolves challenge images against their registries.
type remoteClient struct {
	nameOpts   []name.Option
	remoteOpts []remote.Option
	timeout    time.Duration
}

// NewClient creates a registry client. Credentials come from the Docker
// keychain, the same place the engine reads them when pulling.
func NewClient(cfg ClientConfig) Client {
	c := &remoteClient{
		timeout: cfg.Timeout,
		remoteOpts: []remote.Option{
			remote.WithAuthFromKeychain(authn.DefaultKeychain),
			// Challenge containers run on the local engine's platform.
			remote.WithPlatform(v1.Platform{OS: "linux", Architecture: runtime.GOARCH}),
		},
	}
	if c.timeout <= 0 {
		c.timeout = DefaultTimeout
	}

	if cfg.Insecure {
		c.nameOpts = append(c.nameOpts, name.Insecure)
		c.remoteOpts = append(c.remoteOpts, remote.WithTransport(insecureTransport()))
	}
	return c
}

// insecureTransport clones the default transport, keeping proxy settings,
// and disables certificate verification.
func insecureTransport() http.RoundTripper {
	t := &http.Transport{}
	if base, ok := http.DefaultTransport.(*http.Transport); ok {
		t = base.Clone()
	}
	t.TLSClientConfig = &tls.Config{InsecureSkipVerify: true} //nolint:gosec // opt-in for lab registries
	return t
}

// GetMetadata resolves ref and reads the config of the image the engine
// would run. Digest is the digest the tag resolves to, which for
// multi-platform images is the index digest a pull records.
func (c *remoteClient) GetMetadata(ctx context.Context, ref string) (*ImageMetadata, error) {
	parsed, err := name.ParseReference(ref, c.nameOpts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrInvalidRef, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	opts := append([]remote.Option{remote.WithContext(ctx)}, c.remoteOpts...)
	desc, err := remote.Get(parsed, opts...)
	if err != nil {
		return nil, classify(ref, err)
	}

	img, err := desc.Image()
	if err != nil {
		return nil, classify(ref, err)
	}

	cfg, err := img.ConfigFile()
	if err != nil {
		return nil, fmt.Errorf("read config of %s: %w", ref, err)
	}

	meta := &ImageMetadata{
		Digest:       desc.Digest.String(),
		Labels:       cfg.Config.Labels,
		Architecture: cfg.Architecture,
		OS:           cfg.OS,
		ExposedPorts: parseExposedPorts(cfg.Config.ExposedPorts),
	}
	if !cfg.Created.IsZero() {
		meta.Created = cfg.Created.Time
	}
	return meta, nil
}

// classify maps registry failures for ref onto the package sentinels.
func classify(ref string, err error) error {
	var terr *transport.Error
	if !errors.As(err, &terr) {
		return fmt.Errorf("resolve %s: %w", ref, err)
	}

	for _, d := range terr.Errors {
		switch d.Code {
		case transport.UnauthorizedErrorCode, transport.DeniedErrorCode:
			return fmt.Errorf("%w: %s: %s", ErrUnauthorized, ref, d.Message)
		case transport.ManifestUnknownErrorCode, transport.NameUnknownErrorCode:
			return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
		}
	}

	switch terr.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: %s: HTTP %d", ErrUnauthorized, ref, terr.StatusCode)
	case http.StatusNotFound:
		return fmt.Errorf("%w: %s", ErrImageNotFound, ref)
	}
	return fmt.Errorf("resolve %s: %w", ref, err)
}
