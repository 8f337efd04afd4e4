package container

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"testing"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmgilman/kryzon/internal/challenge"
)

// fakeEngine is a programmable engineAPI.
type fakeEngine struct {
	createFunc  func(cfg *dockercontainer.Config, host *dockercontainer.HostConfig, name string) (dockercontainer.CreateResponse, error)
	startFunc   func(id string) error
	stopFunc    func(id string, opts dockercontainer.StopOptions) error
	removeFunc  func(id string) error
	inspectFunc func(id string) (dockercontainer.InspectResponse, error)
	listFunc    func(opts dockercontainer.ListOptions) ([]dockercontainer.Summary, error)
	logsFunc    func(id string, opts dockercontainer.LogsOptions) (io.ReadCloser, error)
	statsFunc   func(id string) (dockercontainer.StatsResponseReader, error)
	imageFunc   func(ref string) (image.InspectResponse, error)
	pullFunc    func(ctx context.Context, ref string) (io.ReadCloser, error)
	netListFunc func(opts network.ListOptions) ([]network.Summary, error)
	netCreate   func(name string, opts network.CreateOptions) (network.CreateResponse, error)

	removed []string
	stopped []string
	pulled  []string
}

func (f *fakeEngine) ContainerCreate(_ context.Context, cfg *dockercontainer.Config, host *dockercontainer.HostConfig,
	_ *network.NetworkingConfig, _ *ocispec.Platform, name string,
) (dockercontainer.CreateResponse, error) {
	if f.createFunc == nil {
		return dockercontainer.CreateResponse{ID: "c-" + name}, nil
	}
	return f.createFunc(cfg, host, name)
}

func (f *fakeEngine) ContainerStart(_ context.Context, id string, _ dockercontainer.StartOptions) error {
	if f.startFunc == nil {
		return nil
	}
	return f.startFunc(id)
}

func (f *fakeEngine) ContainerStop(_ context.Context, id string, opts dockercontainer.StopOptions) error {
	f.stopped = append(f.stopped, id)
	if f.stopFunc == nil {
		return nil
	}
	return f.stopFunc(id, opts)
}

func (f *fakeEngine) ContainerRemove(_ context.Context, id string, _ dockercontainer.RemoveOptions) error {
	f.removed = append(f.removed, id)
	if f.removeFunc == nil {
		return nil
	}
	return f.removeFunc(id)
}

func (f *fakeEngine) ContainerInspect(_ context.Context, id string) (dockercontainer.InspectResponse, error) {
	if f.inspectFunc == nil {
		return dockercontainer.InspectResponse{}, cerrdefs.ErrNotFound
	}
	return f.inspectFunc(id)
}

func (f *fakeEngine) ContainerList(_ context.Context, opts dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
	if f.listFunc == nil {
		return nil, nil
	}
	return f.listFunc(opts)
}

func (f *fakeEngine) ContainerLogs(_ context.Context, id string, opts dockercontainer.LogsOptions) (io.ReadCloser, error) {
	return f.logsFunc(id, opts)
}

func (f *fakeEngine) ContainerStatsOneShot(_ context.Context, id string) (dockercontainer.StatsResponseReader, error) {
	return f.statsFunc(id)
}

func (f *fakeEngine) ImageInspect(_ context.Context, ref string, _ ...client.ImageInspectOption) (image.InspectResponse, error) {
	if f.imageFunc == nil {
		return image.InspectResponse{}, nil
	}
	return f.imageFunc(ref)
}

func (f *fakeEngine) ImagePull(ctx context.Context, ref string, _ image.PullOptions) (io.ReadCloser, error) {
	f.pulled = append(f.pulled, ref)
	if f.pullFunc == nil {
		return io.NopCloser(bytes.NewBufferString(`{"status":"done"}`)), nil
	}
	return f.pullFunc(ctx, ref)
}

// slowPull is a pull progress stream that takes delay to finish and fails
// if the pull context ends first.
type slowPull struct {
	ctx   context.Context
	delay time.Duration
	done  bool
}

func (s *slowPull) Read(p []byte) (int, error) {
	if s.done {
		return 0, io.EOF
	}
	select {
	case <-time.After(s.delay):
	case <-s.ctx.Done():
		return 0, s.ctx.Err()
	}
	s.done = true
	return copy(p, `{"status":"Download complete"}`), nil
}

func (s *slowPull) Close() error { return nil }

func (f *fakeEngine) NetworkList(_ context.Context, opts network.ListOptions) ([]network.Summary, error) {
	if f.netListFunc == nil {
		return nil, nil
	}
	return f.netListFunc(opts)
}

func (f *fakeEngine) NetworkCreate(_ context.Context, name string, opts network.CreateOptions) (network.CreateResponse, error) {
	if f.netCreate == nil {
		return network.CreateResponse{ID: "net-1"}, nil
	}
	return f.netCreate(name, opts)
}

func (f *fakeEngine) Close() error { return nil }

func testSpec() *StartSpec {
	return &StartSpec{
		Name: "kryzon_sqli_42_1700000000000",
		Challenge: challenge.Challenge{
			Slug:  "sqli",
			Name:  "SQL Injection",
			Image: "kryzon/sqli:latest",
			Port:  8080,
		},
		HostPort:   18005,
		InstanceID: "inst-1",
		OwnerID:    "42",
	}
}

func inspectWithPorts(ports ...string) dockercontainer.InspectResponse {
	bindings := make([]nat.PortBinding, 0, len(ports))
	for _, p := range ports {
		bindings = append(bindings, nat.PortBinding{HostIP: "0.0.0.0", HostPort: p})
	}
	return dockercontainer.InspectResponse{
		ContainerJSONBase: &dockercontainer.ContainerJSONBase{
			ID:    "abc",
			State: &dockercontainer.State{Status: "running", Running: true},
		},
		NetworkSettings: &dockercontainer.NetworkSettings{
			NetworkSettingsBase: dockercontainer.NetworkSettingsBase{
				Ports: nat.PortMap{"8080/tcp": bindings},
			},
		},
	}
}

func TestDockerRuntime_Defaults(t *testing.T) {
	r := newDockerRuntime(&fakeEngine{}, DockerConfig{})

	assert.Equal(t, DefaultNetworkName, r.config.Network.Name)
	assert.Equal(t, int64(DefaultMemory), r.config.Memory)
	assert.Equal(t, int64(DefaultCPUShares), r.config.CPUShares)
	assert.Equal(t, int64(DefaultPidsLimit), r.config.PidsLimit)
	assert.Equal(t, DefaultStopTimeout, r.config.StopTimeout)
	assert.Equal(t, DefaultPullTimeout, r.config.PullTimeout)
}

func TestDockerRuntime_StartInstance(t *testing.T) {
	ctx := context.Background()

	t.Run("creates container with limits, labels and port binding", func(t *testing.T) {
		var gotCfg *dockercontainer.Config
		var gotHost *dockercontainer.HostConfig
		engine := &fakeEngine{
			createFunc: func(cfg *dockercontainer.Config, host *dockercontainer.HostConfig, name string) (dockercontainer.CreateResponse, error) {
				gotCfg, gotHost = cfg, host
				return dockercontainer.CreateResponse{ID: "abc123"}, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{HealthCheck: true, Traefik: true})

		id, err := r.StartInstance(ctx, testSpec())

		require.NoError(t, err)
		assert.Equal(t, "abc123", id)

		labels := ParseLabels(gotCfg.Labels)
		assert.True(t, labels.Managed())
		assert.Equal(t, "sqli", labels.Challenge)
		assert.Equal(t, "inst-1", labels.InstanceID)
		assert.Equal(t, 18005, labels.HostPort)
		assert.Equal(t, "Host(`vm-inst-1.ctf.local`)", gotCfg.Labels["traefik.http.routers.vm-inst-1.rule"])
		assert.Contains(t, gotCfg.Env, "CHALLENGE_SLUG=sqli")
		assert.Contains(t, gotCfg.Env, "INSTANCE_ID=inst-1")

		require.NotNil(t, gotCfg.Healthcheck)
		assert.Equal(t, "curl -f http://localhost:8080/ || exit 1", gotCfg.Healthcheck.Test[1])

		assert.Equal(t, int64(DefaultMemory), gotHost.Memory)
		assert.Equal(t, int64(DefaultCPUShares), gotHost.CPUShares)
		require.NotNil(t, gotHost.PidsLimit)
		assert.Equal(t, int64(DefaultPidsLimit), *gotHost.PidsLimit)
		assert.Equal(t, "18005", gotHost.PortBindings["8080/tcp"][0].HostPort)
		assert.Equal(t, DefaultNetworkName, string(gotHost.NetworkMode))
	})

	t.Run("removes partial container when start fails", func(t *testing.T) {
		engine := &fakeEngine{
			createFunc: func(*dockercontainer.Config, *dockercontainer.HostConfig, string) (dockercontainer.CreateResponse, error) {
				return dockercontainer.CreateResponse{ID: "partial"}, nil
			},
			startFunc: func(string) error { return errors.New("port is already allocated") },
		}
		r := newDockerRuntime(engine, DockerConfig{})

		_, err := r.StartInstance(ctx, testSpec())

		var rtErr *RuntimeError
		require.ErrorAs(t, err, &rtErr)
		assert.Equal(t, "start", rtErr.Op)
		assert.Equal(t, []string{"partial"}, engine.removed)
	})

	t.Run("removes by name when create fails", func(t *testing.T) {
		engine := &fakeEngine{
			createFunc: func(*dockercontainer.Config, *dockercontainer.HostConfig, string) (dockercontainer.CreateResponse, error) {
				return dockercontainer.CreateResponse{}, errors.New("no such image")
			},
			removeFunc: func(string) error { return cerrdefs.ErrNotFound },
		}
		r := newDockerRuntime(engine, DockerConfig{})

		_, err := r.StartInstance(ctx, testSpec())

		require.Error(t, err)
		assert.Equal(t, []string{testSpec().Name}, engine.removed)
	})

	t.Run("pulls missing image before create", func(t *testing.T) {
		engine := &fakeEngine{
			imageFunc: func(string) (image.InspectResponse, error) {
				return image.InspectResponse{}, cerrdefs.ErrNotFound
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		_, err := r.StartInstance(ctx, testSpec())

		require.NoError(t, err)
		assert.Equal(t, []string{"kryzon/sqli:latest"}, engine.pulled)
	})

	t.Run("continues when pull fails", func(t *testing.T) {
		engine := &fakeEngine{
			imageFunc: func(string) (image.InspectResponse, error) {
				return image.InspectResponse{}, cerrdefs.ErrNotFound
			},
			pullFunc: func(context.Context, string) (io.ReadCloser, error) { return nil, errors.New("registry down") },
		}
		r := newDockerRuntime(engine, DockerConfig{})

		id, err := r.StartInstance(ctx, testSpec())

		require.NoError(t, err)
		assert.NotEmpty(t, id)
	})

	t.Run("rejects incomplete spec", func(t *testing.T) {
		r := newDockerRuntime(&fakeEngine{}, DockerConfig{})
		spec := testSpec()
		spec.HostPort = 0

		_, err := r.StartInstance(ctx, spec)

		assert.ErrorIs(t, err, ErrInvalidSpec)
	})
}

func TestDockerRuntime_PullImageIfAbsent(t *testing.T) {
	ctx := context.Background()
	missing := func(string) (image.InspectResponse, error) {
		return image.InspectResponse{}, cerrdefs.ErrNotFound
	}

	t.Run("skips pull when image is present", func(t *testing.T) {
		engine := &fakeEngine{}
		r := newDockerRuntime(engine, DockerConfig{})

		require.NoError(t, r.PullImageIfAbsent(ctx, "kryzon/sqli:latest"))
		assert.Empty(t, engine.pulled)
	})

	t.Run("allows pulls longer than the call timeout", func(t *testing.T) {
		engine := &fakeEngine{
			imageFunc: missing,
			pullFunc: func(ctx context.Context, _ string) (io.ReadCloser, error) {
				return &slowPull{ctx: ctx, delay: 100 * time.Millisecond}, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{CallTimeout: 10 * time.Millisecond, PullTimeout: 5 * time.Second})

		require.NoError(t, r.PullImageIfAbsent(ctx, "kryzon/sqli:latest"))
		assert.Equal(t, []string{"kryzon/sqli:latest"}, engine.pulled)
	})

	t.Run("bounds the pull by the pull timeout", func(t *testing.T) {
		engine := &fakeEngine{
			imageFunc: missing,
			pullFunc: func(ctx context.Context, _ string) (io.ReadCloser, error) {
				return &slowPull{ctx: ctx, delay: 5 * time.Second}, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{PullTimeout: 20 * time.Millisecond})

		err := r.PullImageIfAbsent(ctx, "kryzon/sqli:latest")

		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})

	t.Run("surfaces errors reported in the progress stream", func(t *testing.T) {
		engine := &fakeEngine{
			imageFunc: missing,
			pullFunc: func(context.Context, string) (io.ReadCloser, error) {
				stream := `{"status":"Pulling from kryzon/sqli"}` + "\n" +
					`{"errorDetail":{"message":"manifest unknown"},"error":"manifest unknown"}` + "\n"
				return io.NopCloser(bytes.NewBufferString(stream)), nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		err := r.PullImageIfAbsent(ctx, "kryzon/sqli:latest")

		var rtErr *RuntimeError
		require.ErrorAs(t, err, &rtErr)
		assert.Equal(t, "pull image", rtErr.Op)
		assert.Contains(t, err.Error(), "manifest unknown")
	})
}

func TestDockerRuntime_StopContainer(t *testing.T) {
	ctx := context.Background()

	t.Run("returns bound ports and removes container", func(t *testing.T) {
		var gotTimeout int
		engine := &fakeEngine{
			inspectFunc: func(string) (dockercontainer.InspectResponse, error) {
				return inspectWithPorts("18003", "18003"), nil
			},
			stopFunc: func(_ string, opts dockercontainer.StopOptions) error {
				gotTimeout = *opts.Timeout
				return nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		ports, err := r.StopContainer(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, []int{18003}, ports)
		assert.Equal(t, 10, gotTimeout)
		assert.Equal(t, []string{"abc"}, engine.stopped)
		assert.Equal(t, []string{"abc"}, engine.removed)
	})

	t.Run("returns ErrNotFound for missing container", func(t *testing.T) {
		r := newDockerRuntime(&fakeEngine{}, DockerConfig{})

		_, err := r.StopContainer(ctx, "gone")

		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("tolerates container removed during stop", func(t *testing.T) {
		engine := &fakeEngine{
			inspectFunc: func(string) (dockercontainer.InspectResponse, error) {
				return inspectWithPorts("18001"), nil
			},
			removeFunc: func(string) error { return cerrdefs.ErrNotFound },
		}
		r := newDockerRuntime(engine, DockerConfig{})

		ports, err := r.StopContainer(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, []int{18001}, ports)
	})

	t.Run("surfaces engine stop failure", func(t *testing.T) {
		engine := &fakeEngine{
			inspectFunc: func(string) (dockercontainer.InspectResponse, error) {
				return inspectWithPorts("18001"), nil
			},
			stopFunc: func(string, dockercontainer.StopOptions) error { return errors.New("daemon busy") },
		}
		r := newDockerRuntime(engine, DockerConfig{})

		_, err := r.StopContainer(ctx, "abc")

		var rtErr *RuntimeError
		require.ErrorAs(t, err, &rtErr)
		assert.Equal(t, "stop", rtErr.Op)
		assert.Empty(t, engine.removed)
	})
}

func TestDockerRuntime_GetHealth(t *testing.T) {
	ctx := context.Background()

	t.Run("reports state and health", func(t *testing.T) {
		engine := &fakeEngine{
			inspectFunc: func(string) (dockercontainer.InspectResponse, error) {
				resp := inspectWithPorts("18001")
				resp.State.Health = &dockercontainer.Health{Status: "healthy"}
				resp.State.StartedAt = "2026-01-02T03:04:05Z"
				return resp, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		h, err := r.GetHealth(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, StateRunning, h.Status)
		assert.Equal(t, "healthy", h.Health)
		assert.True(t, h.Running)
		assert.Equal(t, time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC), h.StartedAt)
	})

	t.Run("defaults health to none without a probe", func(t *testing.T) {
		engine := &fakeEngine{
			inspectFunc: func(string) (dockercontainer.InspectResponse, error) {
				return inspectWithPorts(), nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		h, err := r.GetHealth(ctx, "abc")

		require.NoError(t, err)
		assert.Equal(t, "none", h.Health)
	})

	t.Run("returns ErrNotFound for missing container", func(t *testing.T) {
		r := newDockerRuntime(&fakeEngine{}, DockerConfig{})

		_, err := r.GetHealth(ctx, "gone")

		assert.ErrorIs(t, err, ErrNotFound)
	})
}

func TestDockerRuntime_ListManaged(t *testing.T) {
	ctx := context.Background()

	var gotLabelFilter []string
	engine := &fakeEngine{
		listFunc: func(opts dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
			gotLabelFilter = opts.Filters.Get("label")
			return []dockercontainer.Summary{
				{
					ID:     "abc",
					Names:  []string{"/kryzon_sqli_42_1"},
					Ports:  []dockercontainer.Port{{PrivatePort: 8080, PublicPort: 18001}, {PrivatePort: 8080, PublicPort: 18001}},
					Labels: map[string]string{LabelType: TypeChallengeInstance, LabelInstanceID: "inst-1"},
					State:  "running",
				},
				{
					ID:    "def",
					Names: []string{"/kryzon_xss_7_2"},
					State: "exited",
				},
			}, nil
		},
	}
	r := newDockerRuntime(engine, DockerConfig{})

	containers, err := r.ListManaged(ctx)

	require.NoError(t, err)
	assert.Equal(t, []string{"kryzon.type=challenge-instance"}, gotLabelFilter)
	require.Len(t, containers, 2)
	assert.Equal(t, []string{"kryzon_sqli_42_1"}, containers[0].Names)
	assert.True(t, containers[0].HasName("kryzon_sqli_42_1"))
	assert.Equal(t, []int{18001}, containers[0].Ports)
	assert.Equal(t, "inst-1", containers[0].Labels.InstanceID)
	assert.Equal(t, StateRunning, containers[0].State)
	assert.True(t, containers[1].State.Finished())
	assert.Empty(t, containers[1].Ports)
}

func TestDockerRuntime_BoundPorts(t *testing.T) {
	var gotOpts dockercontainer.ListOptions
	engine := &fakeEngine{
		listFunc: func(opts dockercontainer.ListOptions) ([]dockercontainer.Summary, error) {
			gotOpts = opts
			return []dockercontainer.Summary{
				{ID: "foreign", Ports: []dockercontainer.Port{{PrivatePort: 5432, PublicPort: 18003}}},
				{ID: "abc", Ports: []dockercontainer.Port{{PrivatePort: 8080, PublicPort: 18001}, {PrivatePort: 8080, PublicPort: 18001}}},
				{ID: "internal", Ports: []dockercontainer.Port{{PrivatePort: 6379}}},
			}, nil
		},
	}
	r := newDockerRuntime(engine, DockerConfig{})

	ports, err := r.BoundPorts(context.Background())

	require.NoError(t, err)
	assert.False(t, gotOpts.All)
	assert.Empty(t, gotOpts.Filters.Get("label"))
	assert.Equal(t, []int{18001, 18003}, ports)
}

func TestDockerRuntime_EnsureNetwork(t *testing.T) {
	ctx := context.Background()

	t.Run("skips creation when network exists", func(t *testing.T) {
		created := false
		engine := &fakeEngine{
			netListFunc: func(network.ListOptions) ([]network.Summary, error) {
				return []network.Summary{{Name: DefaultNetworkName}}, nil
			},
			netCreate: func(string, network.CreateOptions) (network.CreateResponse, error) {
				created = true
				return network.CreateResponse{}, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		require.NoError(t, r.EnsureNetwork(ctx))
		assert.False(t, created)
	})

	t.Run("creates bridge network with subnet", func(t *testing.T) {
		var gotOpts network.CreateOptions
		engine := &fakeEngine{
			netListFunc: func(network.ListOptions) ([]network.Summary, error) {
				return []network.Summary{{Name: DefaultNetworkName + "-old"}}, nil
			},
			netCreate: func(_ string, opts network.CreateOptions) (network.CreateResponse, error) {
				gotOpts = opts
				return network.CreateResponse{ID: "n1"}, nil
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		require.NoError(t, r.EnsureNetwork(ctx))
		assert.Equal(t, "bridge", gotOpts.Driver)
		require.NotNil(t, gotOpts.IPAM)
		assert.Equal(t, DefaultSubnet, gotOpts.IPAM.Config[0].Subnet)
		assert.Equal(t, DefaultBridgeName, gotOpts.Options[bridgeNameOption])
	})

	t.Run("treats concurrent creation as success", func(t *testing.T) {
		engine := &fakeEngine{
			netCreate: func(string, network.CreateOptions) (network.CreateResponse, error) {
				return network.CreateResponse{}, fmt.Errorf("exists: %w", cerrdefs.ErrConflict)
			},
		}
		r := newDockerRuntime(engine, DockerConfig{})

		assert.NoError(t, r.EnsureNetwork(ctx))
	})

	t.Run("rejects invalid subnet", func(t *testing.T) {
		r := newDockerRuntime(&fakeEngine{}, DockerConfig{Network: NetworkConfig{Subnet: "not-a-cidr"}})

		assert.ErrorIs(t, r.EnsureNetwork(ctx), ErrNetworkConfig)
	})
}

func TestDockerRuntime_Logs(t *testing.T) {
	var buf bytes.Buffer
	stdout := stdcopy.NewStdWriter(&buf, stdcopy.Stdout)
	stderr := stdcopy.NewStdWriter(&buf, stdcopy.Stderr)
	_, err := stdout.Write([]byte("listening on 8080\n"))
	require.NoError(t, err)
	_, err = stderr.Write([]byte("warning\n"))
	require.NoError(t, err)
	_, err = stdout.Write([]byte("GET / 200\n"))
	require.NoError(t, err)

	var gotTail string
	engine := &fakeEngine{
		logsFunc: func(_ string, opts dockercontainer.LogsOptions) (io.ReadCloser, error) {
			gotTail = opts.Tail
			return io.NopCloser(&buf), nil
		},
	}
	r := newDockerRuntime(engine, DockerConfig{})

	out, err := r.Logs(context.Background(), "abc", 100)

	require.NoError(t, err)
	assert.Equal(t, "100", gotTail)
	assert.Equal(t, "listening on 8080\nwarning\nGET / 200\n", out)
}

func TestDockerRuntime_Stats(t *testing.T) {
	raw := dockercontainer.StatsResponse{}
	raw.CPUStats.CPUUsage.TotalUsage = 300
	raw.PreCPUStats.CPUUsage.TotalUsage = 100
	raw.CPUStats.SystemUsage = 2000
	raw.PreCPUStats.SystemUsage = 1000
	raw.CPUStats.OnlineCPUs = 2
	raw.MemoryStats.Usage = 64
	raw.MemoryStats.Limit = 256
	raw.Networks = map[string]dockercontainer.NetworkStats{
		"eth0": {RxBytes: 10, TxBytes: 20},
	}
	body, err := json.Marshal(raw)
	require.NoError(t, err)

	engine := &fakeEngine{
		statsFunc: func(string) (dockercontainer.StatsResponseReader, error) {
			return dockercontainer.StatsResponseReader{Body: io.NopCloser(bytes.NewReader(body))}, nil
		},
	}
	r := newDockerRuntime(engine, DockerConfig{})

	s, err := r.Stats(context.Background(), "abc")

	require.NoError(t, err)
	assert.InDelta(t, 40.0, s.CPUPercent, 0.001)
	assert.InDelta(t, 25.0, s.MemoryPercent, 0.001)
	assert.Equal(t, uint64(10), s.NetworkRx)
	assert.Equal(t, uint64(20), s.NetworkTx)
}
