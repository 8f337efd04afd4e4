package container

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"sort"
	"strconv"
	"strings"
	"time"

	cerrdefs "github.com/containerd/errdefs"
	dockercontainer "github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/filters"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/api/types/network"
	"github.com/docker/docker/client"
	"github.com/docker/docker/pkg/jsonmessage"
	"github.com/docker/docker/pkg/stdcopy"
	"github.com/docker/go-connections/nat"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"

	"github.com/jmgilman/kryzon/internal/slogger"
)

// Defaults applied when DockerConfig leaves a field zero.
const (
	DefaultNetworkName = "kryzon-ctf-network"
	DefaultSubnet      = "172.20.0.0/16"
	DefaultGateway     = "172.20.0.1"
	DefaultBridgeName  = "kryzon-br0"
	DefaultMemory      = 256 * 1024 * 1024
	DefaultCPUShares   = 512
	DefaultPidsLimit   = 100
	DefaultStopTimeout = 10 * time.Second
	DefaultCallTimeout = 30 * time.Second
	DefaultPullTimeout = 5 * time.Minute
	DefaultDomain      = "ctf.local"
)

// Health probe timings for challenge containers.
const (
	healthInterval    = 10 * time.Second
	healthTimeout     = 5 * time.Second
	healthRetries     = 3
	healthStartPeriod = 30 * time.Second
)

const bridgeNameOption = "com.docker.network.bridge.name"

// engineAPI is the subset of the Docker Engine client used by DockerRuntime.
type engineAPI interface {
	ContainerCreate(ctx context.Context, config *dockercontainer.Config, hostConfig *dockercontainer.HostConfig,
		networkingConfig *network.NetworkingConfig, platform *ocispec.Platform, containerName string) (dockercontainer.CreateResponse, error)
	ContainerStart(ctx context.Context, containerID string, options dockercontainer.StartOptions) error
	ContainerStop(ctx context.Context, containerID string, options dockercontainer.StopOptions) error
	ContainerRemove(ctx context.Context, containerID string, options dockercontainer.RemoveOptions) error
	ContainerInspect(ctx context.Context, containerID string) (dockercontainer.InspectResponse, error)
	ContainerList(ctx context.Context, options dockercontainer.ListOptions) ([]dockercontainer.Summary, error)
	ContainerLogs(ctx context.Context, containerID string, options dockercontainer.LogsOptions) (io.ReadCloser, error)
	ContainerStatsOneShot(ctx context.Context, containerID string) (dockercontainer.StatsResponseReader, error)
	ImageInspect(ctx context.Context, imageID string, opts ...client.ImageInspectOption) (image.InspectResponse, error)
	ImagePull(ctx context.Context, ref string, options image.PullOptions) (io.ReadCloser, error)
	NetworkList(ctx context.Context, options network.ListOptions) ([]network.Summary, error)
	NetworkCreate(ctx context.Context, name string, options network.CreateOptions) (network.CreateResponse, error)
	Close() error
}

// NetworkConfig describes the isolated bridge network for challenge containers.
type NetworkConfig struct {
	Name    string
	Subnet  string
	Gateway string
	Bridge  string // Host bridge interface name
}

// DockerConfig configures the Docker runtime.
type DockerConfig struct {
	Host        string // Engine address; empty uses the environment
	Network     NetworkConfig
	Memory      int64 // Bytes
	CPUShares   int64
	PidsLimit   int64
	StopTimeout time.Duration // Grace period before the engine kills a container
	CallTimeout time.Duration // Upper bound for each engine call
	PullTimeout time.Duration // Upper bound for an image pull, including its progress stream
	HealthCheck bool          // Attach an HTTP health probe
	Traefik     bool          // Attach reverse proxy routing labels
	Domain      string        // Base domain for routing labels
}

func (c *DockerConfig) applyDefaults() {
	if c.Network.Name == "" {
		c.Network.Name = DefaultNetworkName
	}
	if c.Network.Subnet == "" {
		c.Network.Subnet = DefaultSubnet
	}
	if c.Network.Gateway == "" {
		c.Network.Gateway = DefaultGateway
	}
	if c.Network.Bridge == "" {
		c.Network.Bridge = DefaultBridgeName
	}
	if c.Memory <= 0 {
		c.Memory = DefaultMemory
	}
	if c.CPUShares <= 0 {
		c.CPUShares = DefaultCPUShares
	}
	if c.PidsLimit <= 0 {
		c.PidsLimit = DefaultPidsLimit
	}
	if c.StopTimeout <= 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.CallTimeout <= 0 {
		c.CallTimeout = DefaultCallTimeout
	}
	if c.PullTimeout <= 0 {
		c.PullTimeout = DefaultPullTimeout
	}
	if c.Domain == "" {
		c.Domain = DefaultDomain
	}
}

// DockerRuntime implements Runtime against the Docker Engine API.
type DockerRuntime struct {
	api    engineAPI
	config DockerConfig
}

// NewDockerRuntime connects to the Docker engine described by cfg.
func NewDockerRuntime(cfg DockerConfig) (*DockerRuntime, error) {
	opts := []client.Opt{client.FromEnv, client.WithAPIVersionNegotiation()}
	if cfg.Host != "" {
		opts = append(opts, client.WithHost(cfg.Host))
	}

	api, err := client.NewClientWithOpts(opts...)
	if err != nil {
		return nil, fmt.Errorf("create docker client: %w", err)
	}

	return newDockerRuntime(api, cfg), nil
}

func newDockerRuntime(api engineAPI, cfg DockerConfig) *DockerRuntime {
	cfg.applyDefaults()
	return &DockerRuntime{api: api, config: cfg}
}

// Close releases the engine connection.
func (r *DockerRuntime) Close() error {
	return r.api.Close()
}

// call derives a context bounded by the per-call timeout.
func (r *DockerRuntime) call(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, r.config.CallTimeout)
}

// EnsureNetwork creates the challenge network if it does not already exist.
func (r *DockerRuntime) EnsureNetwork(ctx context.Context) error {
	ctx, cancel := r.call(ctx)
	defer cancel()

	netCfg := r.config.Network
	if _, _, err := net.ParseCIDR(netCfg.Subnet); err != nil {
		return fmt.Errorf("%w: subnet %q: %s", ErrNetworkConfig, netCfg.Subnet, err)
	}
	if net.ParseIP(netCfg.Gateway) == nil {
		return fmt.Errorf("%w: gateway %q", ErrNetworkConfig, netCfg.Gateway)
	}

	existing, err := r.api.NetworkList(ctx, network.ListOptions{
		Filters: filters.NewArgs(filters.Arg("name", netCfg.Name)),
	})
	if err != nil {
		return &RuntimeError{Op: "list networks", Err: err}
	}
	// The name filter matches substrings.
	for i := range existing {
		if existing[i].Name == netCfg.Name {
			return nil
		}
	}

	_, err = r.api.NetworkCreate(ctx, netCfg.Name, network.CreateOptions{
		Driver: "bridge",
		IPAM: &network.IPAM{
			Config: []network.IPAMConfig{{Subnet: netCfg.Subnet, Gateway: netCfg.Gateway}},
		},
		Options: map[string]string{bridgeNameOption: netCfg.Bridge},
		Labels:  map[string]string{LabelType: "network"},
	})
	if err != nil {
		if cerrdefs.IsConflict(err) {
			return nil
		}
		return &RuntimeError{Op: "create network", Container: netCfg.Name, Err: err}
	}

	slogger.L(ctx).Info("created challenge network", "network", netCfg.Name, "subnet", netCfg.Subnet)
	return nil
}

// PullImageIfAbsent pulls ref when the engine does not have it locally.
// The pull is bounded by PullTimeout rather than the per-call timeout.
func (r *DockerRuntime) PullImageIfAbsent(ctx context.Context, ref string) error {
	present, err := r.imagePresent(ctx, ref)
	if err != nil || present {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, r.config.PullTimeout)
	defer cancel()

	slogger.L(ctx).Info("pulling image", "image", ref)
	rc, err := r.api.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return &RuntimeError{Op: "pull image", Container: ref, Err: err}
	}
	defer rc.Close()

	// The pull only completes once the progress stream is drained. Registry
	// failures arrive as error messages inside the stream.
	if err := jsonmessage.DisplayJSONMessagesStream(rc, io.Discard, 0, false, nil); err != nil {
		return &RuntimeError{Op: "pull image", Container: ref, Err: err}
	}
	return nil
}

func (r *DockerRuntime) imagePresent(ctx context.Context, ref string) (bool, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	_, err := r.api.ImageInspect(ctx, ref)
	switch {
	case err == nil:
		return true, nil
	case cerrdefs.IsNotFound(err):
		return false, nil
	default:
		return false, &RuntimeError{Op: "inspect image", Container: ref, Err: err}
	}
}

// StartInstance creates and starts a challenge container.
func (r *DockerRuntime) StartInstance(ctx context.Context, spec *StartSpec) (string, error) {
	if err := spec.validate(); err != nil {
		return "", err
	}

	// A missing image surfaces as a create error below.
	if err := r.PullImageIfAbsent(ctx, spec.Challenge.Image); err != nil {
		slogger.L(ctx).Warn("image pull failed, trying local image", "image", spec.Challenge.Image, "error", err)
	}

	containerPort, err := nat.NewPort("tcp", strconv.Itoa(spec.Challenge.Port))
	if err != nil {
		return "", fmt.Errorf("%w: %s", ErrInvalidSpec, err)
	}

	cfg, hostCfg, netCfg := r.buildCreateConfig(spec, containerPort)

	callCtx, cancel := r.call(ctx)
	defer cancel()

	resp, err := r.api.ContainerCreate(callCtx, cfg, hostCfg, netCfg, nil, spec.Name)
	if err != nil {
		// The engine may have registered the name before failing.
		r.removeQuietly(ctx, spec.Name)
		return "", &RuntimeError{Op: "create", Container: spec.Name, Err: err}
	}

	if err := r.api.ContainerStart(callCtx, resp.ID, dockercontainer.StartOptions{}); err != nil {
		r.removeQuietly(ctx, resp.ID)
		return "", &RuntimeError{Op: "start", Container: spec.Name, Err: err}
	}

	slogger.L(ctx).Info("started challenge container",
		"container", spec.Name, "id", shortID(resp.ID), "host_port", spec.HostPort)
	return resp.ID, nil
}

func (r *DockerRuntime) buildCreateConfig(spec *StartSpec, containerPort nat.Port) (
	*dockercontainer.Config, *dockercontainer.HostConfig, *network.NetworkingConfig,
) {
	labels := Labels{
		Type:       TypeChallengeInstance,
		Challenge:  spec.Challenge.Slug,
		InstanceID: spec.InstanceID,
		Owner:      spec.OwnerID,
		HostPort:   spec.HostPort,
	}.Map()
	if r.config.Traefik {
		for k, v := range traefikLabels(spec.InstanceID, r.config.Domain, spec.Challenge.Port) {
			labels[k] = v
		}
	}

	cfg := &dockercontainer.Config{
		Image:        spec.Challenge.Image,
		ExposedPorts: nat.PortSet{containerPort: struct{}{}},
		Env: []string{
			"CHALLENGE_NAME=" + spec.Challenge.Name,
			"CHALLENGE_SLUG=" + spec.Challenge.Slug,
			"INSTANCE_ID=" + spec.InstanceID,
		},
		Labels: labels,
	}
	if r.config.HealthCheck {
		cfg.Healthcheck = &dockercontainer.HealthConfig{
			Test:        []string{"CMD-SHELL", fmt.Sprintf("curl -f http://localhost:%d/ || exit 1", spec.Challenge.Port)},
			Interval:    healthInterval,
			Timeout:     healthTimeout,
			Retries:     healthRetries,
			StartPeriod: healthStartPeriod,
		}
	}

	pids := r.config.PidsLimit
	hostCfg := &dockercontainer.HostConfig{
		PortBindings: nat.PortMap{
			containerPort: []nat.PortBinding{{HostIP: "0.0.0.0", HostPort: strconv.Itoa(spec.HostPort)}},
		},
		RestartPolicy: dockercontainer.RestartPolicy{Name: dockercontainer.RestartPolicyDisabled},
		NetworkMode:   dockercontainer.NetworkMode(r.config.Network.Name),
		Resources: dockercontainer.Resources{
			Memory:    r.config.Memory,
			CPUShares: r.config.CPUShares,
			PidsLimit: &pids,
		},
	}

	netCfg := &network.NetworkingConfig{
		EndpointsConfig: map[string]*network.EndpointSettings{
			r.config.Network.Name: {},
		},
	}

	return cfg, hostCfg, netCfg
}

// StopContainer stops and removes a container, returning its bound host ports.
func (r *DockerRuntime) StopContainer(ctx context.Context, id string) ([]int, error) {
	// The grace period runs inside the engine call, so it extends the budget.
	ctx, cancel := context.WithTimeout(ctx, r.config.CallTimeout+r.config.StopTimeout)
	defer cancel()

	info, err := r.api.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &RuntimeError{Op: "inspect", Container: id, Err: err}
	}
	ports := boundHostPorts(&info)

	timeout := int(r.config.StopTimeout.Seconds())
	if err := r.api.ContainerStop(ctx, id, dockercontainer.StopOptions{Timeout: &timeout}); err != nil {
		if !cerrdefs.IsNotFound(err) {
			return nil, &RuntimeError{Op: "stop", Container: id, Err: err}
		}
	}

	if err := r.api.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{Force: true}); err != nil {
		if !cerrdefs.IsNotFound(err) {
			return nil, &RuntimeError{Op: "remove", Container: id, Err: err}
		}
	}

	slogger.L(ctx).Info("stopped challenge container", "id", shortID(id), "ports", ports)
	return ports, nil
}

// RemoveContainer force-removes a container, ignoring missing ones.
func (r *DockerRuntime) RemoveContainer(ctx context.Context, id string) error {
	ctx, cancel := r.call(ctx)
	defer cancel()

	err := r.api.ContainerRemove(ctx, id, dockercontainer.RemoveOptions{Force: true})
	if err != nil && !cerrdefs.IsNotFound(err) {
		return &RuntimeError{Op: "remove", Container: id, Err: err}
	}
	return nil
}

// removeQuietly force-removes a partial container on a failure path.
func (r *DockerRuntime) removeQuietly(ctx context.Context, id string) {
	if err := r.RemoveContainer(context.WithoutCancel(ctx), id); err != nil {
		slogger.L(ctx).Warn("failed to remove partial container", "container", id, "error", err)
	}
}

// GetHealth reports a container's state and health probe status.
func (r *DockerRuntime) GetHealth(ctx context.Context, id string) (*Health, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	info, err := r.api.ContainerInspect(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &RuntimeError{Op: "inspect", Container: id, Err: err}
	}

	h := &Health{Status: StateUnknown, Health: "none"}
	if info.ContainerJSONBase == nil || info.State == nil {
		return h, nil
	}

	h.Status = ParseState(string(info.State.Status))
	h.Running = info.State.Running
	if info.State.Health != nil {
		h.Health = string(info.State.Health.Status)
	}
	if started, err := time.Parse(time.RFC3339Nano, info.State.StartedAt); err == nil {
		h.StartedAt = started
	}
	return h, nil
}

// ListManaged returns all containers carrying the management label.
func (r *DockerRuntime) ListManaged(ctx context.Context) ([]Container, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	summaries, err := r.api.ContainerList(ctx, dockercontainer.ListOptions{
		All:     true,
		Filters: filters.NewArgs(filters.Arg("label", managedFilter())),
	})
	if err != nil {
		return nil, &RuntimeError{Op: "list containers", Err: err}
	}

	result := make([]Container, 0, len(summaries))
	for i := range summaries {
		result = append(result, summaryToContainer(&summaries[i]))
	}
	return result, nil
}

// BoundPorts returns the host ports published by every running container,
// managed or not.
func (r *DockerRuntime) BoundPorts(ctx context.Context) ([]int, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	summaries, err := r.api.ContainerList(ctx, dockercontainer.ListOptions{})
	if err != nil {
		return nil, &RuntimeError{Op: "list containers", Err: err}
	}

	var ports []int
	for i := range summaries {
		for _, p := range summaries[i].Ports {
			if p.PublicPort != 0 {
				ports = append(ports, int(p.PublicPort))
			}
		}
	}
	ports = dedupe(ports)
	sort.Ints(ports)
	return ports, nil
}

// Logs returns the last tail lines of the container's stdout and stderr.
func (r *DockerRuntime) Logs(ctx context.Context, id string, tail int) (string, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	rc, err := r.api.ContainerLogs(ctx, id, dockercontainer.LogsOptions{
		ShowStdout: true,
		ShowStderr: true,
		Timestamps: true,
		Tail:       strconv.Itoa(tail),
	})
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return "", ErrNotFound
		}
		return "", &RuntimeError{Op: "logs", Container: id, Err: err}
	}
	defer rc.Close()

	// One buffer for both streams keeps frames in the order the engine sent them.
	var out bytes.Buffer
	if _, err := stdcopy.StdCopy(&out, &out, rc); err != nil {
		return "", &RuntimeError{Op: "read logs", Container: id, Err: err}
	}

	return out.String(), nil
}

// Stats samples the container's CPU, memory and network usage once.
func (r *DockerRuntime) Stats(ctx context.Context, id string) (*Stats, error) {
	ctx, cancel := r.call(ctx)
	defer cancel()

	resp, err := r.api.ContainerStatsOneShot(ctx, id)
	if err != nil {
		if cerrdefs.IsNotFound(err) {
			return nil, ErrNotFound
		}
		return nil, &RuntimeError{Op: "stats", Container: id, Err: err}
	}
	defer resp.Body.Close()

	var raw dockercontainer.StatsResponse
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, &RuntimeError{Op: "decode stats", Container: id, Err: err}
	}

	return convertStats(&raw), nil
}

func convertStats(raw *dockercontainer.StatsResponse) *Stats {
	s := &Stats{
		MemoryUsage: raw.MemoryStats.Usage,
		MemoryLimit: raw.MemoryStats.Limit,
	}

	cpuDelta := float64(raw.CPUStats.CPUUsage.TotalUsage) - float64(raw.PreCPUStats.CPUUsage.TotalUsage)
	systemDelta := float64(raw.CPUStats.SystemUsage) - float64(raw.PreCPUStats.SystemUsage)
	cpus := float64(raw.CPUStats.OnlineCPUs)
	if cpus == 0 {
		cpus = float64(len(raw.CPUStats.CPUUsage.PercpuUsage))
	}
	if cpuDelta > 0 && systemDelta > 0 {
		s.CPUPercent = cpuDelta / systemDelta * cpus * 100
	}

	if s.MemoryLimit > 0 {
		s.MemoryPercent = float64(s.MemoryUsage) / float64(s.MemoryLimit) * 100
	}

	for _, n := range raw.Networks {
		s.NetworkRx += n.RxBytes
		s.NetworkTx += n.TxBytes
	}
	return s
}

// boundHostPorts collects the host ports published by an inspected container.
func boundHostPorts(info *dockercontainer.InspectResponse) []int {
	if info.NetworkSettings == nil {
		return nil
	}

	var ports []int
	for _, bindings := range info.NetworkSettings.Ports {
		for _, b := range bindings {
			if p, err := strconv.Atoi(b.HostPort); err == nil && p > 0 {
				ports = append(ports, p)
			}
		}
	}
	return dedupe(ports)
}

func summaryToContainer(s *dockercontainer.Summary) Container {
	names := make([]string, 0, len(s.Names))
	for _, n := range s.Names {
		names = append(names, strings.TrimPrefix(n, "/"))
	}

	var ports []int
	for _, p := range s.Ports {
		if p.PublicPort != 0 {
			ports = append(ports, int(p.PublicPort))
		}
	}

	return Container{
		ID:        s.ID,
		Names:     names,
		Ports:     dedupe(ports),
		Labels:    ParseLabels(s.Labels),
		State:     ParseState(string(s.State)),
		Status:    s.Status,
		CreatedAt: time.Unix(s.Created, 0),
	}
}

// dedupe removes repeated ports; IPv4 and IPv6 bindings report the same port twice.
func dedupe(ports []int) []int {
	if len(ports) < 2 {
		return ports
	}
	seen := make(map[int]bool, len(ports))
	out := ports[:0]
	for _, p := range ports {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

func shortID(id string) string {
	if len(id) > 12 {
		return id[:12]
	}
	return id
}
