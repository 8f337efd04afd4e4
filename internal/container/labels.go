package container

import (
	"fmt"
	"strconv"
)

// Label keys attached to every managed container. The create path writes
// them and the list path filters on LabelType, so both go through Labels.
const (
	LabelType       = "kryzon.type"
	LabelChallenge  = "kryzon.challenge"
	LabelInstanceID = "kryzon.instance_id"
	LabelOwner      = "kryzon.owner"
	LabelHostPort   = "kryzon.host_port"

	// TypeChallengeInstance marks containers owned by the lifecycle manager.
	TypeChallengeInstance = "challenge-instance"
)

// Labels is the typed management label set.
type Labels struct {
	Type       string
	Challenge  string
	InstanceID string
	Owner      string
	HostPort   int
}

// Managed reports whether the labels mark a lifecycle-managed container.
func (l Labels) Managed() bool {
	return l.Type == TypeChallengeInstance
}

// Map renders the labels for the engine.
func (l Labels) Map() map[string]string {
	m := map[string]string{
		LabelType:       l.Type,
		LabelChallenge:  l.Challenge,
		LabelInstanceID: l.InstanceID,
		LabelOwner:      l.Owner,
	}
	if l.HostPort > 0 {
		m[LabelHostPort] = strconv.Itoa(l.HostPort)
	}
	return m
}

// ParseLabels extracts the management labels from an engine label map.
// Unknown keys are ignored.
func ParseLabels(m map[string]string) Labels {
	l := Labels{
		Type:       m[LabelType],
		Challenge:  m[LabelChallenge],
		InstanceID: m[LabelInstanceID],
		Owner:      m[LabelOwner],
	}
	if p, err := strconv.Atoi(m[LabelHostPort]); err == nil {
		l.HostPort = p
	}
	return l
}

// managedFilter is the engine label filter selecting managed containers.
func managedFilter() string {
	return LabelType + "=" + TypeChallengeInstance
}

// traefikLabels returns reverse proxy routing labels for an instance.
func traefikLabels(instanceID, domain string, port int) map[string]string {
	router := "vm-" + instanceID
	return map[string]string{
		"traefik.enable": "true",
		"traefik.http.routers." + router + ".rule":                      fmt.Sprintf("Host(`vm-%s.%s`)", instanceID, domain),
		"traefik.http.services." + router + ".loadbalancer.server.port": strconv.Itoa(port),
	}
}
