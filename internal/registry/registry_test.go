package registry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type fakeClient map[string]*ImageMetadata

func (f fakeClient) GetMetadata(_ context.Context, ref string) (*ImageMetadata, error) {
	if meta, ok := f[ref]; ok {
		return meta, nil
	}
	return nil, ErrImageNotFound
}

func TestParseExposedPorts(t *testing.T) {
	tests := []struct {
		name     string
		input    map[string]struct{}
		expected []int
	}{
		{"empty", nil, []int{}},
		{"sorted tcp", map[string]struct{}{"8080/tcp": {}, "3000/tcp": {}}, []int{3000, 8080}},
		{"bare port is tcp", map[string]struct{}{"1337": {}}, []int{1337}},
		{"skips udp", map[string]struct{}{"53/udp": {}, "80/tcp": {}}, []int{80}},
		{"skips malformed", map[string]struct{}{"http/tcp": {}, "70000/tcp": {}}, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, parseExposedPorts(tt.input))
		})
	}
}

func TestVerify(t *testing.T) {
	ctx := context.Background()
	client := fakeClient{
		"ctf/web-login:latest": {Digest: "sha256:abc", ExposedPorts: []int{3000}},
		"ctf/pwn-stack:latest": {Digest: "sha256:def"},
	}

	t.Run("image declares port", func(t *testing.T) {
		v := Verify(ctx, client, "ctf/web-login:latest", 3000)
		assert.True(t, v.OK())
		assert.Equal(t, "sha256:abc", v.Digest)
	})

	t.Run("image missing port", func(t *testing.T) {
		v := Verify(ctx, client, "ctf/pwn-stack:latest", 9999)
		assert.NoError(t, v.Err)
		assert.False(t, v.Exposed)
		assert.False(t, v.OK())
	})

	t.Run("image not found", func(t *testing.T) {
		v := Verify(ctx, client, "ctf/missing:latest", 80)
		assert.ErrorIs(t, v.Err, ErrImageNotFound)
		assert.False(t, v.OK())
	})
}
