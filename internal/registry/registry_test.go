package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/veridexhq/veridex/internal/model"
)

const sampleYAML = `
sources:
  - id: sec-press
    name: SEC Press Releases
    kind: regulator
    url: https://www.sec.gov/news/pressreleases.json
  - id: chainwire
    name: Chainwire
    kind: publisher
    url: https://chainwire.example/news
    weight: 0.8
creators:
  - id: cr-alpha
    name: Alpha Calls
    channel: https://videos.example/alpha
    handle: "@alphacalls"
`

func TestParse_Valid(t *testing.T) {
	reg, err := Parse([]byte(sampleYAML))
	require.NoError(t, err)

	sources := reg.Sources()
	require.Len(t, sources, 2)
	// id order, not file order
	require.Equal(t, "chainwire", sources[0].ID)
	require.Equal(t, model.SourcePublisher, sources[0].Kind)
	require.Equal(t, 0.8, sources[0].Weight)
	require.Equal(t, model.SourceRegulator, sources[1].Kind)
	require.Equal(t, 1.0, sources[1].Weight, "unset weight defaults to 1")

	creators := reg.Creators()
	require.Len(t, creators, 1)
	require.Equal(t, "@alphacalls", creators[0].Handle)

	_, ok := reg.Source("sec-press")
	require.True(t, ok)
	_, ok = reg.Creator("cr-missing")
	require.False(t, ok)
}

func TestParse_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing url", "sources:\n  - id: a\n    kind: publisher\n"},
		{"missing id", "sources:\n  - url: https://x.example\n"},
		{"unknown kind", "sources:\n  - id: a\n    kind: telegraph\n    url: https://x.example\n"},
		{"duplicate source id", "sources:\n  - id: a\n    url: https://x.example\n  - id: a\n    url: https://y.example\n"},
		{"creator missing channel", "creators:\n  - id: cr-a\n    name: A\n"},
		{"id shared between source and creator", "sources:\n  - id: a\n    url: https://x.example\ncreators:\n  - id: a\n    channel: https://v.example\n"},
		{"not yaml", "{{nope"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.yaml))
			require.Error(t, err)
		})
	}
}

func TestParse_KindDefaultsToPublisher(t *testing.T) {
	reg, err := Parse([]byte("sources:\n  - id: a\n    url: https://x.example\n"))
	require.NoError(t, err)
	require.Equal(t, model.SourcePublisher, reg.Sources()[0].Kind)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sampleYAML), 0o644))

	reg, err := LoadFile(path)
	require.NoError(t, err)
	require.Len(t, reg.Sources(), 2)

	_, err = LoadFile(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}
