package scraper

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const registryYAML = `
sources:
  - name: divadlo
    type: json
    url: https://example.com/feed.json
  - name: letna
    type: html
    url: https://example.com/program
    outdoor: true
    selectors:
      item: li.event
      title: h3
      date: .date
      image: img@src
  - name: spa
    type: html
    url: https://example.com/spa
    render: true
    selectors:
      item: .card
      title: .card-title
      date: time@datetime
  - name: archived
    type: json
    url: https://example.com/old.json
    disabled: true
`

func TestParseRegistry(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)
	require.Len(t, reg.Sources, 4)

	letna := reg.Sources[1]
	assert.Equal(t, KindHTML, letna.Kind)
	require.NotNil(t, letna.Outdoor)
	assert.True(t, *letna.Outdoor)
	assert.Equal(t, "img@src", letna.Selectors.Image)
	assert.True(t, reg.Sources[2].Render)
}

func TestRegistry_Build(t *testing.T) {
	reg, err := ParseRegistry([]byte(registryYAML))
	require.NoError(t, err)

	sources := reg.Build(BuildOptions{Timeout: 5 * time.Second, Location: time.UTC})

	require.Len(t, sources, 3)
	assert.IsType(t, &JSONSource{}, sources[0])
	assert.IsType(t, &HTMLSource{}, sources[1])
	assert.Equal(t, "spa", sources[2].Name())
	assert.IsType(t, &ChromeFetcher{}, sources[2].(*HTMLSource).fetcher)
	assert.IsType(t, &HTTPFetcher{}, sources[1].(*HTMLSource).fetcher)
}

func TestParseRegistry_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		yaml    string
		wantErr string
	}{
		{"not yaml", "sources: [", "decode sources file"},
		{"missing name", "sources:\n  - type: json\n    url: https://x", "name is required"},
		{"duplicate", "sources:\n  - {name: a, type: json, url: https://x}\n  - {name: a, type: json, url: https://y}", "duplicate name"},
		{"missing url", "sources:\n  - {name: a, type: json}", "url is required"},
		{"bad type", "sources:\n  - {name: a, type: rss, url: https://x}", "type must be"},
		{"html selectors", "sources:\n  - {name: a, type: html, url: https://x, selectors: {item: li}}", "need item, title and date"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseRegistry([]byte(tt.yaml))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(registryYAML), 0o600))

	reg, err := LoadRegistry(path)
	require.NoError(t, err)
	assert.Len(t, reg.Sources, 4)

	_, err = LoadRegistry(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
