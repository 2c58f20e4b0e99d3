package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var mockFeeds = []feedFile{
	{name: "divadlo", path: "../../data/mock/divadlo_feed.json"},
	{name: "kultura", path: "../../data/mock/kultura_feed.json"},
}

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestRun_MockFeedsPass(t *testing.T) {
	var out bytes.Buffer
	code := run(&out, "", mockFeeds, 0.8)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Records: 8 decoded, 6 after dedup at 0.80")
	assert.Contains(t, out.String(), "WARN  kultura: item 3")
	assert.Contains(t, out.String(), "RESULT: PASS")
}

func TestRun_DuplicateIDsFail(t *testing.T) {
	feeds := []feedFile{mockFeeds[0], mockFeeds[0]}

	var out bytes.Buffer
	code := run(&out, "", feeds, 0.8)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "duplicate external_id: divadlo-101 appears 2 times")
	assert.Contains(t, out.String(), "RESULT: FAIL")
}

func TestRun_UnreadableFeedFails(t *testing.T) {
	broken := writeFile(t, "broken.json", `{"events": [`)

	var out bytes.Buffer
	code := run(&out, "", []feedFile{{name: "broken", path: broken}}, 0.8)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "ERROR broken: decode feed")
}

func TestRun_Registry(t *testing.T) {
	good := writeFile(t, "good.yaml", `
sources:
  - name: divadlo
    type: json
    url: https://example.com/feed.json
    render: true
  - name: old
    type: json
    url: https://example.com/old.json
    disabled: true
`)
	bad := writeFile(t, "bad.yaml", "sources:\n  - {name: a, type: rss, url: https://x}\n")

	var out bytes.Buffer
	assert.Equal(t, 0, run(&out, good, nil, 0.8), out.String())
	assert.Contains(t, out.String(), "WARN  divadlo: render is ignored for json sources")
	assert.Contains(t, out.String(), "WARN  old: disabled")

	out.Reset()
	assert.Equal(t, 1, run(&out, bad, nil, 0.8))
	assert.Contains(t, out.String(), "type must be")
}

func TestParseFeedArgs(t *testing.T) {
	feeds, err := parseFeedArgs([]string{"a=feed.json", "b=x=y.json"})
	require.NoError(t, err)
	assert.Equal(t, []feedFile{{name: "a", path: "feed.json"}, {name: "b", path: "x=y.json"}}, feeds)

	for _, arg := range []string{"feed.json", "=feed.json", "a="} {
		_, err := parseFeedArgs([]string{arg})
		assert.Error(t, err, arg)
	}
}
