package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alecthomas/kong"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cartdom "thriftmall/internal/domain/cart"
	rl "thriftmall/internal/domain/ratelimit"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestMergeFiles(t *testing.T) {
	remote := writeFile(t, "remote.json", `{"v1":{"vendorName":"Thrift Corner","products":{
		"v1-p1-M-Red":{"id":"p1","quantity":1,"selectedSize":"M","selectedColor":"Red"}}}}`)
	local := writeFile(t, "local.json", `{"v1":{"vendorName":"Thrift Corner","products":{
		"v1-p1-M-Red":{"id":"p1","quantity":2,"selectedSize":"M","selectedColor":"Red"}}}}`)

	var buf bytes.Buffer
	require.NoError(t, mergeFiles(&buf, remote, local))

	var res cartdom.MergeResult
	require.NoError(t, json.Unmarshal(buf.Bytes(), &res))
	assert.Equal(t, 3, res.Merged["v1"].Products["v1-p1-M-Red"].Quantity)
	require.Len(t, res.Conflicts, 1)
	assert.Equal(t, cartdom.ConflictQuantitySummed, res.Conflicts[0].How)
}

func TestMergeFiles_BadJSON(t *testing.T) {
	remote := writeFile(t, "remote.json", `{}`)
	local := writeFile(t, "local.json", `[1,2]`)

	err := mergeFiles(&bytes.Buffer{}, remote, local)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "local.json")
}

func TestPrintUsage(t *testing.T) {
	var buf bytes.Buffer
	reset := time.Date(2026, 6, 1, 13, 0, 0, 0, time.UTC)
	require.NoError(t, printUsage(&buf, []rl.Usage{
		{Window: rl.WindowUniversal, Count: 3, Limit: 100, Remaining: 97, ResetAt: reset},
		{Window: rl.WindowMinute, Count: 0, Limit: 8, Remaining: 8},
	}))

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.True(t, strings.HasPrefix(lines[0], "WINDOW"))
	assert.Contains(t, lines[1], "2026-06-01T13:00:00Z")
	assert.Contains(t, lines[2], "-")
}

func TestCLIParsesSubcommands(t *testing.T) {
	var cli CLI
	parser, err := kong.New(&cli, kong.Name("usagectl"))
	require.NoError(t, err)

	kctx, err := parser.Parse([]string{"sweep", "--older-than", "48h", "--also", "usage_custom"})
	require.NoError(t, err)
	assert.Equal(t, "sweep", kctx.Command())
	assert.Equal(t, 48*time.Hour, cli.Sweep.OlderThan)
	assert.Equal(t, []string{"usage_custom"}, cli.Sweep.Collections)
	assert.Equal(t, "usage_metadata", cli.Collection)

	_, err = parser.Parse([]string{"inspect", "--user", "u1"})
	assert.Error(t, err, "--action is required")
}
