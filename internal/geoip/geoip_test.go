package geoip

import (
	"net"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFromRanges(t *testing.T) {
	r, err := FromRanges(Range{Net: "10.0.0.0/8", Country: "us"}, Range{Net: "192.168.1.0/24", Country: "DE"})
	require.NoError(t, err)

	assert.Equal(t, "US", r.Country(net.ParseIP("10.1.2.3")))
	assert.Equal(t, "DE", r.Country(net.ParseIP("192.168.1.7")))
	assert.Equal(t, "", r.Country(net.ParseIP("8.8.8.8")))
	assert.Equal(t, "", r.Country(nil))

	_, err = FromRanges(Range{Net: "nope"})
	assert.Error(t, err)
}

func TestOpenJSONFallback(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ranges.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"net":"127.0.0.0/8","country":"GB"}]`), 0o600))

	r, err := Open(path)
	require.NoError(t, err)
	defer r.Close()
	assert.Equal(t, "GB", r.Country(net.ParseIP("127.0.0.1")))
}

func TestOpenMissing(t *testing.T) {
	_, err := Open(filepath.Join(t.TempDir(), "missing.mmdb"))
	assert.Error(t, err)
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	assert.Equal(t, "", r.Country(net.ParseIP("1.1.1.1")))
	assert.NoError(t, r.Close())
}
