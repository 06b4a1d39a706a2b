package version

import (
	"encoding/json"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersion_IsNotEmpty(t *testing.T) {
	assert.NotEmpty(t, Version)
}

func TestString_ContainsAllFields(t *testing.T) {
	s := String()
	assert.Contains(t, s, "logseek")
	assert.Contains(t, s, Version)
	assert.Contains(t, s, Commit)
}

func TestShort_IsVersionOnly(t *testing.T) {
	assert.Equal(t, Version, Short())
}

func TestGetInfo_RoundTripsAsJSON(t *testing.T) {
	data, err := json.Marshal(GetInfo())
	require.NoError(t, err)

	var info BuildInfo
	require.NoError(t, json.Unmarshal(data, &info))
	assert.Equal(t, Version, info.Version)
	assert.Equal(t, runtime.GOOS, info.OS)
	assert.Equal(t, runtime.GOARCH, info.Arch)
}
