package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPort(t *testing.T) {
	t.Setenv("PORT", "8085")
	p, err := Port("PORT", "8080")
	require.NoError(t, err)
	assert.Equal(t, "8085", p)

	t.Setenv("PORT", "99999")
	_, err = Port("PORT", "8080")
	require.Error(t, err)
}

func TestTypedLookups(t *testing.T) {
	t.Setenv("CFG_INT", "12")
	t.Setenv("CFG_BAD_INT", "x")
	t.Setenv("CFG_BOOL", "yes")
	t.Setenv("CFG_DUR", "90s")
	t.Setenv("CFG_SECS", "30")
	t.Setenv("CFG_LIST", " a, ,b ,c")

	assert.Equal(t, 12, Int("CFG_INT", 1))
	assert.Equal(t, 1, Int("CFG_BAD_INT", 1))
	assert.True(t, Bool("CFG_BOOL", false))
	assert.False(t, Bool("CFG_MISSING_BOOL", false))
	assert.Equal(t, 90*time.Second, Duration("CFG_DUR", time.Second))
	assert.Equal(t, 30*time.Second, Duration("CFG_SECS", time.Second))
	assert.Equal(t, []string{"a", "b", "c"}, List("CFG_LIST", ""))
}

func TestLoadDotenvMissingFileIsIgnored(t *testing.T) {
	require.NoError(t, LoadDotenv(t.TempDir()+"/does-not-exist.env"))
}
