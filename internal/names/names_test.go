package names

import (
	"bytes"
	"context"
	"log"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResolver(t *testing.T) {
	r := NewResolver(
		map[string]string{"AA": "sauna", "BB": "fridge"},
		map[string]string{"BB": "freezer"},
	)

	assert.Equal(t, "sauna", r.Resolve("AA"))
	assert.Equal(t, "freezer", r.Resolve("BB"))
	assert.Equal(t, Unknown, r.Resolve("CC"))
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, Unknown, NewResolver().Resolve("AA"))
}

func TestLoadFile_Stdin(t *testing.T) {
	var logs bytes.Buffer
	table, err := LoadFile("-", strings.NewReader(`{"FB:72:49:EA:C7:4A": "test"}`), log.New(&logs, "", 0))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"FB:72:49:EA:C7:4A": "test"}, table)
	assert.Empty(t, logs.String())
}

func TestLoadFile_Path(t *testing.T) {
	path := filepath.Join(t.TempDir(), "names.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"AA": "balcony", "BB": ""}`), 0o600))

	table, err := LoadFile(path, nil, log.New(&bytes.Buffer{}, "", 0))

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AA": "balcony", "BB": ""}, table)
}

func TestLoadFile_MissingPathIsAnError(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "nope.json"), nil, log.New(&bytes.Buffer{}, "", 0))
	assert.Error(t, err)
}

func TestLoadFile_BadContentYieldsEmptyTable(t *testing.T) {
	cases := map[string]string{
		"not json":     `{oops`,
		"array":        `["AA", "BB"]`,
		"number value": `{"AA": 3}`,
		"nested":       `{"AA": {"name": "x"}}`,
		"empty input":  ``,
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			var logs bytes.Buffer
			table, err := LoadFile("-", strings.NewReader(in), log.New(&logs, "", 0))

			require.NoError(t, err)
			assert.Empty(t, table)
			assert.NotNil(t, table)
			assert.Contains(t, logs.String(), "unable to load mappings")
		})
	}
}

func TestLoadRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	mr.HSet("ruuvi:names", "AA", "attic", "BB", "cellar")

	table, err := LoadRedis(context.Background(), RedisOpts{Addr: mr.Addr(), Key: "ruuvi:names", Timeout: time.Second})

	require.NoError(t, err)
	assert.Equal(t, map[string]string{"AA": "attic", "BB": "cellar"}, table)
}

func TestLoadRedis_MissingKeyIsEmpty(t *testing.T) {
	mr := miniredis.RunT(t)

	table, err := LoadRedis(context.Background(), RedisOpts{Addr: mr.Addr(), Key: "absent", Timeout: time.Second})

	require.NoError(t, err)
	assert.Empty(t, table)
}

func TestLoadRedis_Unreachable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := LoadRedis(context.Background(), RedisOpts{Addr: addr, Key: "ruuvi:names", Timeout: 200 * time.Millisecond})
	assert.Error(t, err)
}
