package asnative_test

import (
	"context"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ratio1/aerospike_native_go/pkg/driver"
	"github.com/Ratio1/aerospike_native_go/pkg/status"
)

const addLua = `function add(rec, n)
  rec["n"] = rec["n"] + n
  aerospike:update(rec)
end
`

func TestUDFLifecycle(t *testing.T) {
	c, _, fs := newClient(t)
	ctx := context.Background()
	require.NoError(t, afero.WriteFile(fs, "/srv/udf/math.lua", []byte(addLua), 0o644))

	ok, err := c.UDF().Put(ctx, "/srv/udf/math.lua", nil)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, c.UDF().Wait(ctx, "math.lua", 0, nil))

	modules, err := c.UDF().List(ctx, nil)
	require.NoError(t, err)
	require.Contains(t, modules, "math.lua")
	assert.Equal(t, driver.UDFLua, modules["math.lua"].Type)
	assert.NotEmpty(t, modules["math.lua"].Hash)

	file, err := c.UDF().Get(ctx, "math.lua", nil)
	require.NoError(t, err)
	assert.Equal(t, []byte(addLua), file.Content)
	assert.Equal(t, modules["math.lua"].Hash, file.Hash)

	require.NoError(t, c.UDF().Remove(ctx, "math.lua", nil))
	modules, err = c.UDF().List(ctx, nil)
	require.NoError(t, err)
	assert.NotContains(t, modules, "math.lua")

	assert.ErrorIs(t, c.UDF().Remove(ctx, "math.lua", nil), driver.ErrUDFNotFound)
	_, err = c.UDF().Get(ctx, "math.lua", nil)
	assert.ErrorIs(t, err, driver.ErrUDFNotFound)
}

func TestUDFPutMissingFile(t *testing.T) {
	c, _, _ := newClient(t)
	ok, err := c.UDF().Put(context.Background(), "/nope/missing.lua", nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestUDFWaitTimesOut(t *testing.T) {
	c, _, _ := newClient(t)
	start := time.Now()
	err := c.UDF().Wait(context.Background(), "never.lua", 120*time.Millisecond, nil)
	assert.Equal(t, status.Timeout, status.CodeOf(err))
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)
}
