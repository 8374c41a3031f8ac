package colors

import (
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/harrisonrobin/tripcal/pkg/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGoogleColorIDNearest(t *testing.T) {
	assert.Equal(t, "6", GoogleColorID("#f5222d"))
	assert.Equal(t, "11", GoogleColorID("#e00000"))
	assert.Equal(t, "8", GoogleColorID("#434343"))
	assert.Equal(t, "7", GoogleColorID("#039BE5"))
	assert.Equal(t, "", GoogleColorID("blue"))
	assert.Equal(t, "", GoogleColorID(""))
}

func TestPaletteParses(t *testing.T) {
	for _, s := range Palette {
		_, err := ParseHex(s.Hex)
		assert.NoError(t, err, s.Label)
	}
	assert.Equal(t, "#ff4d4f", Category(model.CategoryImmediate))
	assert.Equal(t, "#8c8c8c", Category("unknown"))
}

func TestCacheAssignsAndEvicts(t *testing.T) {
	c, err := NewCache("")
	require.NoError(t, err)
	clock := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	c.now = func() time.Time { clock = clock.Add(time.Minute); return clock }

	assert.Equal(t, NoTripColorID, c.ColorID("", ""))
	assert.Equal(t, "11", c.ColorID("red-trip", "#e00000"), "explicit colors bypass the cache")
	assert.Empty(t, c.Trips)

	for i := 0; i < len(googleEventColors); i++ {
		c.ColorID(fmt.Sprintf("t%d", i), "")
	}
	assert.Equal(t, "1", c.ColorID("t0", ""), "cached slot is stable")

	// t1 is now the least recently used.
	got := c.ColorID("newcomer", "")
	assert.Equal(t, "2", got)
	_, kept := c.Trips["t1"]
	assert.False(t, kept)
}

func TestCachePersists(t *testing.T) {
	path := CachePath(filepath.Join(t.TempDir(), "tripcal"))
	c, err := NewCache(path)
	require.NoError(t, err)
	id := c.ColorID("kyoto", "")
	require.NoError(t, c.Save())

	reloaded, err := NewCache(path)
	require.NoError(t, err)
	assert.Equal(t, id, reloaded.ColorID("kyoto", ""))

	reloaded.Forget("kyoto")
	assert.Empty(t, reloaded.Trips)
}
