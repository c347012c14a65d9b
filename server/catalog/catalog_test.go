package catalog

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/cyclopcam/dbh"
	"github.com/cyclopcam/logs"
	"github.com/stretchr/testify/require"
)

func openTestCatalog(t *testing.T) *Catalog {
	c, err := Open(logs.NewTestingLog(t), filepath.Join(t.TempDir(), "catalog.sqlite"))
	require.NoError(t, err)
	return c
}

func TestRegisterAndLookup(t *testing.T) {
	c := openTestCatalog(t)

	_, err := c.ByCode("0042")
	require.ErrorIs(t, err, ErrNotRegistered)

	v := &Video{
		Code:          "0042",
		OriginalName:  "tank_morning.mp4",
		VideoPath:     "videos/MVI_0042_proxy.mp4",
		KeyframesPath: "videos_keyframes/MVI_0042_keyframes.json",
		UploadedAt:    dbh.MakeIntTime(time.Now()),
	}
	require.NoError(t, c.Register(v))

	got, err := c.ByCode("0042")
	require.NoError(t, err)
	require.Equal(t, "videos/MVI_0042_proxy.mp4", got.VideoPath)

	// re-registering the same code replaces the record instead of duplicating it
	v2 := &Video{
		Code:          "0042",
		VideoPath:     "videos/MVI_0042_proxy.MP4",
		KeyframesPath: v.KeyframesPath,
		UploadedAt:    dbh.MakeIntTime(time.Now()),
	}
	require.NoError(t, c.Register(v2))
	list, err := c.List()
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Equal(t, "videos/MVI_0042_proxy.MP4", list[0].VideoPath)
}

func TestSetLastJob(t *testing.T) {
	c := openTestCatalog(t)
	require.ErrorIs(t, c.SetLastJob("0042", "job-1"), ErrNotRegistered)

	require.NoError(t, c.Register(&Video{
		Code:          "0042",
		VideoPath:     "videos/MVI_0042_proxy.mp4",
		KeyframesPath: "videos_keyframes/MVI_0042_keyframes.json",
		UploadedAt:    dbh.MakeIntTime(time.Now()),
	}))
	require.NoError(t, c.SetLastJob("0042", "job-1"))

	got, err := c.ByCode("0042")
	require.NoError(t, err)
	require.Equal(t, "job-1", got.LastJobID)
}

func TestListOrdering(t *testing.T) {
	c := openTestCatalog(t)
	for _, code := range []string{"0300", "0100", "0200"} {
		require.NoError(t, c.Register(&Video{
			Code:          code,
			VideoPath:     "videos/MVI_" + code + "_proxy.mp4",
			KeyframesPath: "videos_keyframes/MVI_" + code + "_keyframes.json",
			UploadedAt:    dbh.MakeIntTime(time.Now()),
		}))
	}
	list, err := c.List()
	require.NoError(t, err)
	require.Len(t, list, 3)
	require.Equal(t, "0100", list[0].Code)
	require.Equal(t, "0300", list[2].Code)
}
