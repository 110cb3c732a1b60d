package commands

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/vkngwrapper/inflight"
)

type plan struct {
	BufferingCount int
	Slots          []struct {
		Slot           int
		CurrentBucket  int
		DeferredBucket int
	}
	Frames []struct {
		Frame                int
		Slot                 int
		DestroysReleasesFrom *int
	}
}

func TestBuildPlan(t *testing.T) {
	out, err := buildPlan(3, 0)
	require.NoError(t, err)

	var result plan
	require.NoError(t, json.Unmarshal(out, &result))

	require.Equal(t, 3, result.BufferingCount)
	require.Len(t, result.Slots, 3)
	require.Equal(t, 1, result.Slots[1].CurrentBucket)
	require.Equal(t, 4, result.Slots[1].DeferredBucket)

	require.Len(t, result.Frames, 6)
	require.Nil(t, result.Frames[2].DestroysReleasesFrom)
	require.Equal(t, 1, result.Frames[4].Slot)
	require.NotNil(t, result.Frames[4].DestroysReleasesFrom)
	require.Equal(t, 1, *result.Frames[4].DestroysReleasesFrom)
}

func TestBuildPlanRejectsEmptyRing(t *testing.T) {
	_, err := buildPlan(0, 4)
	require.ErrorIs(t, err, inflight.ErrInvalidConfig)
}

func TestHighlightJSONKeepsContent(t *testing.T) {
	out, err := buildPlan(2, 1)
	require.NoError(t, err)

	highlighted := highlightJSON(string(out))
	require.Contains(t, highlighted, "BufferingCount")
	require.Contains(t, highlighted, "DestroysReleasesFrom")
}
