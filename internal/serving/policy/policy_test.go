package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setOf(vs ...int64) map[int64]struct{} {
	s := make(map[int64]struct{}, len(vs))
	for _, v := range vs {
		s[v] = struct{}{}
	}
	return s
}

func TestDecide_LatestN(t *testing.T) {
	observed := setOf(1, 2, 3, 4)
	loaded := setOf(3, 4)
	toLoad, toUnload, toServe := Decide(observed, loaded, NewLatest(2))

	assert.Equal(t, setOf(3, 4), toServe)
	assert.Empty(t, toLoad)
	assert.Empty(t, toUnload)
}

func TestDecide_LatestN_PartialLoadable(t *testing.T) {
	observed := setOf(1, 2)
	loaded := setOf()
	toLoad, toUnload, toServe := Decide(observed, loaded, NewLatest(5))

	assert.Equal(t, setOf(1, 2), toServe)
	assert.Equal(t, setOf(1, 2), toLoad)
	assert.Empty(t, toUnload)
}

func TestDecide_Specific_Churn(t *testing.T) {
	cfg := NewSpecific(1, 3, 4)

	observed := setOf(1, 4)
	loaded := setOf()
	_, _, toServe := Decide(observed, loaded, cfg)
	require.Equal(t, setOf(1, 4), toServe)

	observed = setOf(1, 3)
	loaded = setOf(1, 4)
	toLoad, toUnload, toServe := Decide(observed, loaded, cfg)
	assert.Equal(t, setOf(1, 3), toServe)
	assert.Equal(t, setOf(3), toLoad)
	assert.Equal(t, setOf(4), toUnload)
}

func TestDecide_All(t *testing.T) {
	observed := setOf(1, 2, 3)
	loaded := setOf(2)
	toLoad, toUnload, toServe := Decide(observed, loaded, NewAll())

	assert.Equal(t, observed, toServe)
	assert.Equal(t, setOf(1, 3), toLoad)
	assert.Empty(t, toUnload)
}

func TestDecide_EmptyObservedIsEmptyEverything(t *testing.T) {
	cfgs := []Config{NewLatest(3), NewSpecific(1, 2), NewAll()}
	for _, cfg := range cfgs {
		toLoad, toUnload, toServe := Decide(setOf(), setOf(1, 2), cfg)
		assert.Empty(t, toServe)
		assert.Empty(t, toLoad)
		assert.Equal(t, setOf(1, 2), toUnload)
	}
}

// TestDecide_Idempotent covers property 4 of §8: re-applying Decide with
// loaded' = loaded ∪ to_load \ to_unload must reproduce the same toServe and
// leave nothing left to load or unload.
func TestDecide_Idempotent(t *testing.T) {
	observed := setOf(5, 6, 7, 8)
	loaded := setOf(6, 9)
	cfg := NewLatest(3)

	toLoad, toUnload, toServe := Decide(observed, loaded, cfg)

	nextLoaded := make(map[int64]struct{})
	for v := range loaded {
		if _, unloaded := toUnload[v]; !unloaded {
			nextLoaded[v] = struct{}{}
		}
	}
	for v := range toLoad {
		nextLoaded[v] = struct{}{}
	}

	toLoad2, toUnload2, toServe2 := Decide(observed, nextLoaded, cfg)
	assert.Equal(t, toServe, toServe2)
	assert.Empty(t, toLoad2)
	assert.Empty(t, toUnload2)
}
