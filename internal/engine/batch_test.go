package engine

import (
	"context"
	"testing"

	"github.com/jonathan/job-pricer/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPriceBatch_PreservesOrder(t *testing.T) {
	f := newFixture()
	e := f.engine()

	invalid := request()
	invalid.Country = ""
	junior := request()
	junior.ExperienceYears = ptr(1)

	reqs := []*types.JobRequest{request(), invalid, junior, request()}
	items, err := e.PriceBatch(context.Background(), reqs, snapshot(), 2)
	require.NoError(t, err)
	require.Len(t, items, 4)

	for i, item := range items {
		assert.Equal(t, i, item.Index)
	}
	assert.NoError(t, items[0].Err)
	assert.ErrorIs(t, items[1].Err, types.ErrInvalidJobRequest)
	assert.Nil(t, items[1].Result)
	require.NotNil(t, items[2].Result)
	assert.Equal(t, 70000.0, items[2].Result.BaseRange.Min)
	assert.Equal(t, items[0].Result.FinalRange, items[3].Result.FinalRange)
}

func TestPriceBatch_Canceled(t *testing.T) {
	f := newFixture()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.engine().PriceBatch(ctx, []*types.JobRequest{request(), request()}, snapshot(), 0)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestPriceBatch_Empty(t *testing.T) {
	items, err := newFixture().engine().PriceBatch(context.Background(), nil, snapshot(), 3)

	require.NoError(t, err)
	assert.Empty(t, items)
}
