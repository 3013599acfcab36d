package market

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockFeedHistoryIsBounded(t *testing.T) {
	feed := NewMockFeed(50000, 100, 200, 7)

	closes, err := feed.CloseHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, closes, 200)

	// Each price read extends the walk; history stays capped.
	for i := 0; i < 50; i++ {
		_, err := feed.CurrentPrice(context.Background())
		require.NoError(t, err)
	}
	closes, err = feed.CloseHistory(context.Background())
	require.NoError(t, err)
	assert.Len(t, closes, 200)
}

func TestMockFeedPricesStayPositive(t *testing.T) {
	// A tiny start price with a big step would walk below zero without
	// the floor.
	feed := NewMockFeed(1, 10, 50, 3)
	for i := 0; i < 200; i++ {
		price, err := feed.CurrentPrice(context.Background())
		require.NoError(t, err)
		assert.True(t, price.IsPositive(), "price went non-positive on step %d", i)
	}
}

func TestMockFeedIsDeterministicPerSeed(t *testing.T) {
	a := NewMockFeed(50000, 100, 50, 42)
	b := NewMockFeed(50000, 100, 50, 42)

	ca, err := a.CloseHistory(context.Background())
	require.NoError(t, err)
	cb, err := b.CloseHistory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ca, cb)
}
