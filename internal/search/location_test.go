package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Aman-CERP/feedsearch/internal/entity"
)

func TestExpander_Expand(t *testing.T) {
	h := newHarness(t, 0)
	e := NewExpander(h.store)
	ctx := context.Background()

	tests := []struct {
		name string
		set  LocationSet
		want []string
	}{
		{"empty input", LocationSet{}, []string{}},
		{"single bookmark", LocationSet{Bookmarks: []int64{10}}, []string{"b:10"}},
		{"single bin", LocationSet{Bins: []int64{7}}, []string{"n:7"}},
		{"folder with bookmarks", LocationSet{Folders: []int64{2}}, []string{"b:10", "b:11"}},
		{"nested folders with cycle", LocationSet{Folders: []int64{1}}, []string{"b:10", "b:11", "b:12", "n:7"}},
		{"dangling ids", LocationSet{Folders: []int64{404}, Bookmarks: []int64{405}, Bins: []int64{406}}, []string{}},
		{"mixed dangling and live", LocationSet{Folders: []int64{404}, Bookmarks: []int64{11}}, []string{"b:11"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := e.Expand(ctx, tt.set)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExpander_IdempotentAndMonotonic(t *testing.T) {
	h := newHarness(t, 0)
	e := NewExpander(h.store)
	ctx := context.Background()

	// Given: a parent folder and one of its subfolders
	parent, err := e.Expand(ctx, LocationSet{Folders: []int64{1}})
	require.NoError(t, err)
	child, err := e.Expand(ctx, LocationSet{Folders: []int64{3}})
	require.NoError(t, err)

	// Then: the parent expansion contains the child's
	assert.Subset(t, parent, child)

	// And: expanding twice is stable
	again, err := e.Expand(ctx, LocationSet{Folders: []int64{1, 1}, Bookmarks: []int64{10}})
	require.NoError(t, err)
	assert.Equal(t, parent, again)
}

func TestExpander_LeavesOf(t *testing.T) {
	h := newHarness(t, 0)
	e := NewExpander(h.store)

	leaves, err := e.LeavesOf(context.Background(), &entity.Article{ID: 1, FeedLink: feedNews, BinID: 7})
	require.NoError(t, err)
	assert.Equal(t, []string{"b:12", "n:7"}, leaves)

	leaves, err = e.LeavesOf(context.Background(), &entity.Article{ID: 2, FeedLink: "https://unknown/feed"})
	require.NoError(t, err)
	assert.Empty(t, leaves)
}

func TestLocationConditions(t *testing.T) {
	h := newHarness(t, 0)
	languages := LocationsValue(LocationSet{Folders: []int64{2}})

	// Is: articles in any leaf below the folder
	assert.Equal(t, []int64{1, 2, 3}, h.one(t, NewCondition(FieldLocation, Is, languages)))

	// IsNot: everything else, including unlocated articles
	assert.Equal(t, []int64{4, 5, 6}, h.one(t, NewCondition(FieldLocation, IsNot, languages)))

	// Bin membership
	assert.Equal(t, []int64{4}, h.one(t, NewCondition(FieldLocation, Is, LocationsValue(LocationSet{Bins: []int64{7}}))))

	// Dangling selection matches nothing, and its negation everything
	dangling := LocationsValue(LocationSet{Folders: []int64{999}})
	assert.Empty(t, h.one(t, NewCondition(FieldLocation, Is, dangling)))
	assert.Equal(t, []int64{1, 2, 3, 4, 5, 6}, h.one(t, NewCondition(FieldLocation, IsNot, dangling)))
}
