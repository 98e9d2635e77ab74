package ecs_test

import (
	"testing"

	"github.com/argus-labs/lattice/pkg/ecs"
	. "github.com/argus-labs/lattice/pkg/ecs/internal/testutils" //nolint:revive // test payloads
	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSearch_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		params  ecs.SearchParam
		wantErr error
	}{
		{
			name:    "empty component list",
			params:  ecs.SearchParam{Find: []string{}, Match: ecs.MatchExact},
			wantErr: ecs.ErrInvalidSearch,
		},
		{
			name:    "invalid match type",
			params:  ecs.SearchParam{Find: []string{"position"}, Match: "invalid"},
			wantErr: ecs.ErrInvalidSearch,
		},
		{
			name:    "negative limit",
			params:  ecs.SearchParam{Find: []string{"position"}, Match: ecs.MatchExact, Limit: -1},
			wantErr: ecs.ErrInvalidSearch,
		},
		{
			name:    "unregistered component",
			params:  ecs.SearchParam{Find: []string{"unregistered"}, Match: ecs.MatchExact},
			wantErr: ecs.ErrComponentNotFound,
		},
		{
			name:   "valid params",
			params: ecs.SearchParam{Find: []string{"position"}, Match: ecs.MatchExact, Where: "position.X > 0"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			w := newWorld(t)

			_, err := w.Search(tt.params)
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.True(t, eris.Is(err, tt.wantErr), "got %v", err)
			} else {
				assert.NoError(t, err)
			}
		})
	}

	w := newWorld(t)
	_, err := w.Search(ecs.SearchParam{Find: []string{"health"}, Match: ecs.MatchExact, Where: "health.Value >"})
	assert.Error(t, err, "syntax errors are reported")
}

func TestSearch_FindAndMatch(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	a := w.Spawn(position.Init(Vec2{X: 1}))
	b := w.Spawn(position.Init(Vec2{X: 5}), player)
	c := w.Spawn(position.Init(Vec2{X: 9}), player, health)
	w.Step()

	ids := func(results []map[string]any) []uint32 {
		out := make([]uint32, 0, len(results))
		for _, r := range results {
			out = append(out, r["_id"].(uint32))
		}
		return out
	}

	tests := []struct {
		name   string
		params ecs.SearchParam
		want   []ecs.Entity
	}{
		{
			name:   "exact match",
			params: ecs.SearchParam{Find: []string{"position"}, Match: ecs.MatchExact},
			want:   []ecs.Entity{a},
		},
		{
			name:   "contains match",
			params: ecs.SearchParam{Find: []string{"position", "player"}, Match: ecs.MatchContains},
			want:   []ecs.Entity{b, c},
		},
		{
			name: "where clause on a field",
			params: ecs.SearchParam{
				Find:  []string{"position"},
				Match: ecs.MatchContains,
				Where: "position.X > 2 && _id != 0",
			},
			want: []ecs.Entity{b, c},
		},
		{
			name: "where clause on a tag",
			params: ecs.SearchParam{
				Find:  []string{"position", "health"},
				Match: ecs.MatchContains,
				Where: "health.Value == 100 && player",
			},
			want: []ecs.Entity{c},
		},
		{
			name:   "no node of that exact shape",
			params: ecs.SearchParam{Find: []string{"health"}, Match: ecs.MatchExact},
			want:   []ecs.Entity{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results, err := w.Search(tt.params)
			require.NoError(t, err)
			want := make([]uint32, 0, len(tt.want))
			for _, e := range tt.want {
				want = append(want, uint32(e))
			}
			assert.ElementsMatch(t, want, ids(results))
		})
	}
}

func TestSearch_Limit(t *testing.T) {
	t.Parallel()
	w := newWorld(t)

	for range 5 {
		w.Spawn(player)
	}
	w.Step()

	results, err := w.Search(ecs.SearchParam{Find: []string{"player"}, Match: ecs.MatchExact, Limit: 2})
	require.NoError(t, err)
	assert.Len(t, results, 2)
	assert.Equal(t, true, results[0]["player"])
}
