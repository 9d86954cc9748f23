package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

func TestAdapter_ApplyRoundTrip(t *testing.T) {
	ctx := context.Background()
	a := New(model.NotebookSide, model.Item{SourceID: "n1", Title: "Old"})

	result, err := a.Apply(ctx, adapter.ApplyRequest{
		Creates: []model.Item{{SourceID: "b1", Origin: model.BookmarkSide, Title: "Go", URL: "https://go.dev", Tags: []string{"Lang"}}},
		Updates: []model.Update{{TargetID: "n1", Item: model.Item{Title: "New"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)

	created := result.Outcomes[0]
	require.True(t, created.OK())
	stored, ok := a.Get(created.ResultID)
	require.True(t, ok)
	assert.Equal(t, model.NotebookSide, stored.Origin)
	assert.Equal(t, []string{"lang"}, stored.Tags)
	assert.Equal(t, created.Item.Fingerprint, stored.Fingerprint)

	updated, _ := a.Get("n1")
	assert.Equal(t, "New", updated.Title)

	items, err := a.List(ctx)
	require.NoError(t, err)
	assert.Len(t, items, 2)
	require.NoError(t, model.ValidateSnapshot(model.NotebookSide, items))
	assert.Equal(t, Calls{List: 1, Apply: 1}, a.Calls())
}

func TestAdapter_FailureInjection(t *testing.T) {
	ctx := context.Background()
	a := New(model.BookmarkSide, model.Item{SourceID: "b1"}, model.Item{SourceID: "b2"})
	a.FailOn("b1", adapter.ErrInvalid)

	result, err := a.Apply(ctx, adapter.ApplyRequest{
		Deletes: []model.Delete{{TargetID: "b1"}, {TargetID: "b2"}},
	})
	require.NoError(t, err)
	assert.ErrorIs(t, result.Outcomes[0].Err, adapter.ErrInvalid)
	assert.True(t, result.Outcomes[1].OK())
	assert.Equal(t, 1, a.Len())

	a.FailList(adapter.ErrNetwork)
	_, err = a.List(ctx)
	assert.ErrorIs(t, err, adapter.ErrNetwork)
	assert.ErrorIs(t, a.Ping(ctx), adapter.ErrNetwork)
}
