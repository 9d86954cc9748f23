package notebooklm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/klauern/marksync/internal/adapter"
	"github.com/klauern/marksync/internal/model"
)

// fakeNotebook serves one notebook. When replaceOnUpdate is set, PATCH
// answers with a fresh id, the way re-imported sources behave.
type fakeNotebook struct {
	mu              sync.Mutex
	sources         map[string]source
	next            int
	replaceOnUpdate bool
	rateLimited     int
}

func (f *fakeNotebook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.rateLimited > 0 {
		f.rateLimited--
		w.WriteHeader(http.StatusTooManyRequests)
		return
	}

	const base = "/notebooks/nb-1"
	path := r.URL.Path
	switch {
	case r.Method == http.MethodGet && path == base:
		_ = json.NewEncoder(w).Encode(map[string]string{"id": "nb-1"})
	case r.Method == http.MethodGet && path == base+"/sources":
		ids := make([]string, 0, len(f.sources))
		for id := range f.sources {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		// One source per page to exercise page tokens.
		start := 0
		if tok := r.URL.Query().Get("page_token"); tok != "" {
			_, _ = fmt.Sscanf(tok, "p%d", &start)
		}
		resp := listResponse{}
		if start < len(ids) {
			resp.Sources = []source{f.sources[ids[start]]}
		}
		if start+1 < len(ids) {
			resp.NextPageToken = fmt.Sprintf("p%d", start+1)
		}
		_ = json.NewEncoder(w).Encode(resp)
	case r.Method == http.MethodPost && path == base+"/sources":
		var s source
		_ = json.NewDecoder(r.Body).Decode(&s)
		f.next++
		s.ID = fmt.Sprintf("src-%d", f.next)
		f.sources[s.ID] = s
		_ = json.NewEncoder(w).Encode(s)
	case strings.HasPrefix(path, base+"/sources/"):
		id := strings.TrimPrefix(path, base+"/sources/")
		if _, ok := f.sources[id]; !ok {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		if r.Method == http.MethodDelete {
			delete(f.sources, id)
			w.WriteHeader(http.StatusNoContent)
			return
		}
		var s source
		_ = json.NewDecoder(r.Body).Decode(&s)
		s.ID = id
		if f.replaceOnUpdate {
			delete(f.sources, id)
			f.next++
			s.ID = fmt.Sprintf("src-%d", f.next)
		}
		f.sources[s.ID] = s
		_ = json.NewEncoder(w).Encode(s)
	default:
		w.WriteHeader(http.StatusBadRequest)
	}
}

func newTestAdapter(t *testing.T, url string) *Adapter {
	t.Helper()
	a, err := New(Config{
		BaseURL:    url,
		Token:      "t",
		NotebookID: "nb-1",
		Retry:      adapter.RetryPolicy{MaxRetries: 3, BaseDelay: time.Millisecond},
	})
	require.NoError(t, err)
	return a
}

func TestNew_Validation(t *testing.T) {
	_, err := New(Config{Token: "t"})
	assert.ErrorIs(t, err, ErrNotConfigured)

	_, err = New(Config{BaseURL: "http://x", NotebookID: "nb"})
	assert.ErrorIs(t, err, adapter.ErrAuth)
}

func TestList_FollowsPageTokens(t *testing.T) {
	fake := &fakeNotebook{sources: map[string]source{
		"a": {ID: "a", Title: "A", URL: "https://a.example"},
		"b": {ID: "b", Title: "B", URL: "https://b.example", Tags: []string{"X"}},
		"c": {ID: "c", Title: "C", URL: "https://c.example"},
	}, rateLimited: 1}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	items, err := newTestAdapter(t, srv.URL).List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, 3)
	assert.Equal(t, []string{"x"}, items[1].Tags)
	assert.Equal(t, model.NotebookSide, items[2].Origin)
}

func TestApply_UpdateReportsReplacementID(t *testing.T) {
	fake := &fakeNotebook{
		sources:         map[string]source{"a": {ID: "a", Title: "A"}},
		replaceOnUpdate: true,
	}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	result, err := a.Apply(context.Background(), adapter.ApplyRequest{
		Updates: []model.Update{{TargetID: "a", Item: model.Item{Title: "A2", URL: "https://a.example"}}},
	})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 1)

	o := result.Outcomes[0]
	require.True(t, o.OK())
	assert.Equal(t, "a", o.RequestID)
	assert.Equal(t, "src-1", o.ResultID)
	assert.Equal(t, "A2", o.Item.Title)
}

func TestApply_CreateAndDelete(t *testing.T) {
	fake := &fakeNotebook{sources: map[string]source{"old": {ID: "old"}}}
	srv := httptest.NewServer(fake)
	defer srv.Close()

	a := newTestAdapter(t, srv.URL)
	src := model.Item{SourceID: "b1", Origin: model.BookmarkSide, Title: "Go", URL: "https://go.dev/", Tags: []string{"Go"}}.WithFingerprint()

	result, err := a.Apply(context.Background(), adapter.ApplyRequest{
		Creates: []model.Item{src},
		Deletes: []model.Delete{{TargetID: "old"}},
	})
	require.NoError(t, err)
	assert.Empty(t, result.Failed())
	assert.Equal(t, src.Fingerprint, result.Outcomes[0].Item.Fingerprint)
	assert.NotContains(t, fake.sources, "old")
	require.NoError(t, a.Ping(context.Background()))
}
