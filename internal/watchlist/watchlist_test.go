package watchlist_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/url"
	"strings"
	"testing"

	"mediawiki-watchlist/internal/config"
	"mediawiki-watchlist/internal/model"
	"mediawiki-watchlist/internal/watchlist"
)

var wikiA = config.Wiki{
	DisplayName:    "A",
	APIURL:         "https://a.example/w/api.php",
	IndexURL:       "https://a.example/w/index.php",
	Username:       "Alice",
	WatchlistToken: "tok",
}

type fakeQuerier struct {
	params url.Values
	resp   map[string]any
	err    error
}

func (f *fakeQuerier) Query(_ context.Context, p url.Values) (map[string]any, error) {
	f.params = p
	return f.resp, f.err
}

func decode(t *testing.T, s string) map[string]any {
	t.Helper()
	var m map[string]any
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	if err := dec.Decode(&m); err != nil {
		t.Fatalf("decode fixture: %v", err)
	}
	return m
}

func TestReduce_KeepsOldestPerPage(t *testing.T) {
	items := []model.WatchlistItem{
		{PageID: 1, OldRevID: 10, Title: "P1"},
		{PageID: 1, OldRevID: 7, Title: "P1"},
		{PageID: 2, OldRevID: 5, Title: "P2"},
		{PageID: 1, OldRevID: 9, Title: "P1"},
	}
	r := watchlist.Reduce(items)
	if r.Len() != 2 {
		t.Fatalf("len=%d want=2", r.Len())
	}
	if it, _ := r.Get(1); it.OldRevID != 7 {
		t.Fatalf("page 1 old_revid=%d want=7", it.OldRevID)
	}
}

// 首个重复项也必须参与比较
func TestReduce_FirstDuplicateCompared(t *testing.T) {
	r := watchlist.Reduce([]model.WatchlistItem{
		{PageID: 3, OldRevID: 30},
		{PageID: 3, OldRevID: 29},
	})
	if it, _ := r.Get(3); it.OldRevID != 29 {
		t.Fatalf("old_revid=%d want=29", it.OldRevID)
	}
}

func TestReduce_PermutationInvariant(t *testing.T) {
	base := []model.WatchlistItem{
		{PageID: 5, OldRevID: 40},
		{PageID: 5, OldRevID: 12},
		{PageID: 5, OldRevID: 33},
		{PageID: 5, OldRevID: 21},
	}
	var permute func(k int)
	perm := append([]model.WatchlistItem(nil), base...)
	permute = func(k int) {
		if k == len(perm) {
			if it, _ := watchlist.Reduce(perm).Get(5); it.OldRevID != 12 {
				t.Fatalf("order %v: old_revid=%d want=12", perm, it.OldRevID)
			}
			return
		}
		for i := k; i < len(perm); i++ {
			perm[k], perm[i] = perm[i], perm[k]
			permute(k + 1)
			perm[k], perm[i] = perm[i], perm[k]
		}
	}
	permute(0)
}

func TestReduce_EmptyAndOrdering(t *testing.T) {
	if r := watchlist.Reduce(nil); r.Len() != 0 || len(r.Items()) != 0 {
		t.Fatalf("expect empty reduced watchlist")
	}
	r := watchlist.Reduce([]model.WatchlistItem{
		{PageID: 30, OldRevID: 1},
		{PageID: 2, OldRevID: 1},
		{PageID: 11, OldRevID: 1},
	})
	got := r.Items()
	if got[0].PageID != 2 || got[1].PageID != 11 || got[2].PageID != 30 {
		t.Fatalf("items not in ascending pageid order: %+v", got)
	}
}

func TestDiffURL(t *testing.T) {
	got := watchlist.DiffURL(wikiA, model.WatchlistItem{PageID: 1, OldRevID: 7})
	if want := "https://a.example/w/index.php?pageid=1&diff=next&oldid=7"; got != want {
		t.Fatalf("got %q want %q", got, want)
	}
}

func TestFetch_Params(t *testing.T) {
	q := &fakeQuerier{resp: decode(t, `{"query":{"watchlist":[]}}`)}
	items, err := watchlist.Fetch(context.Background(), q, wikiA)
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("items=%d want=0", len(items))
	}
	want := map[string]string{
		"action": "query", "list": "watchlist", "wlallrev": "1", "wldir": "newer",
		"wllimit": "max", "wlshow": "unread", "wlowner": "Alice", "wltoken": "tok",
	}
	for k, v := range want {
		if got := q.params.Get(k); got != v {
			t.Fatalf("param %s=%q want %q", k, got, v)
		}
	}
}

func TestFetch_TransportError(t *testing.T) {
	boom := errors.New("connection refused")
	_, err := watchlist.Fetch(context.Background(), &fakeQuerier{err: boom}, wikiA)
	if !errors.Is(err, boom) {
		t.Fatalf("expect wrapped transport error, got %v", err)
	}
}

func TestExtract_Items(t *testing.T) {
	raw := decode(t, `{"batchcomplete":"","query":{"watchlist":[
		{"type":"edit","ns":0,"title":"Foo","pageid":1,"revid":11,"old_revid":10},
		{"type":"edit","ns":0,"title":"Foo","pageid":1,"revid":8,"old_revid":7}
	]}}`)
	items, err := watchlist.Extract(wikiA, raw)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(items) != 2 || items[1].OldRevID != 7 || items[0].Title != "Foo" {
		t.Fatalf("unexpected items: %+v", items)
	}
}

func TestExtract_Outer(t *testing.T) {
	raw := decode(t, `{"batchcomplete":"","warnings":{"main":{"*":"x"}}}`)
	_, err := watchlist.Extract(wikiA, raw)
	var outer *watchlist.FormatOuterError
	if !errors.As(err, &outer) {
		t.Fatalf("expect FormatOuterError, got %v", err)
	}
	if outer.Wiki.DisplayName != "A" || !strings.Contains(string(outer.Raw), `"warnings"`) {
		t.Fatalf("outer error lacks context: %+v", outer)
	}
}

func TestExtract_Inner(t *testing.T) {
	cases := []string{
		`{"query":{"watchlist":{"not":"a list"}}}`,
		`{"query":{"watchlist":[{"pageid":"x","old_revid":1,"title":"t"}]}}`,
		`{"query":{"watchlist":[{"pageid":1,"title":"t"}]}}`,
	}
	for _, c := range cases {
		_, err := watchlist.Extract(wikiA, decode(t, c))
		var inner *watchlist.FormatInnerError
		if !errors.As(err, &inner) {
			t.Fatalf("%s: expect FormatInnerError, got %v", c, err)
		}
		if inner.Wiki.DisplayName != "A" || inner.Err == nil {
			t.Fatalf("inner error lacks context: %+v", inner)
		}
	}
}

type fakeSource struct {
	items []model.WatchlistItem
	err   error
}

func (f fakeSource) Fetch(context.Context, config.Wiki) ([]model.WatchlistItem, error) {
	return f.items, f.err
}

func TestFetchReduced(t *testing.T) {
	r, err := watchlist.FetchReduced(context.Background(), fakeSource{items: []model.WatchlistItem{
		{PageID: 1, OldRevID: 10}, {PageID: 1, OldRevID: 7},
	}}, wikiA)
	if err != nil || r.Len() != 1 {
		t.Fatalf("reduced=%v err=%v", r, err)
	}
	if _, err := watchlist.FetchReduced(context.Background(), fakeSource{err: errors.New("x")}, wikiA); err == nil {
		t.Fatal("expect error")
	}
}
