package backend

import (
	"testing"

	"github.com/cachegrid/query/internal/engine"
	"github.com/cachegrid/query/internal/keytrans"
	"github.com/cachegrid/query/services"
	"github.com/cachegrid/query/store"
)

func bridgedCache(t *testing.T) (*store.CacheStore, *engine.Engine, *keytrans.Handler) {
	t.Helper()
	eng := engine.New()
	keys := keytrans.NewHandler()
	cache := store.NewCacheStore("movies")
	NewIndexingBridge(eng, keys, nil).Attach(cache)
	return cache, eng, keys
}

func TestIndexingBridge_PutIndexes(t *testing.T) {
	cache, eng, _ := bridgedCache(t)

	if err := cache.Put("alien", map[string]interface{}{"title": "Alien"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}
	if err := cache.Put(42, map[string]interface{}{"title": "Heat"}); err != nil {
		t.Fatalf("Put failed: %v", err)
	}

	if got := eng.DocumentCount(); got != 2 {
		t.Errorf("expected 2 indexed documents, got %d", got)
	}

	q := eng.CreateQuery()
	q.SetFilter(&services.FilterExpression{Filters: []services.FilterCondition{
		{Field: "title", Operator: services.OpEq, Value: "Heat"},
	}})
	infos, err := q.EntityInfos()
	if err != nil {
		t.Fatalf("EntityInfos failed: %v", err)
	}
	if len(infos) != 1 || infos[0].DocumentID != "I:42" {
		t.Errorf("expected hit under transformed key 'I:42', got %v", infos)
	}
}

func TestIndexingBridge_PutReplacesDocument(t *testing.T) {
	cache, eng, _ := bridgedCache(t)

	_ = cache.Put("alien", map[string]interface{}{"title": "Alien"})
	_ = cache.Put("alien", map[string]interface{}{"title": "Alien, Director's Cut"})

	if got := eng.DocumentCount(); got != 1 {
		t.Errorf("expected 1 document after overwrite, got %d", got)
	}

	q := eng.CreateQuery()
	q.SetFilter(&services.FilterExpression{Filters: []services.FilterCondition{
		{Field: "title", Operator: services.OpEq, Value: "Alien"},
	}})
	n, err := q.ResultSize()
	if err != nil {
		t.Fatalf("ResultSize failed: %v", err)
	}
	if n != 0 {
		t.Errorf("expected the old document version to be gone, got %d hits", n)
	}
}

func TestIndexingBridge_RemoveUnindexes(t *testing.T) {
	cache, eng, _ := bridgedCache(t)

	_ = cache.Put("alien", map[string]interface{}{"title": "Alien"})
	cache.Remove("alien")

	if got := eng.DocumentCount(); got != 0 {
		t.Errorf("expected 0 documents after remove, got %d", got)
	}
}

func TestIndexingBridge_EvictKeepsDocument(t *testing.T) {
	cache, eng, _ := bridgedCache(t)

	_ = cache.Put("alien", map[string]interface{}{"title": "Alien"})
	cache.Evict("alien")

	// The entry is gone from memory but stays indexed; the query layer's null
	// filtering handles the gap.
	if got := eng.DocumentCount(); got != 1 {
		t.Errorf("expected evicted entry to stay indexed, got %d documents", got)
	}
	if _, ok := cache.Get("alien"); ok {
		t.Error("expected entry to be absent from memory")
	}
}

func TestIndexingBridge_UnsupportedKeyDoesNotBlockWrite(t *testing.T) {
	cache, eng, _ := bridgedCache(t)

	type oddKey struct{ A int }
	if err := cache.Put(oddKey{A: 1}, map[string]interface{}{"title": "x"}); err != nil {
		t.Fatalf("cache write must succeed even when indexing cannot: %v", err)
	}
	if got := eng.DocumentCount(); got != 0 {
		t.Errorf("expected nothing indexed for untransformable key, got %d", got)
	}
	if got := cache.Size(); got != 1 {
		t.Errorf("expected entry in cache, got size %d", got)
	}
}

func TestDefaultMapper(t *testing.T) {
	mapper := DefaultMapper{}

	t.Run("map passes through", func(t *testing.T) {
		doc, err := mapper.ToDocument(map[string]interface{}{"a": 1})
		if err != nil {
			t.Fatalf("ToDocument failed: %v", err)
		}
		if doc["a"] != 1 {
			t.Errorf("unexpected document %v", doc)
		}
	})

	t.Run("struct flattens via JSON", func(t *testing.T) {
		type movie struct {
			Title string `json:"title"`
			Year  int    `json:"year"`
		}
		doc, err := mapper.ToDocument(movie{Title: "Alien", Year: 1979})
		if err != nil {
			t.Fatalf("ToDocument failed: %v", err)
		}
		if doc["title"] != "Alien" {
			t.Errorf("expected title field, got %v", doc)
		}
		if doc["year"] != float64(1979) {
			t.Errorf("expected JSON-decoded year as float64, got %v (%T)", doc["year"], doc["year"])
		}
	})

	t.Run("scalar wraps under value", func(t *testing.T) {
		doc, err := mapper.ToDocument("plain string")
		if err != nil {
			t.Fatalf("ToDocument failed: %v", err)
		}
		if doc["value"] != "plain string" {
			t.Errorf("expected scalar under 'value', got %v", doc)
		}
	})

	t.Run("nil is an error", func(t *testing.T) {
		if _, err := mapper.ToDocument(nil); err == nil {
			t.Error("expected error for nil value")
		}
	})
}
