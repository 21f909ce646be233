package registry_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"

	"github.com/tailored-agentic-units/registry-agent/observability"
	"github.com/tailored-agentic-units/registry-agent/registry"
)

func TestStaticStore_Active(t *testing.T) {
	got, err := registry.StaticStore(registry.SampleManufacturers()).Active(context.Background())
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}

	if len(got) != 11 {
		t.Fatalf("got %d manufacturers, want 11", len(got))
	}
	for i := 1; i < len(got); i++ {
		if got[i-1].Name > got[i].Name {
			t.Errorf("not sorted: %q before %q", got[i-1].Name, got[i].Name)
		}
	}
	for _, m := range got {
		if m.Name == "Kay" {
			t.Error("inactive manufacturer returned")
		}
	}
}

func TestStaticStore_CanceledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := registry.StaticStore(nil).Active(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("got %v, want context.Canceled", err)
	}
}

type countingStore struct {
	records []registry.Manufacturer
	err     error
	calls   atomic.Int32
	closed  atomic.Bool
}

func (s *countingStore) Active(ctx context.Context) ([]registry.Manufacturer, error) {
	s.calls.Add(1)
	if s.err != nil {
		return nil, s.err
	}
	return s.records, nil
}

func (s *countingStore) Close() error {
	s.closed.Store(true)
	return nil
}

func TestContext_Lifecycle(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{records: []registry.Manufacturer{{ID: 1, Name: "Fender"}}}
	rec := observability.NewRecorder()

	rc := registry.WithStore(store, rec)

	if rc.Loaded() {
		t.Error("cache loaded before Init")
	}

	if err := rc.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}
	if !rc.Loaded() {
		t.Error("cache not loaded after Init")
	}
	if got := rc.Records(); len(got) != 1 || got[0].Name != "Fender" {
		t.Errorf("got records %+v", got)
	}

	store.records = append(store.records, registry.Manufacturer{ID: 2, Name: "Gibson"})
	if err := rc.Refresh(ctx); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	if got := len(rc.Records()); got != 2 {
		t.Errorf("got %d records after refresh, want 2", got)
	}

	if err := rc.Teardown(ctx); err != nil {
		t.Fatalf("Teardown failed: %v", err)
	}
	if rc.Loaded() {
		t.Error("cache still loaded after Teardown")
	}
	if !store.closed.Load() {
		t.Error("store not closed on Teardown")
	}
	if err := rc.Refresh(ctx); !errors.Is(err, registry.ErrClosed) {
		t.Errorf("Refresh after Teardown: got %v, want ErrClosed", err)
	}

	for _, typ := range []observability.EventType{registry.EventInit, registry.EventRefresh, registry.EventTeardown} {
		if len(rec.OfType(typ)) != 1 {
			t.Errorf("got %d %s events, want 1", len(rec.OfType(typ)), typ)
		}
	}
}

func TestContext_RefreshFailureKeepsSnapshot(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{records: []registry.Manufacturer{{ID: 1, Name: "Fender"}}}
	rc := registry.WithStore(store, nil)

	if err := rc.Init(ctx); err != nil {
		t.Fatalf("Init failed: %v", err)
	}

	store.err = errors.New("connection reset")
	if err := rc.Refresh(ctx); err == nil {
		t.Fatal("expected refresh error")
	}

	if got := rc.Records(); len(got) != 1 || got[0].Name != "Fender" {
		t.Errorf("snapshot lost after failed refresh: %+v", got)
	}
}

func TestContext_Records_IsCopy(t *testing.T) {
	ctx := context.Background()
	rc := registry.WithStore(registry.StaticStore{{ID: 1, Name: "Fender"}}, nil)
	if err := rc.Init(ctx); err != nil {
		t.Fatal(err)
	}

	records := rc.Records()
	records[0].Name = "mutated"

	if rc.Records()[0].Name != "Fender" {
		t.Error("mutating returned records changed the cache")
	}
}

func TestContext_NoStore(t *testing.T) {
	ctx := context.Background()
	rc := registry.NewContext(nil, nil)

	if err := rc.Init(ctx); err != nil {
		t.Fatalf("Init without store failed: %v", err)
	}
	if rc.Loaded() {
		t.Error("registry without store reports loaded")
	}
	if _, err := rc.Live(ctx); err == nil {
		t.Error("expected Live to fail without a store")
	}
}

func TestContext_Live(t *testing.T) {
	ctx := context.Background()
	store := &countingStore{records: []registry.Manufacturer{{ID: 1, Name: "Fender"}}}
	rc := registry.WithStore(store, nil)
	if err := rc.Init(ctx); err != nil {
		t.Fatal(err)
	}

	if _, err := rc.Live(ctx); err != nil {
		t.Fatalf("Live failed: %v", err)
	}
	if got := store.calls.Load(); got != 2 {
		t.Errorf("got %d store reads, want 2", got)
	}
}

func TestSQLStore_SeedAndActive(t *testing.T) {
	ctx := context.Background()

	store, err := registry.OpenSQL(ctx, "")
	if err != nil {
		t.Fatalf("OpenSQL failed: %v", err)
	}
	defer store.Close()

	empty, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active on empty database failed: %v", err)
	}
	if len(empty) != 0 {
		t.Errorf("got %d manufacturers from empty database", len(empty))
	}

	if err := store.Seed(ctx, registry.SampleManufacturers()); err != nil {
		t.Fatalf("Seed failed: %v", err)
	}

	got, err := store.Active(ctx)
	if err != nil {
		t.Fatalf("Active failed: %v", err)
	}
	if len(got) != 11 {
		t.Fatalf("got %d manufacturers, want 11", len(got))
	}

	var rick *registry.Manufacturer
	for i := range got {
		if got[i].Name == "Rickenbacker" {
			rick = &got[i]
		}
	}
	if rick == nil {
		t.Fatal("manufacturer with null status missing")
	}
	if rick.Website != "" || rick.FoundedYear != 1931 {
		t.Errorf("got %+v", *rick)
	}
}
