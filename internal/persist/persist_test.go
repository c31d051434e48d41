package persist

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/gravitas-games/storagehub/internal/config"
	"github.com/gravitas-games/storagehub/internal/storage"
)

var testKey = Key{CharacterID: "hero", WorldID: "forest"}

func sampleRecord() *Record {
	rec := NewRecord()
	rec.Tier = 2
	rec.RegisteredChests = []storage.ChestEntry{{X: 4, Y: 9, Enabled: true}, {X: -3, Y: 2, Enabled: false}}
	rec.RememberedStations = []int{77, 18}
	rec.SpecialUnlocks = []string{"lihzahrd_altar"}
	rec.Favorites = []int{22}
	rec.SortMode = storage.SortCount
	rec.CategoryFilter = "material"
	return rec
}

func TestNormalize(t *testing.T) {
	rec := &Record{
		Tier:               -2,
		RegisteredChests:   []storage.ChestEntry{{X: 1, Y: 1, Enabled: true}, {X: 2, Y: 1, Enabled: true}, {X: 1, Y: 1, Enabled: false}},
		RememberedStations: []int{18, -1, 16, 18},
		SpecialUnlocks:     []string{" Altar ", "altar", ""},
		Favorites:          []int{0, 9, 9, 3},
		SortMode:           "loudest",
		CategoryFilter:     "hats",
	}
	rec.Normalize()

	if rec.Version != CurrentVersion || rec.Tier != 0 {
		t.Fatalf("version=%d tier=%d", rec.Version, rec.Tier)
	}
	wantChests := []storage.ChestEntry{{X: 1, Y: 1, Enabled: false}, {X: 2, Y: 1, Enabled: true}}
	if !reflect.DeepEqual(rec.RegisteredChests, wantChests) {
		t.Errorf("chests = %+v", rec.RegisteredChests)
	}
	if !reflect.DeepEqual(rec.RememberedStations, []int{16, 18}) {
		t.Errorf("stations = %v", rec.RememberedStations)
	}
	if !reflect.DeepEqual(rec.SpecialUnlocks, []string{"altar"}) || !rec.HasUnlock("ALTAR") {
		t.Errorf("unlocks = %v", rec.SpecialUnlocks)
	}
	if !reflect.DeepEqual(rec.Favorites, []int{3, 9}) {
		t.Errorf("favorites = %v", rec.Favorites)
	}
	if rec.SortMode != storage.SortName || rec.CategoryFilter != storage.FilterAll {
		t.Errorf("sort=%q filter=%q", rec.SortMode, rec.CategoryFilter)
	}
}

func TestKeyValidate(t *testing.T) {
	for _, k := range []Key{{}, {CharacterID: "a"}, {WorldID: "w"}, {CharacterID: " ", WorldID: "w"}} {
		if err := k.Validate(); !errors.Is(err, ErrInvalidKey) {
			t.Errorf("%+v: err = %v", k, err)
		}
	}
}

func TestFileStore(t *testing.T) {
	ctx := context.Background()
	s := NewFileStore(t.TempDir())

	rec, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("Load missing: %v", err)
	}
	if !reflect.DeepEqual(rec, NewRecord()) {
		t.Fatalf("missing record = %+v", rec)
	}

	want := sampleRecord()
	if err := s.Save(ctx, testKey, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.Normalize()
	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}

	// a second save rotates the first file into .bak; losing the primary
	// falls back to it
	if err := s.Save(ctx, testKey, NewRecord()); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(s.Path(testKey)); err != nil {
		t.Fatal(err)
	}
	got, err = s.Load(ctx, testKey)
	if err != nil || got.Tier != 2 {
		t.Fatalf("backup fallback: tier=%v err=%v", got, err)
	}

	if _, err := s.Load(ctx, Key{}); !errors.Is(err, ErrInvalidKey) {
		t.Fatalf("invalid key err = %v", err)
	}
}

func TestFileStoreKeepsDefaultsForMissingFields(t *testing.T) {
	s := NewFileStore(t.TempDir())
	path := s.Path(testKey)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("tier: 3\nsomething_new: true\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rec, err := s.Load(context.Background(), testKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rec.Tier != 3 || !rec.StationMemoryEnabled || rec.SortMode != storage.SortName {
		t.Fatalf("record = %+v", rec)
	}
}

func TestFileStoreSanitizesPaths(t *testing.T) {
	s := NewFileStore("root")
	got := s.Path(Key{CharacterID: "../evil", WorldID: "a/b"})
	if want := filepath.Join("root", "a_b", "___evil.yaml"); got != want {
		t.Fatalf("Path = %q, want %q", got, want)
	}
}

func TestSQLiteStore(t *testing.T) {
	ctx := context.Background()
	s, err := OpenSQLite(filepath.Join(t.TempDir(), "db", "storagehub.db"))
	if err != nil {
		t.Fatalf("OpenSQLite: %v", err)
	}
	defer s.Close()

	rec, err := s.Load(ctx, testKey)
	if err != nil || !reflect.DeepEqual(rec, NewRecord()) {
		t.Fatalf("missing record = %+v err=%v", rec, err)
	}

	want := sampleRecord()
	if err := s.Save(ctx, testKey, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	want.Tier = 4
	if err := s.Save(ctx, testKey, want); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Save(ctx, Key{CharacterID: "alt", WorldID: "forest"}, NewRecord()); err != nil {
		t.Fatal(err)
	}

	want.Normalize()
	got, err := s.Load(ctx, testKey)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v\nwant %+v", got, want)
	}

	ids, err := s.Characters(ctx, "forest")
	if err != nil || !reflect.DeepEqual(ids, []string{"alt", "hero"}) {
		t.Fatalf("Characters = %v err=%v", ids, err)
	}
}

// fakeRedis answers Get/Set from a map the way a live server would.
type fakeRedis struct {
	data   map[string]string
	setErr error
	closed bool
}

func (f *fakeRedis) Get(ctx context.Context, key string) *redis.StringCmd {
	v, ok := f.data[key]
	if !ok {
		return redis.NewStringResult("", redis.Nil)
	}
	return redis.NewStringResult(v, nil)
}

func (f *fakeRedis) Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd {
	if f.setErr != nil {
		return redis.NewStatusResult("", f.setErr)
	}
	switch v := value.(type) {
	case []byte:
		f.data[key] = string(v)
	case string:
		f.data[key] = v
	}
	return redis.NewStatusResult("OK", nil)
}

func (f *fakeRedis) Close() error {
	f.closed = true
	return nil
}

func TestRedisStore(t *testing.T) {
	ctx := context.Background()
	fake := &fakeRedis{data: map[string]string{}}
	s := NewRedisStore(fake, "hub")

	rec, err := s.Load(ctx, testKey)
	if err != nil || !reflect.DeepEqual(rec, NewRecord()) {
		t.Fatalf("missing record = %+v err=%v", rec, err)
	}

	want := sampleRecord()
	if err := s.Save(ctx, testKey, want); err != nil {
		t.Fatalf("Save: %v", err)
	}
	doc, ok := fake.data["hub:hero:forest"]
	if !ok || !strings.Contains(doc, `"registeredChests"`) {
		t.Fatalf("stored keys = %v", fake.data)
	}

	want.Normalize()
	got, err := s.Load(ctx, testKey)
	if err != nil || !reflect.DeepEqual(got, want) {
		t.Fatalf("got %+v err=%v", got, err)
	}

	fake.setErr = errors.New("READONLY")
	if err := s.Save(ctx, testKey, want); err == nil {
		t.Fatal("expected Save to surface the server error")
	}

	fake.data["hub:hero:forest"] = "{not json"
	if _, err := s.Load(ctx, testKey); err == nil {
		t.Fatal("expected a decode error")
	}

	if err := s.Close(); err != nil || !fake.closed {
		t.Fatal("Close did not reach the client")
	}
}

func TestOpen(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	s, err := Open(ctx, config.PersistenceConfig{Backend: "file", Dir: dir})
	if err != nil {
		t.Fatalf("file backend: %v", err)
	}
	if _, ok := s.(*FileStore); !ok {
		t.Fatalf("file backend returned %T", s)
	}

	s, err = Open(ctx, config.PersistenceConfig{Backend: "sqlite", SQLitePath: filepath.Join(dir, "x.db")})
	if err != nil {
		t.Fatalf("sqlite backend: %v", err)
	}
	s.Close()

	if _, err := Open(ctx, config.PersistenceConfig{Backend: "etcd"}); err == nil {
		t.Fatal("expected an error for an unknown backend")
	}
}
