package disk

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

const (
	basicDisk = 3001
	largeDisk = 3002
)

func TestCreateUsesLowestFreeUID(t *testing.T) {
	s := NewStore(logger.Nop())
	a, _ := s.Create(basicDisk)
	b, _ := s.Create(basicDisk)
	if a.UID != 1 || b.UID != 2 {
		t.Fatalf("uids = %d, %d", a.UID, b.UID)
	}
	s.Delete(a)
	c, err := s.Create(basicDisk)
	if err != nil || c.UID != 1 {
		t.Fatalf("reused uid = %d err=%v", c.UID, err)
	}
	if other, _ := s.Create(largeDisk); other.UID != 1 {
		t.Fatalf("uids are per type, got %d", other.UID)
	}
	if _, err := s.Create(0); !errors.Is(err, ErrInvalidIdentity) {
		t.Fatalf("type 0 err = %v", err)
	}
}

func TestCreateExhaustsAt255(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < MaxUID; i++ {
		if _, err := s.Create(basicDisk); err != nil {
			t.Fatalf("create %d: %v", i, err)
		}
	}
	if _, err := s.Create(basicDisk); !errors.Is(err, ErrNoFreeUID) {
		t.Fatalf("err = %v", err)
	}
}

func TestAddAndRemove(t *testing.T) {
	s := NewStore(nil)
	id, _ := s.Create(basicDisk)
	must(t, s.Add(id, item.Slot{ItemID: 9, Stack: 10}))
	must(t, s.Add(id, item.Slot{ItemID: 9, Stack: 5}))
	must(t, s.Add(id, item.Slot{ItemID: 9, Stack: 1, Prefix: 4}))

	d, _ := s.Get(id)
	if len(d.Items) != 2 || d.Items[0].Stack != 15 || d.Total() != 16 {
		t.Fatalf("items = %+v", d.Items)
	}
	if got := s.Remove(id, 9, 0, 20); got != 15 {
		t.Fatalf("removed %d", got)
	}
	if got := s.Remove(id, 9, 0, 1); got != 0 {
		t.Fatalf("removed %d from an empty stack", got)
	}
	d, _ = s.Get(id)
	if len(d.Items) != 1 || d.Items[0].Prefix != 4 {
		t.Fatalf("items = %+v", d.Items)
	}

	if err := s.Add(id, item.Slot{ItemID: 9, Stack: item.MaxQuantity}); !errors.Is(err, ErrDiskFull) {
		t.Fatalf("overflow err = %v", err)
	}
	if err := s.Add(id, item.Slot{ItemID: 9, Stack: 0}); !errors.Is(err, ErrInvalidStack) {
		t.Fatalf("empty stack err = %v", err)
	}
	if err := s.Add(Identity{Type: 1, UID: 1}, item.Slot{ItemID: 9, Stack: 1}); !errors.Is(err, ErrUnknownDisk) {
		t.Fatalf("unknown disk err = %v", err)
	}
}

func TestUpgradePreservesContents(t *testing.T) {
	s := NewStore(nil)
	_, _ = s.Create(basicDisk)
	second, _ := s.Create(basicDisk)
	must(t, s.Add(second, item.Slot{ItemID: 22, Stack: 40}))

	// uid 2 of the large type is free, so the disk keeps its uid
	up, err := s.Upgrade(second, largeDisk)
	if err != nil || up != (Identity{Type: largeDisk, UID: 2}) {
		t.Fatalf("upgrade = %v err=%v", up, err)
	}
	if _, ok := s.Get(second); ok {
		t.Fatal("old identity still present")
	}
	d, _ := s.Get(up)
	if d.Total() != 40 {
		t.Fatalf("contents lost: %+v", d.Items)
	}

	// uid 1 of the large type is now taken by a fresh disk
	s.Delete(up)
	taken, _ := s.Create(largeDisk)
	first := Identity{Type: basicDisk, UID: 1}
	up, err = s.Upgrade(first, largeDisk)
	if err != nil || up.UID == taken.UID || up.UID != 2 {
		t.Fatalf("collision upgrade = %v err=%v", up, err)
	}

	if _, err := s.Upgrade(Identity{Type: 9, UID: 9}, largeDisk); !errors.Is(err, ErrUnknownDisk) {
		t.Fatalf("err = %v", err)
	}
}

func TestUpgradeFailsWhenTargetTypeIsFull(t *testing.T) {
	s := NewStore(nil)
	for i := 0; i < MaxUID; i++ {
		s.Create(largeDisk)
	}
	id, _ := s.Create(basicDisk)
	if _, err := s.Upgrade(id, largeDisk); !errors.Is(err, ErrNoFreeUID) {
		t.Fatalf("err = %v", err)
	}
	if _, ok := s.Get(id); !ok {
		t.Fatal("failed upgrade removed the source disk")
	}
}

func TestParseSkipsBadLines(t *testing.T) {
	input := strings.Join([]string{
		"V|1",
		"D|3001|1",
		"I|3001|1|9|0|12",
		"I|3001|1|9|0|-3",  // non-positive stack
		"I|3001|1|0|0|5",   // non-positive item
		"I|3001|1|x|0|5",   // unparseable
		"I|3001|7|9|0|5",   // undeclared disk
		"D|3001|256",       // uid out of range
		"D|0|1",            // bad type
		"Q|something",      // unknown record
		"",
		"D|3002|4",
		"I|3002|4|22|3|1",
	}, "\n")

	var buf bytes.Buffer
	s, err := Parse(strings.NewReader(input), logger.New(&buf, false))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	want := []Identity{{Type: basicDisk, UID: 1}, {Type: largeDisk, UID: 4}}
	if !reflect.DeepEqual(s.Disks(), want) {
		t.Fatalf("disks = %v", s.Disks())
	}
	d, _ := s.Get(want[0])
	if d.Total() != 12 {
		t.Fatalf("disk 1 = %+v", d.Items)
	}
	if !strings.Contains(buf.String(), "skipped 7 malformed lines") {
		t.Fatalf("log = %q", buf.String())
	}
}

func TestParseRejectsNewerVersion(t *testing.T) {
	if _, err := Parse(strings.NewReader("V|2\n"), nil); err == nil {
		t.Fatal("expected an error for a newer format")
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "disks.dat")
	empty, err := Load(path, nil)
	if err != nil || empty.Len() != 0 {
		t.Fatalf("missing file: len=%d err=%v", empty.Len(), err)
	}

	s := NewStore(nil)
	a, _ := s.Create(largeDisk)
	b, _ := s.Create(basicDisk)
	must(t, s.Add(a, item.Slot{ItemID: 22, Stack: 7, Prefix: 2}))
	must(t, s.Add(b, item.Slot{ItemID: 9, Stack: 99}))
	must(t, s.Save(path))

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	want := "V|1\nD|3001|1\nI|3001|1|9|0|99\nD|3002|1\nI|3002|1|22|2|7\n"
	if string(raw) != want {
		t.Fatalf("file =\n%s", raw)
	}

	loaded, err := Load(path, nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !reflect.DeepEqual(loaded.Disks(), s.Disks()) {
		t.Fatalf("disks = %v", loaded.Disks())
	}
	d, _ := loaded.Get(a)
	if !reflect.DeepEqual(d.Items, []item.Slot{{ItemID: 22, Stack: 7, Prefix: 2}}) {
		t.Fatalf("items = %+v", d.Items)
	}
}

func must(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
