// Package disk holds item stacks stored on portable storage disks. A disk
// is identified by its item type and a uid in [1, MaxUID]; the pair must be
// unique across the store.
package disk

import (
	"errors"
	"fmt"
	"sort"

	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

// MaxUID is the highest uid a disk type can hand out.
const MaxUID = 255

var (
	ErrInvalidIdentity = errors.New("invalid disk identity")
	ErrUnknownDisk     = errors.New("unknown disk")
	ErrNoFreeUID       = errors.New("no free disk uid")
	ErrInvalidStack    = errors.New("invalid item stack")
	ErrDiskFull        = errors.New("disk quantity overflow")
)

// Identity names one disk.
type Identity struct {
	Type int
	UID  int
}

// Valid reports whether the identity can exist in a store.
func (id Identity) Valid() bool {
	return id.Type > 0 && id.UID >= 1 && id.UID <= MaxUID
}

func (id Identity) String() string {
	return fmt.Sprintf("disk(%d/%d)", id.Type, id.UID)
}

// Disk is one disk and its contents, in insertion order.
type Disk struct {
	ID    Identity
	Items []item.Slot
}

// Total returns the number of items on the disk.
func (d *Disk) Total() int {
	n := 0
	for _, s := range d.Items {
		n = item.AddQuantity(n, s.Stack)
	}
	return n
}

// Store is the set of known disks.
type Store struct {
	disks map[Identity]*Disk
	log   logger.Logger
}

// NewStore creates an empty store.
func NewStore(log logger.Logger) *Store {
	return &Store{disks: make(map[Identity]*Disk), log: logger.OrNop(log)}
}

// Len returns the number of disks.
func (s *Store) Len() int { return len(s.disks) }

// Disks lists every identity sorted by type then uid.
func (s *Store) Disks() []Identity {
	ids := make([]Identity, 0, len(s.disks))
	for id := range s.disks {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool {
		if ids[i].Type != ids[j].Type {
			return ids[i].Type < ids[j].Type
		}
		return ids[i].UID < ids[j].UID
	})
	return ids
}

// Get returns a copy of the disk.
func (s *Store) Get(id Identity) (Disk, bool) {
	d, ok := s.disks[id]
	if !ok {
		return Disk{}, false
	}
	return Disk{ID: d.ID, Items: append([]item.Slot(nil), d.Items...)}, true
}

// freeUID returns the lowest uid of diskType not in use, preferring want
// when it is free.
func (s *Store) freeUID(diskType, want int) (int, error) {
	if want >= 1 && want <= MaxUID {
		if _, used := s.disks[Identity{Type: diskType, UID: want}]; !used {
			return want, nil
		}
	}
	for uid := 1; uid <= MaxUID; uid++ {
		if _, used := s.disks[Identity{Type: diskType, UID: uid}]; !used {
			return uid, nil
		}
	}
	return 0, fmt.Errorf("%w for type %d", ErrNoFreeUID, diskType)
}

// Create allocates an empty disk of diskType with the lowest free uid.
func (s *Store) Create(diskType int) (Identity, error) {
	if diskType <= 0 {
		return Identity{}, fmt.Errorf("%w: type %d", ErrInvalidIdentity, diskType)
	}
	uid, err := s.freeUID(diskType, 0)
	if err != nil {
		return Identity{}, err
	}
	id := Identity{Type: diskType, UID: uid}
	s.disks[id] = &Disk{ID: id}
	return id, nil
}

// Delete removes a disk and returns what it held.
func (s *Store) Delete(id Identity) ([]item.Slot, bool) {
	d, ok := s.disks[id]
	if !ok {
		return nil, false
	}
	delete(s.disks, id)
	return d.Items, true
}

// Add stores a stack, merging with an existing stack of the same item and
// prefix.
func (s *Store) Add(id Identity, stack item.Slot) error {
	d, ok := s.disks[id]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownDisk, id)
	}
	if stack.ItemID <= 0 || stack.Stack <= 0 {
		return fmt.Errorf("%w: %+v", ErrInvalidStack, stack)
	}
	for i := range d.Items {
		cur := &d.Items[i]
		if cur.ItemID != stack.ItemID || cur.Prefix != stack.Prefix {
			continue
		}
		if int64(cur.Stack)+int64(stack.Stack) > item.MaxQuantity {
			return fmt.Errorf("%w: %s item %d", ErrDiskFull, id, stack.ItemID)
		}
		cur.Stack += stack.Stack
		return nil
	}
	d.Items = append(d.Items, stack)
	return nil
}

// Remove takes up to n of itemID/prefix off the disk and returns how many
// were removed.
func (s *Store) Remove(id Identity, itemID, prefix, n int) int {
	d, ok := s.disks[id]
	if !ok || n <= 0 {
		return 0
	}
	for i := range d.Items {
		cur := &d.Items[i]
		if cur.ItemID != itemID || cur.Prefix != prefix {
			continue
		}
		take := min(n, cur.Stack)
		cur.Stack -= take
		if cur.Stack == 0 {
			d.Items = append(d.Items[:i], d.Items[i+1:]...)
		}
		return take
	}
	return 0
}

// Upgrade moves a disk's contents to newType. The uid is kept when that slot
// of newType is free, otherwise the lowest free uid is used.
func (s *Store) Upgrade(id Identity, newType int) (Identity, error) {
	d, ok := s.disks[id]
	if !ok {
		return Identity{}, fmt.Errorf("%w: %s", ErrUnknownDisk, id)
	}
	if newType <= 0 {
		return Identity{}, fmt.Errorf("%w: type %d", ErrInvalidIdentity, newType)
	}
	if newType == id.Type {
		return id, nil
	}
	uid, err := s.freeUID(newType, id.UID)
	if err != nil {
		return Identity{}, err
	}
	next := Identity{Type: newType, UID: uid}
	delete(s.disks, id)
	d.ID = next
	s.disks[next] = d
	s.log.Infof("disk: upgraded %s to %s with %d stacks", id, next, len(d.Items))
	return next, nil
}
