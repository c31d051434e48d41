package disk

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"strconv"
	"strings"

	"github.com/gravitas-games/storagehub/internal/atomicfile"
	"github.com/gravitas-games/storagehub/internal/item"
	"github.com/gravitas-games/storagehub/internal/logger"
)

// FormatVersion is the header version written by Save.
const FormatVersion = 1

// Load reads a disk file. A missing file yields an empty store.
func Load(path string, log logger.Logger) (*Store, error) {
	data, err := atomicfile.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return NewStore(log), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read disk file: %w", err)
	}
	return Parse(bytes.NewReader(data), log)
}

// Parse decodes the line format:
//
//	V|1
//	D|<type>|<uid>
//	I|<type>|<uid>|<itemId>|<prefix>|<stack>
//
// Malformed lines and items for undeclared disks are skipped.
func Parse(r io.Reader, log logger.Logger) (*Store, error) {
	s := NewStore(log)
	sc := bufio.NewScanner(r)
	lineNo, skipped := 0, 0
	for sc.Scan() {
		lineNo++
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		switch fields[0] {
		case "V":
			v, ok := ints(fields[1:], 1)
			if !ok {
				skipped++
				continue
			}
			if v[0] > FormatVersion {
				return nil, fmt.Errorf("disk file version %d is newer than %d", v[0], FormatVersion)
			}
		case "D":
			v, ok := ints(fields[1:], 2)
			id := Identity{Type: v[0], UID: v[1]}
			if !ok || !id.Valid() {
				skipped++
				continue
			}
			if _, dup := s.disks[id]; !dup {
				s.disks[id] = &Disk{ID: id}
			}
		case "I":
			v, ok := ints(fields[1:], 5)
			id := Identity{Type: v[0], UID: v[1]}
			if !ok || v[2] <= 0 || v[3] < 0 || v[4] <= 0 {
				skipped++
				continue
			}
			if _, known := s.disks[id]; !known {
				skipped++
				continue
			}
			if err := s.Add(id, item.Slot{ItemID: v[2], Prefix: v[3], Stack: v[4]}); err != nil {
				skipped++
			}
		default:
			skipped++
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan disk file: %w", err)
	}
	if skipped > 0 {
		s.log.Warnf("disk: skipped %d malformed lines of %d", skipped, lineNo)
	}
	return s, nil
}

// ints parses exactly n integer fields. The returned slice always has n
// entries so callers can index it before checking ok.
func ints(fields []string, n int) ([]int, bool) {
	out := make([]int, n)
	if len(fields) != n {
		return out, false
	}
	for i, f := range fields {
		v, err := strconv.Atoi(strings.TrimSpace(f))
		if err != nil {
			return out, false
		}
		out[i] = v
	}
	return out, true
}

// Encode writes the store in the line format, disks in identity order.
func (s *Store) Encode(w io.Writer) error {
	bw := bufio.NewWriter(w)
	fmt.Fprintf(bw, "V|%d\n", FormatVersion)
	for _, id := range s.Disks() {
		fmt.Fprintf(bw, "D|%d|%d\n", id.Type, id.UID)
		for _, it := range s.disks[id].Items {
			fmt.Fprintf(bw, "I|%d|%d|%d|%d|%d\n", id.Type, id.UID, it.ItemID, it.Prefix, it.Stack)
		}
	}
	return bw.Flush()
}

// Save atomically replaces path with the encoded store.
func (s *Store) Save(path string) error {
	var buf bytes.Buffer
	if err := s.Encode(&buf); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("failed to save disks: %w", err)
	}
	return nil
}
