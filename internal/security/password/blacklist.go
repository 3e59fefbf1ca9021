package password

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// Blacklist is a set of forbidden passwords, compared case-insensitively.
// It is immutable after load.
type Blacklist struct {
	data map[string]struct{}
}

// LoadBlacklist reads one password per line; blank lines and #comments are skipped.
// An empty path yields an empty list.
func LoadBlacklist(path string) (*Blacklist, error) {
	bl := &Blacklist{data: map[string]struct{}{}}
	if strings.TrimSpace(path) == "" {
		return bl, nil
	}
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, err
	}
	defer f.Close()
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		s := strings.TrimSpace(strings.ToLower(sc.Text()))
		if s != "" && !strings.HasPrefix(s, "#") {
			bl.data[s] = struct{}{}
		}
	}
	return bl, sc.Err()
}

// NewBlacklist builds a list from literal entries.
func NewBlacklist(entries ...string) *Blacklist {
	bl := &Blacklist{data: make(map[string]struct{}, len(entries))}
	for _, e := range entries {
		bl.data[strings.ToLower(strings.TrimSpace(e))] = struct{}{}
	}
	return bl
}

func (b *Blacklist) Contains(pwd string) bool {
	if b == nil {
		return false
	}
	_, ok := b.data[strings.ToLower(strings.TrimSpace(pwd))]
	return ok
}
