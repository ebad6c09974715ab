package handle

import (
	"path"
	"slices"
	"strings"
	"time"
)

// Entry describes an object or a directory.
type Entry struct {
	// Name is the full name for Stat and the name relative to the listed
	// directory for List.
	Name    string    `json:"name" yaml:"name"`
	Size    int64     `json:"size" yaml:"size"`
	ModTime time.Time `json:"mod_time" yaml:"mod_time"`
	Dir     bool      `json:"dir" yaml:"dir"`
}

// Attribute bits reported by Entry.Attributes.
const (
	AttrExists    = 0x01
	AttrRegular   = 0x02
	AttrDirectory = 0x04
)

// Attributes returns the attribute bits of e. The zero Entry, as returned
// with an error, has none.
func (e Entry) Attributes() int {
	switch {
	case e.Name == "" && !e.Dir:
		return 0
	case e.Dir:
		return AttrExists | AttrDirectory
	default:
		return AttrExists | AttrRegular
	}
}

// CleanName normalizes a name for stores with a flat key space: slash
// separated, no leading or trailing slash, no "." or ".." elements. The
// root is "".
func CleanName(name string) string {
	return strings.Trim(path.Clean("/"+strings.ReplaceAll(name, "\\", "/")), "/")
}

// Lister collects the direct children of one directory from the full names
// of a flat store. Objects below a subdirectory contribute that
// subdirectory once.
type Lister struct {
	prefix  string
	index   map[string]int
	entries []Entry
}

// NewLister lists dir, which must already be cleaned.
func NewLister(dir string) *Lister {
	prefix := ""
	if dir != "" {
		prefix = dir + "/"
	}
	return &Lister{prefix: prefix, index: make(map[string]int)}
}

// Prefix is the name prefix shared by everything under the directory.
func (l *Lister) Prefix() string { return l.prefix }

// Add records the object name. Names outside the directory are ignored.
func (l *Lister) Add(name string, size int64, mod time.Time) {
	rel, ok := strings.CutPrefix(name, l.prefix)
	if !ok || rel == "" {
		return
	}
	if child, _, nested := strings.Cut(rel, "/"); nested {
		l.addDir(child, mod)
		return
	}
	if i, seen := l.index[rel]; seen {
		l.entries[i] = Entry{Name: rel, Size: size, ModTime: mod}
		return
	}
	l.index[rel] = len(l.entries)
	l.entries = append(l.entries, Entry{Name: rel, Size: size, ModTime: mod})
}

// AddDir records the directory name, explicit or implied.
func (l *Lister) AddDir(name string, mod time.Time) {
	rel, ok := strings.CutPrefix(name, l.prefix)
	if !ok || rel == "" {
		return
	}
	child, _, _ := strings.Cut(rel, "/")
	l.addDir(child, mod)
}

func (l *Lister) addDir(child string, mod time.Time) {
	if i, seen := l.index[child]; seen {
		if mod.After(l.entries[i].ModTime) {
			l.entries[i].ModTime = mod
		}
		return
	}
	l.index[child] = len(l.entries)
	l.entries = append(l.entries, Entry{Name: child, ModTime: mod, Dir: true})
}

// Entries returns what was collected, sorted by name.
func (l *Lister) Entries() []Entry {
	out := slices.Clone(l.entries)
	slices.SortFunc(out, func(a, b Entry) int { return strings.Compare(a.Name, b.Name) })
	return out
}

// Len reports how many entries were collected.
func (l *Lister) Len() int { return len(l.entries) }
