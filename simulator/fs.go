package simulator

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/moffa90/go-roguesd/protocol"
)

// fsys is the card contents, keyed by cleaned absolute path.
type fsys struct {
	files map[string][]byte
	dirs  map[string]bool
}

func newFS() *fsys {
	return &fsys{
		files: make(map[string][]byte),
		dirs:  map[string]bool{"/": true},
	}
}

func cleanPath(p string) string {
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return path.Clean(p)
}

func parentOf(p string) string {
	return path.Dir(p)
}

func (f *fsys) isDir(p string) bool {
	return f.dirs[p]
}

func (f *fsys) isFile(p string) bool {
	_, ok := f.files[p]
	return ok
}

func (f *fsys) exists(p string) bool {
	return f.isDir(p) || f.isFile(p)
}

func (f *fsys) mkdirAll(p string) {
	for ; p != "/"; p = parentOf(p) {
		f.dirs[p] = true
	}
}

// children lists the entries of dir, folders first, each group by name.
func (f *fsys) children(dir string) []protocol.DirEntry {
	var dirs, files []protocol.DirEntry
	for d := range f.dirs {
		if d != "/" && parentOf(d) == dir {
			dirs = append(dirs, protocol.DirEntry{Name: path.Base(d), Kind: protocol.EntryFolder})
		}
	}
	for p, data := range f.files {
		if parentOf(p) == dir {
			files = append(files, protocol.DirEntry{Name: path.Base(p), Kind: protocol.EntryFile, Size: uint32(len(data))})
		}
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].Name < dirs[j].Name })
	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return append(dirs, files...)
}

// match filters entries by a wildcard mask. An empty mask matches all.
func match(entries []protocol.DirEntry, mask string) []protocol.DirEntry {
	if mask == "" || mask == "*" {
		return entries
	}
	var out []protocol.DirEntry
	for _, e := range entries {
		if ok, err := path.Match(mask, e.Name); err == nil && ok {
			out = append(out, e)
		}
	}
	return out
}

// resolve turns "<path>[/<mask>]" into the matching entries. A folder
// lists its contents; a file matches itself; anything else is read as a
// mask over its parent folder. ok is false when the folder is missing.
func (f *fsys) resolve(spec string) (entries []protocol.DirEntry, ok bool) {
	p := cleanPath(spec)
	if f.isDir(p) {
		return f.children(p), true
	}
	if f.isFile(p) {
		return []protocol.DirEntry{{Name: path.Base(p), Kind: protocol.EntryFile, Size: uint32(len(f.files[p]))}}, true
	}
	dir := parentOf(p)
	if !f.isDir(dir) {
		return nil, false
	}
	return match(f.children(dir), path.Base(p)), true
}

// used returns the bytes stored on the card.
func (f *fsys) used() int {
	n := 0
	for _, data := range f.files {
		n += len(data)
	}
	return n
}

func (f *fsys) remove(p string) {
	delete(f.files, p)
	delete(f.dirs, p)
}

// rename moves p and, for folders, everything below it.
func (f *fsys) rename(from, to string) {
	moved := func(p string) (string, bool) {
		if p == from {
			return to, true
		}
		if rest, ok := strings.CutPrefix(p, from+"/"); ok {
			return to + "/" + rest, true
		}
		return "", false
	}

	files := make(map[string][]byte, len(f.files))
	for p, data := range f.files {
		if np, ok := moved(p); ok {
			p = np
		}
		files[p] = data
	}
	dirs := make(map[string]bool, len(f.dirs))
	for d := range f.dirs {
		if nd, ok := moved(d); ok {
			d = nd
		}
		dirs[d] = true
	}
	f.files, f.dirs = files, dirs
}

func entryLine(e protocol.DirEntry) string {
	if e.IsDir() {
		return string(protocol.FolderMarker) + " " + e.Name + "\r"
	}
	return strconv.Itoa(int(e.Size)) + " " + e.Name + "\r"
}
