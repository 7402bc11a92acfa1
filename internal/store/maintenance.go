package store

import (
	"errors"
	"fmt"
	"os"

	"github.com/freeeve/chessexp/internal/fs"
)

// Defragment loads filename and rewrites it in full. This merges duplicate
// records, upgrades legacy versions and rescales counts.
func (s *Store) Defragment(filename string) error {
	if err := s.Load(filename, true); err != nil {
		return fmt.Errorf("defragment %s: %w", filename, err)
	}
	return s.Save(filename, true, false)
}

// MergeFiles loads target and then every source, in order, and rewrites
// target with the union. A missing or unreadable target is not an error;
// sources that fail to load are skipped. It returns the number of sources
// that were merged.
func (s *Store) MergeFiles(target string, sources ...string) (int, error) {
	if fs.Exists(s.fs, target) {
		if err := s.Load(target, true); err != nil {
			s.log("Ignoring target [%s]: %v", target, err)
		}
	}

	merged := 0
	for _, src := range sources {
		if src == target {
			continue
		}
		if err := s.Load(src, true); err != nil {
			s.log("Ignoring source [%s]: %v", src, err)
			continue
		}
		merged++
	}
	if s.index.Len() == 0 {
		return merged, fmt.Errorf("merge into %s: %w", target, ErrNotLoaded)
	}
	if err := s.Save(target, true, false); err != nil {
		return merged, err
	}
	return merged, nil
}

// Touch creates filename holding only the current signature, unless it
// already exists.
func Touch(fsys fs.FileSystem, filename string) error {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(filename, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil
		}
		return fmt.Errorf("create %s: %w", filename, err)
	}
	if err := WriteHeader(f); err != nil {
		f.Close()
		return fmt.Errorf("write signature to %s: %w", filename, err)
	}
	return f.Close()
}

// FileInfo describes an experience file without loading it.
type FileInfo struct {
	Name    string `json:"name"`
	Size    int64  `json:"size"`
	Version int    `json:"version"`
	Records int64  `json:"records"`
}

// Inspect reads the signature of filename and counts its records.
func Inspect(fsys fs.FileSystem, filename string) (FileInfo, error) {
	if fsys == nil {
		fsys = fs.Default
	}
	f, err := fsys.OpenFile(filename, os.O_RDONLY, 0)
	if err != nil {
		return FileInfo{}, fmt.Errorf("open %s: %w", filename, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return FileInfo{}, fmt.Errorf("stat %s: %w", filename, err)
	}
	info := FileInfo{Name: filename, Size: st.Size()}
	if info.Size == 0 {
		return info, fmt.Errorf("%s: %w", filename, ErrEmptyFile)
	}
	rd, err := DetectReader(f, info.Size)
	if err != nil {
		return info, fmt.Errorf("%s: %w", filename, err)
	}
	info.Version = rd.Version()
	info.Records = rd.EntryCount(info.Size)
	return info, nil
}
