// Package eco names openings. It loads ECO tables (eco, name, moves as
// tab-separated values) and indexes them by the position the moves reach.
package eco

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/freeeve/pgn/v3"

	"github.com/freeeve/chessexp/internal/chess"
)

// Opening represents an ECO opening classification.
type Opening struct {
	ECO  string `json:"eco"`
	Name string `json:"name"`
}

func (o Opening) String() string { return o.ECO + " " + o.Name }

// Database holds openings indexed by position key.
type Database struct {
	byKey map[chess.Key]Opening
	count int
}

// NewDatabase creates an empty ECO database.
func NewDatabase() *Database {
	return &Database{byKey: make(map[chess.Key]Opening)}
}

// moveNumberRegex matches move numbers like "1." or "12..."
var moveNumberRegex = regexp.MustCompile(`\d+\.+\s*`)

// LoadDir loads all .tsv files from a directory.
func (db *Database) LoadDir(dir string) error {
	files, err := filepath.Glob(filepath.Join(dir, "*.tsv"))
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no .tsv files found in %s", dir)
	}

	for _, file := range files {
		if err := db.LoadFile(file); err != nil {
			return fmt.Errorf("load %s: %w", file, err)
		}
	}
	return nil
}

// LoadFile loads a single TSV file.
func (db *Database) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return db.Load(f)
}

// Load reads TSV rows from r. Rows whose moves do not replay are skipped.
func (db *Database) Load(r io.Reader) error {
	scanner := bufio.NewScanner(r)
	for lineNum := 1; scanner.Scan(); lineNum++ {
		line := scanner.Text()
		if lineNum == 1 && strings.HasPrefix(line, "eco\t") {
			continue
		}

		parts := strings.SplitN(line, "\t", 3)
		if len(parts) != 3 {
			continue
		}

		key, err := replay(parts[2])
		if err != nil {
			continue
		}
		if _, dup := db.byKey[key]; !dup {
			db.count++
		}
		db.byKey[key] = Opening{ECO: parts[0], Name: parts[1]}
	}
	return scanner.Err()
}

// replay plays SAN moves like "1. e4 e5 2. Nf3 Nc6" from the initial
// position and returns the key of the position reached.
func replay(moves string) (chess.Key, error) {
	pos, err := chess.NewPosition("")
	if err != nil {
		return 0, err
	}
	for _, san := range strings.Fields(moveNumberRegex.ReplaceAllString(moves, "")) {
		if san[0] == '$' || san[0] == '{' {
			continue
		}
		san = strings.TrimRight(san, "+#")

		mv, err := pgn.ParseSAN(pos.State(), san)
		if err != nil {
			return 0, fmt.Errorf("parse %q: %w", san, err)
		}
		if err := pos.DoMove(chess.MoveOf(mv)); err != nil {
			return 0, fmt.Errorf("apply %q: %w", san, err)
		}
	}
	return pos.Key(), nil
}

// Lookup returns the opening reached at key k, or nil.
func (db *Database) Lookup(k chess.Key) *Opening {
	if o, ok := db.byKey[k]; ok {
		return &o
	}
	return nil
}

// Count returns the number of openings loaded.
func (db *Database) Count() int {
	return db.count
}
