package eco_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/freeeve/chessexp/internal/chess"
	"github.com/freeeve/chessexp/internal/eco"
)

const table = "eco\tname\tpgn\n" +
	"B00\tKing's Pawn Game\t1. e4\n" +
	"C50\tItalian Game\t1. e4 e5 2. Nf3 Nc6 3. Bc4\n" +
	"A00\tBroken\t1. e5\n" +
	"short line\n"

func keyAfter(t *testing.T, moves ...string) chess.Key {
	t.Helper()
	pos, err := chess.NewPosition("startpos")
	if err != nil {
		t.Fatalf("NewPosition: %v", err)
	}
	if err := pos.PlayUCI(moves); err != nil {
		t.Fatalf("PlayUCI: %v", err)
	}
	return pos.Key()
}

func TestLoadAndLookup(t *testing.T) {
	db := eco.NewDatabase()
	if err := db.Load(strings.NewReader(table)); err != nil {
		t.Fatalf("Load: %v", err)
	}

	if db.Count() != 2 {
		t.Errorf("Expected 2 openings, got %d", db.Count())
	}

	if o := db.Lookup(keyAfter(t)); o != nil {
		t.Errorf("Starting position should not be an opening, got %s", o)
	}

	if o := db.Lookup(keyAfter(t, "e2e4")); o == nil || o.ECO != "B00" {
		t.Errorf("Expected B00 for 1. e4, got %v", o)
	}

	o := db.Lookup(keyAfter(t, "e2e4", "e7e5", "g1f3", "b8c6", "f1c4"))
	if o == nil {
		t.Fatal("Expected to find Italian Game")
	}
	if o.String() != "C50 Italian Game" {
		t.Errorf("Expected C50 Italian Game, got %s", o)
	}
}

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	if err := eco.NewDatabase().LoadDir(dir); err == nil {
		t.Error("Expected an error for a directory without tables")
	}

	if err := os.WriteFile(filepath.Join(dir, "a.tsv"), []byte(table), 0o644); err != nil {
		t.Fatal(err)
	}
	db := eco.NewDatabase()
	if err := db.LoadDir(dir); err != nil {
		t.Fatalf("LoadDir: %v", err)
	}
	if db.Count() != 2 {
		t.Errorf("Expected 2 openings, got %d", db.Count())
	}
}
