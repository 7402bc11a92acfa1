package store

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"

	"github.com/freeeve/chessexp/internal/chess"
)

var csvHeader = []string{"key", "move", "value", "depth", "count"}

// WriteCSV writes every loaded record, one row per move, with positions in
// key order and moves in rank order. It returns the number of rows.
func (s *Store) WriteCSV(w io.Writer) (int, error) {
	if err := s.WaitForLoad(); err != nil && !errors.Is(err, ErrNotLoaded) {
		return 0, err
	}

	heads := make([]*Node, 0, s.index.Len())
	s.index.Range(func(head *Node) bool {
		heads = append(heads, head)
		return true
	})
	slices.SortFunc(heads, func(a, b *Node) int {
		switch {
		case a.Key < b.Key:
			return -1
		case a.Key > b.Key:
			return 1
		}
		return 0
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return 0, err
	}
	rows := 0
	for _, head := range heads {
		for n := head; n != nil; n = n.next {
			err := cw.Write([]string{
				fmt.Sprintf("%016X", uint64(n.Key)),
				n.Move.ToUCI(),
				strconv.Itoa(int(n.Value)),
				strconv.Itoa(int(n.Depth)),
				strconv.Itoa(int(n.Count)),
			})
			if err != nil {
				return rows, err
			}
			rows++
		}
	}
	cw.Flush()
	return rows, cw.Error()
}

// ImportCSV appends the rows of a WriteCSV dump to filename and returns the
// number of records written. Rows are appended as they are; Defragment
// merges them with what the file held before.
func (s *Store) ImportCSV(r io.Reader, filename string) (int, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = len(csvHeader)
	cr.ReuseRecord = true

	header, err := cr.Read()
	if err != nil {
		return 0, fmt.Errorf("read header: %w", err)
	}
	if !slices.Equal(header, csvHeader) {
		return 0, fmt.Errorf("unexpected header %v: %w", header, ErrInvalidFormat)
	}

	f, _, err := s.openForAppend(filename)
	if err != nil {
		return 0, err
	}
	bw := NewBatchWriter(f, s.cfg.WriteBufferSize, nil)

	n := 0
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err == nil {
			var e Entry
			if e, err = parseCSVRow(row); err == nil {
				err = bw.Add(&e)
			}
		}
		if err != nil {
			f.Close()
			return n, fmt.Errorf("row %d: %w", n+1, err)
		}
		n++
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return n, err
	}
	s.stats.addRecordsWritten(n)
	return n, f.Close()
}

func parseCSVRow(row []string) (Entry, error) {
	key, err := strconv.ParseUint(row[0], 16, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("key %q: %w", row[0], err)
	}
	m, err := chess.MoveFromUCI(row[1])
	if err != nil {
		return Entry{}, err
	}
	var nums [3]int
	for i, s := range row[2:] {
		if nums[i], err = strconv.Atoi(s); err != nil {
			return Entry{}, fmt.Errorf("field %s: %w", csvHeader[i+2], err)
		}
	}
	if nums[2] < 1 || nums[2] > 0xFFFF {
		return Entry{}, fmt.Errorf("count %d out of range", nums[2])
	}
	return Entry{
		Key:   chess.Key(key),
		Move:  m,
		Value: chess.Value(nums[0]),
		Depth: chess.Depth(nums[1]),
		Count: uint16(nums[2]),
	}, nil
}
