package store

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/freeeve/chessexp/internal/chess"
)

func uciMove(t *testing.T, s string) chess.Move {
	t.Helper()
	m, err := chess.MoveFromUCI(s)
	require.NoError(t, err)
	return m
}

func TestStore_CSVRoundTrip(t *testing.T) {
	src := tempExp(t, "src.exp")
	e4, d4, nf6 := uciMove(t, "e2e4"), uciMove(t, "d2d4"), uciMove(t, "g8f6")
	big := NewEntry(0xFEDC, nf6, -12, 9)
	big.Count = 7
	writeExpFile(t, src, SignatureV2, v2Records(
		NewEntry(0x10, d4, 30, 20),
		NewEntry(0x10, e4, 40, 20),
		big,
	))

	s := newTestStore(t, Config{})
	require.NoError(t, s.Load(src, true))
	var buf bytes.Buffer
	rows, err := s.WriteCSV(&buf)
	require.NoError(t, err)
	assert.Equal(t, 3, rows)
	assert.Equal(t, strings.Join([]string{
		"key,move,value,depth,count",
		"0000000000000010,e2e4,40,20,1",
		"0000000000000010,d2d4,30,20,1",
		"000000000000FEDC,g8f6,-12,9,7",
		"",
	}, "\n"), buf.String())

	dst := tempExp(t, "dst.exp")
	n, err := newTestStore(t, Config{}).ImportCSV(&buf, dst)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	got := readEntries(t, dst)
	require.Len(t, got, 3)
	assert.Equal(t, e4, got[0].Move)
	assert.Equal(t, uint16(7), got[2].Count)
	assert.Equal(t, chess.Key(0xFEDC), got[2].Key)
}

func TestStore_ImportCSVErrors(t *testing.T) {
	dst := tempExp(t, "dst.exp")
	s := newTestStore(t, Config{})

	_, err := s.ImportCSV(strings.NewReader("a,b\n"), dst)
	assert.Error(t, err)

	_, err = s.ImportCSV(strings.NewReader("key,move,value,depth,count\n10,e2e4,1,20,1\nzz,e2e4,1,20,1\n"), dst)
	assert.ErrorContains(t, err, "row 2")

	_, err = s.ImportCSV(strings.NewReader("key,move,value,depth,count\n10,e2e4,1,20,0\n"), dst)
	assert.ErrorContains(t, err, "count 0 out of range")
}
