package store

import (
	"bytes"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadersNewestFirst(t *testing.T) {
	rs := Readers()
	require.Len(t, rs, 2)
	assert.Equal(t, 2, rs[0].Version())
	assert.True(t, rs[0].IsCurrent())
	assert.Equal(t, 1, rs[1].Version())
	assert.False(t, rs[1].IsCurrent())
}

func TestDetectReader(t *testing.T) {
	t.Run("current", func(t *testing.T) {
		data := append([]byte(SignatureV2), v2Records(NewEntry(1, 2, 3, 4))...)
		r := bytes.NewReader(data)
		rd, err := DetectReader(r, int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, 2, rd.Version())
		assert.Equal(t, int64(1), rd.EntryCount(int64(len(data))))

		pos, _ := r.Seek(0, io.SeekCurrent)
		assert.Equal(t, int64(len(SignatureV2)), pos, "positioned at first record")
	})

	t.Run("legacy", func(t *testing.T) {
		data := append([]byte(SignatureV1), v1Records(
			LegacyEntry{Key: 9, Move: 10, Value: -20, Depth: 12},
			LegacyEntry{Key: 9, Move: 11, Value: 30, Depth: 12},
		)...)
		r := bytes.NewReader(data)
		rd, err := DetectReader(r, int64(len(data)))
		require.NoError(t, err)
		assert.Equal(t, 1, rd.Version())

		var e Entry
		require.NoError(t, rd.Read(r, &e))
		assert.Equal(t, Entry{Key: 9, Move: 10, Value: -20, Depth: 12, Count: 1}, e)
	})

	t.Run("header only", func(t *testing.T) {
		r := bytes.NewReader([]byte(SignatureV2))
		rd, err := DetectReader(r, int64(len(SignatureV2)))
		require.NoError(t, err)
		assert.Equal(t, int64(0), rd.EntryCount(int64(len(SignatureV2))))
	})

	t.Run("misaligned rejected by all", func(t *testing.T) {
		data := append([]byte(SignatureV2), v2Records(NewEntry(1, 2, 3, 4))...)
		data = append(data, 0xAB)
		r := bytes.NewReader(data)
		for _, rd := range Readers() {
			assert.False(t, rd.CheckSignature(r, int64(len(data))), "version %d", rd.Version())
			pos, _ := r.Seek(0, io.SeekCurrent)
			assert.Zero(t, pos, "stream rewound after failure")
		}
		_, err := DetectReader(r, int64(len(data)))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})

	t.Run("wrong signature", func(t *testing.T) {
		data := append([]byte("NotAnExperienceFileAtAll!!"), v2Records(NewEntry(1, 2, 3, 4))...)
		_, err := DetectReader(bytes.NewReader(data), int64(len(data)))
		assert.ErrorIs(t, err, ErrInvalidFormat)
	})
}

func TestReadTruncated(t *testing.T) {
	rec := v2Records(NewEntry(1, 2, 3, 4))
	var e Entry
	err := Readers()[0].Read(bytes.NewReader(rec[:EntrySize-3]), &e)
	assert.ErrorIs(t, err, ErrTruncated)

	err = Readers()[1].Read(bytes.NewReader(nil), &e)
	assert.ErrorIs(t, err, ErrTruncated)
}
