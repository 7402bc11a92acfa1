package store

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// writeExpFile writes a file with the given signature and encoded records.
func writeExpFile(t *testing.T, path, sig string, records ...[]byte) {
	t.Helper()
	data := []byte(sig)
	for _, r := range records {
		data = append(data, r...)
	}
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func v2Records(entries ...Entry) []byte {
	var out []byte
	for i := range entries {
		out = entries[i].AppendBinary(out)
	}
	return out
}

func v1Records(entries ...LegacyEntry) []byte {
	var out []byte
	for i := range entries {
		out = entries[i].AppendBinary(out)
	}
	return out
}

func tempExp(t *testing.T, name string) string {
	t.Helper()
	return filepath.Join(t.TempDir(), name)
}

// readEntries decodes a current-version file.
func readEntries(t *testing.T, path string) []Entry {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(data), len(CurrentSignature))
	require.Equal(t, CurrentSignature, string(data[:len(CurrentSignature)]))
	body := data[len(CurrentSignature):]
	require.Zero(t, len(body)%EntrySize, "file is not record aligned")

	out := make([]Entry, len(body)/EntrySize)
	for i := range out {
		out[i].decode(body[i*EntrySize:])
	}
	return out
}

func newTestStore(t *testing.T, cfg Config) *Store {
	t.Helper()
	s := New(cfg)
	s.SetLogger(t.Logf)
	t.Cleanup(s.Clear)
	return s
}
