// Package store holds chess experience: for positions analysed before, the
// moves that were tried and how good they turned out.
//
// File format:
//   - A signature string identifying the version, followed by fixed-size
//     24-byte little-endian records. (length - len(signature)) must be a
//     multiple of 24.
//   - Version 1 ("SugaR"): key u64, move u32, value i32, depth i32, 4 padding bytes.
//   - Version 2 ("SugaR Experience version 2"): as version 1 with the padding
//     replaced by a saturating u16 occurrence count and 2 zero bytes.
//
// Readers for every version are tried newest first. Legacy files are
// upgraded in memory and rewritten in the current version when loaded on
// their own.
//
// In memory, each position key maps to a chain of Nodes, one per move,
// ordered best first. Nodes decoded by a load live in one arena per load;
// nodes created by AddPV/AddMultiPV live in pending buffers that are
// retired, never freed, once saved. Both stay alive until Clear.
//
// Saving is either an incremental append of pending observations or a full
// rewrite of the whole index behind a .bak backup.
package store
