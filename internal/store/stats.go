package store

import "sync/atomic"

// StatsCollector keeps running counters for a Store. All methods are safe
// for concurrent use.
type StatsCollector struct {
	loads          uint64
	loadFailures   uint64
	saves          uint64
	saveFailures   uint64
	recordsRead    uint64
	recordsWritten uint64
	duplicates     uint64
}

func (s *StatsCollector) incLoads()               { atomic.AddUint64(&s.loads, 1) }
func (s *StatsCollector) incLoadFailures()        { atomic.AddUint64(&s.loadFailures, 1) }
func (s *StatsCollector) incSaves()               { atomic.AddUint64(&s.saves, 1) }
func (s *StatsCollector) incSaveFailures()        { atomic.AddUint64(&s.saveFailures, 1) }
func (s *StatsCollector) addRecordsRead(n int64)  { atomic.AddUint64(&s.recordsRead, uint64(n)) }
func (s *StatsCollector) addDuplicates(n int64)   { atomic.AddUint64(&s.duplicates, uint64(n)) }
func (s *StatsCollector) addRecordsWritten(n int) { atomic.AddUint64(&s.recordsWritten, uint64(n)) }

// Stats is a point-in-time snapshot of a Store.
type Stats struct {
	File           string `json:"file"`
	Loading        bool   `json:"loading"`
	Positions      int    `json:"positions"`
	Moves          int    `json:"moves"`
	PendingPV      int    `json:"pending_pv"`
	PendingMultiPV int    `json:"pending_multipv"`
	Loads          uint64 `json:"loads"`
	LoadFailures   uint64 `json:"load_failures"`
	Saves          uint64 `json:"saves"`
	SaveFailures   uint64 `json:"save_failures"`
	RecordsRead    uint64 `json:"records_read"`
	RecordsWritten uint64 `json:"records_written"`
	Duplicates     uint64 `json:"duplicates"`
}

func (s *StatsCollector) fill(st *Stats) {
	st.Loads = atomic.LoadUint64(&s.loads)
	st.LoadFailures = atomic.LoadUint64(&s.loadFailures)
	st.Saves = atomic.LoadUint64(&s.saves)
	st.SaveFailures = atomic.LoadUint64(&s.saveFailures)
	st.RecordsRead = atomic.LoadUint64(&s.recordsRead)
	st.RecordsWritten = atomic.LoadUint64(&s.recordsWritten)
	st.Duplicates = atomic.LoadUint64(&s.duplicates)
}
