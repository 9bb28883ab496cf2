package history

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/coffersTech/filtq/internal/model"
	"github.com/klauspost/compress/zstd"
)

const (
	activeName    = "edits.active"
	segmentSuffix = ".fqj"

	// DefaultSegmentSize is the size at which the active file is sealed
	// into an immutable segment.
	DefaultSegmentSize = 4 << 20
)

// Journal is the append-only history of applied filter edits. Records
// are stored as length-prefixed zstd-compressed JSON frames in an
// active file that rotates into sealed segments named
// edits_{minTs}_{maxTs}.fqj, so expiry can be decided from filenames
// alone.
type Journal struct {
	dir        string
	maxSegment int64

	mu     sync.Mutex
	file   *os.File
	size   int64
	minTs  int64
	maxTs  int64
	frames int

	encoder *zstd.Encoder
	decoder *zstd.Decoder
}

// Open opens or creates the journal in dir. An active file left behind
// by a previous run is scanned so its time bounds carry over.
func Open(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		return nil, err
	}

	j := &Journal{
		dir:        dir,
		maxSegment: DefaultSegmentSize,
		encoder:    enc,
		decoder:    dec,
	}
	if err := j.openActive(); err != nil {
		return nil, err
	}
	return j, nil
}

func (j *Journal) openActive() error {
	path := filepath.Join(j.dir, activeName)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return err
	}
	j.file = f
	j.size = 0
	j.minTs, j.maxTs = 0, 0
	j.frames = 0

	// Recover bounds from a previous run.
	data, err := os.ReadFile(path)
	if err != nil {
		f.Close()
		return err
	}
	if len(data) > 0 {
		recs, err := j.decodeFrames(data)
		if err != nil {
			f.Close()
			return fmt.Errorf("journal recovery: %v", err)
		}
		j.size = int64(len(data))
		j.frames = len(recs)
		for _, rec := range recs {
			j.observe(rec.Timestamp)
		}
	}
	return nil
}

func (j *Journal) observe(ts int64) {
	if j.minTs == 0 || ts < j.minTs {
		j.minTs = ts
	}
	if ts > j.maxTs {
		j.maxTs = ts
	}
}

// Append writes one edit record. Format: [Len uint32][zstd(JSON)].
func (j *Journal) Append(rec model.EditRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	compressed := j.encoder.EncodeAll(data, make([]byte, 0, len(data)))

	j.mu.Lock()
	defer j.mu.Unlock()

	lenBuf := make([]byte, 4)
	binary.LittleEndian.PutUint32(lenBuf, uint32(len(compressed)))

	if _, err := j.file.Write(lenBuf); err != nil {
		return err
	}
	if _, err := j.file.Write(compressed); err != nil {
		return err
	}

	j.size += int64(4 + len(compressed))
	j.frames++
	j.observe(rec.Timestamp)

	if j.size >= j.maxSegment {
		return j.sealLocked()
	}
	return nil
}

// sealLocked rotates the active file into an immutable segment and
// starts a fresh one.
func (j *Journal) sealLocked() error {
	if j.frames == 0 {
		return nil
	}
	if err := j.file.Close(); err != nil {
		return err
	}

	sealed := filepath.Join(j.dir, segmentName(j.minTs, j.maxTs))
	if err := os.Rename(filepath.Join(j.dir, activeName), sealed); err != nil {
		return err
	}
	return j.openActive()
}

// Sync flushes the active file to disk.
func (j *Journal) Sync() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.file.Sync()
}

// Close seals whatever the active file holds and releases resources.
func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if err := j.sealLocked(); err != nil {
		return err
	}
	return j.file.Close()
}

// Replay returns every record in the journal, sealed segments first in
// chronological order, then the active file.
func (j *Journal) Replay() ([]model.EditRecord, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	entries, err := os.ReadDir(j.dir)
	if err != nil {
		return nil, err
	}

	var names []string
	for _, entry := range entries {
		if !entry.IsDir() && strings.HasPrefix(entry.Name(), "edits_") && strings.HasSuffix(entry.Name(), segmentSuffix) {
			names = append(names, entry.Name())
		}
	}
	sort.Slice(names, func(a, b int) bool {
		tsA, _ := segmentBounds(names[a])
		tsB, _ := segmentBounds(names[b])
		return tsA < tsB
	})
	names = append(names, activeName)

	var all []model.EditRecord
	for _, name := range names {
		data, err := os.ReadFile(filepath.Join(j.dir, name))
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return all, err
		}
		recs, err := j.decodeFrames(data)
		if err != nil {
			return all, fmt.Errorf("journal replay %s: %v", name, err)
		}
		all = append(all, recs...)
	}
	return all, nil
}

func (j *Journal) decodeFrames(data []byte) ([]model.EditRecord, error) {
	var recs []model.EditRecord
	for len(data) > 0 {
		if len(data) < 4 {
			return recs, fmt.Errorf("truncated frame header")
		}
		length := binary.LittleEndian.Uint32(data[:4])
		data = data[4:]
		if uint32(len(data)) < length {
			return recs, fmt.Errorf("truncated frame body")
		}

		raw, err := j.decoder.DecodeAll(data[:length], nil)
		if err != nil {
			return recs, err
		}
		data = data[length:]

		var rec model.EditRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			return recs, err
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// PurgeExpired removes sealed segments whose newest record is older
// than the retention window and returns how many files were deleted.
// The active file is never touched.
func (j *Journal) PurgeExpired(retention time.Duration) int {
	entries, err := os.ReadDir(j.dir)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Printf("Journal sweep error: failed to read dir: %v", err)
		}
		return 0
	}

	threshold := time.Now().Add(-retention).UnixNano()
	removed := 0

	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, segmentSuffix) {
			continue
		}
		_, maxTs := segmentBounds(name)
		if maxTs == 0 || maxTs >= threshold {
			continue
		}
		if err := os.Remove(filepath.Join(j.dir, name)); err != nil {
			log.Printf("Journal sweep error: failed to delete %s: %v", name, err)
		} else {
			log.Printf("Expired journal segment deleted: %s", name)
			removed++
		}
	}
	return removed
}

// RunSweeper periodically purges expired segments until ctx is done.
func (j *Journal) RunSweeper(ctx context.Context, interval, retention time.Duration) {
	if retention <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Printf("Journal sweeper started. Retention: %v, Interval: %v", retention, interval)

	for {
		select {
		case <-ticker.C:
			j.PurgeExpired(retention)
		case <-ctx.Done():
			return
		}
	}
}

// segmentName builds a sealed segment filename from its record time
// bounds.
func segmentName(minTs, maxTs int64) string {
	return fmt.Sprintf("edits_%d_%d%s", minTs, maxTs, segmentSuffix)
}

// segmentBounds extracts the timestamp pair from a segment filename:
// edits_{minTs}_{maxTs}.fqj.
func segmentBounds(filename string) (minTs, maxTs int64) {
	base := strings.TrimSuffix(filename, segmentSuffix)
	parts := strings.Split(base, "_")
	if len(parts) != 3 {
		return 0, 0
	}
	minTs, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0
	}
	maxTs, err = strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return 0, 0
	}
	return minTs, maxTs
}
