// Package files reads and writes raw transactions in a partitioned JSONL
// layout: <root>/dt=YYYY-MM-DD/hour=HH/part-<uuid>.jsonl.
package files

import (
	// Go Internal Packages
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	// Local Packages
	models "tx-pipeline/models"

	// External Packages
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxLine bounds a single JSONL record.
const maxLine = 1 << 20

type PartitionStore struct {
	Root   string
	Logger *zap.Logger
}

func NewPartitionStore(root string, logger *zap.Logger) *PartitionStore {
	return &PartitionStore{Root: root, Logger: logger}
}

func (s *PartitionStore) hourDir(day string, hour int) string {
	return filepath.Join(s.Root, "dt="+day, fmt.Sprintf("hour=%02d", hour))
}

// InsertRaw writes one new part file per (day, hour) in the batch.
func (s *PartitionStore) InsertRaw(_ context.Context, records []models.RawRecord) error {
	type partition struct {
		day  string
		hour int
	}
	parts := make(map[partition]*bytes.Buffer)
	for _, rec := range records {
		p := partition{rec.Day, rec.Hour}
		buf, ok := parts[p]
		if !ok {
			buf = &bytes.Buffer{}
			parts[p] = buf
		}
		buf.WriteString(strings.TrimSpace(rec.Payload))
		buf.WriteByte('\n')
	}

	for p, buf := range parts {
		dir := s.hourDir(p.day, p.hour)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
		name := filepath.Join(dir, fmt.Sprintf("part-%s.jsonl", uuid.NewString()))
		if err := os.WriteFile(name, buf.Bytes(), 0o644); err != nil {
			return err
		}
		s.Logger.Debug("wrote partition file", zap.String("path", name))
	}
	return nil
}

// LoadDay reads every part file under the day's partition, hours in order.
// A missing partition is an empty day. Lines that are not JSON objects come
// back as empty records so the normalizer rejects them.
func (s *PartitionStore) LoadDay(ctx context.Context, day string) ([]models.RawTransaction, error) {
	dayDir := filepath.Join(s.Root, "dt="+day)
	files, err := filepath.Glob(filepath.Join(dayDir, "hour=*", "part-*"))
	if err != nil {
		return nil, err
	}
	sort.Strings(files)

	var raws []models.RawTransaction
	for _, name := range files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		got, err := s.readPart(name)
		if err != nil {
			return nil, err
		}
		raws = append(raws, got...)
	}
	return raws, nil
}

func (s *PartitionStore) readPart(name string) ([]models.RawTransaction, error) {
	f, err := os.Open(name)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var raws []models.RawTransaction
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		raw, err := models.DecodeRaw(b)
		if err != nil {
			s.Logger.Warn("undecodable line", zap.String("path", name), zap.Int("line", line), zap.Error(err))
			raw = models.RawTransaction{}
		}
		raws = append(raws, raw)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read %s: %w", name, err)
	}
	return raws, nil
}
