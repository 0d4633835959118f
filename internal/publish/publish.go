// Package publish implements the Incremental Publisher: mirroring freshly
// written local Observation blobs into the durable object store on a
// cadence the orchestrator drives. Grounded in the retention manager
// (internal/retention), repurposed from periodic deletion into periodic
// upload — same directory-walk-and-tolerate-errors shape, inverted
// direction.
package publish

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/mav-dashboard/harvester/internal/osa"
)

// BatchStats summarizes one Publish call.
type BatchStats struct {
	Attempts int
	Uploaded int
	Errors   int
}

// SuccessRatio returns Uploaded/Attempts, or 1.0 when Attempts is zero.
func (s BatchStats) SuccessRatio() float64 {
	if s.Attempts == 0 {
		return 1
	}
	return float64(s.Uploaded) / float64(s.Attempts)
}

// lowSuccessThreshold is the fraction below which a batch is logged as a
// warning rather than silently accepted.
const lowSuccessThreshold = 0.8

// Publisher mirrors local blobs (written by the harvest pool to a
// FilesystemStore) up to a durable Store, one file at a time, skipping
// files already uploaded. It is not transactional across files: a crash
// mid-batch leaves previously uploaded files uploaded and the rest to be
// picked up by the next Publish call.
type Publisher struct {
	local *osa.FilesystemStore
	dest  osa.Store
	log   *slog.Logger
}

// NewPublisher builds a Publisher mirroring local's contents to dest.
func NewPublisher(local *osa.FilesystemStore, dest osa.Store, logger *slog.Logger) *Publisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Publisher{local: local, dest: dest, log: logger}
}

// Publish walks local's base directory and Puts every file under prefix
// (typically one date partition) to dest, skipping any key already present
// there. Returns statistics for the batch; a per-file failure is recorded
// but does not stop the batch.
func (p *Publisher) Publish(ctx context.Context, prefix string) (BatchStats, error) {
	keys, err := p.local.List(ctx, prefix)
	if err != nil {
		return BatchStats{}, err
	}

	var stats BatchStats
	for _, key := range keys {
		if ctx.Err() != nil {
			return stats, ctx.Err()
		}

		stats.Attempts++
		if p.alreadyPublished(ctx, key) {
			stats.Uploaded++
			continue
		}

		data, err := p.local.Get(ctx, key)
		if err != nil {
			stats.Errors++
			p.log.Warn("publish: failed to read local blob", "key", key, "err", err)
			continue
		}

		if err := p.dest.Put(ctx, key, data, "application/json"); err != nil {
			stats.Errors++
			p.log.Warn("publish: failed to upload blob", "key", key, "err", err)
			continue
		}
		stats.Uploaded++
	}

	if stats.SuccessRatio() < lowSuccessThreshold {
		p.log.Warn("publish: batch success ratio below threshold", "ratio", stats.SuccessRatio(), "attempts", stats.Attempts, "errors", stats.Errors)
	}
	return stats, nil
}

func (p *Publisher) alreadyPublished(ctx context.Context, key string) bool {
	_, err := p.dest.Get(ctx, key)
	return err == nil
}

// LocalDayDirs lists the date-partition directories (YYYY-MM-DD) directly
// under local's base directory.
func (p *Publisher) LocalDayDirs() ([]string, error) {
	entries, err := os.ReadDir(p.local.BaseDir())
	if err != nil {
		return nil, err
	}
	var dirs []string
	for _, e := range entries {
		if e.IsDir() {
			dirs = append(dirs, filepath.Base(e.Name()))
		}
	}
	return dirs, nil
}
