package coordinator

import (
	"errors"
	"fmt"
	"time"

	"DistReduce/internal/journal"
	"DistReduce/internal/logger"
	"DistReduce/internal/scratch"
)

// SweepReport summarizes one Sweep call.
type SweepReport struct {
	Jobs    int // namespaces removed
	Files   int // scratch files removed
	Skipped int // namespaces left alone because they look active
}

// Sweep removes the scratch namespaces under root that aborted jobs left
// behind. Each journal is replayed to find the files its rank still owned.
// A namespace is skipped if one of its journals is held open by a running
// process or was written less than minAge ago.
func Sweep(root string, minAge time.Duration, lg *logger.Logger) (SweepReport, error) {
	var report SweepReport

	jobs, err := scratch.Jobs(root)
	if err != nil {
		return report, err
	}

	for _, id := range jobs {
		store := scratch.NewDiskStore(root, id)
		files, active, err := sweepJob(store, minAge, lg)
		if err != nil {
			return report, fmt.Errorf("failed to sweep job %s: %w", id, err)
		}
		if active {
			report.Skipped++
			lg.Info("Job skipped: job_id=%s", id)
			continue
		}
		report.Jobs++
		report.Files += files
		lg.Info("Job swept: job_id=%s files=%d", id, files)
	}
	return report, nil
}

// journalState is what Sweep learns from one rank's journal.
type journalState struct {
	name    string
	pending []string
}

func sweepJob(store *scratch.DiskStore, minAge time.Duration, lg *logger.Logger) (int, bool, error) {
	names, err := store.List()
	if err != nil {
		return 0, false, err
	}

	var journals []journalState
	for _, name := range names {
		var rank int
		if _, err := fmt.Sscanf(name, "journal_%d.db", &rank); err != nil || store.Journal(rank) != name {
			continue
		}

		st, active, err := replayJournal(store, name, rank, minAge, lg)
		if err != nil {
			return 0, false, err
		}
		if active {
			return 0, true, nil
		}
		journals = append(journals, st)
	}

	removed := 0
	for _, st := range journals {
		for _, f := range st.pending {
			if err := store.Remove(f); err != nil {
				return removed, false, err
			}
			removed++
		}
		if err := store.Remove(st.name); err != nil {
			return removed, false, err
		}
		removed++
	}

	// files written before their journal entry landed
	rest, err := store.List()
	if err != nil {
		return removed, false, err
	}
	for _, name := range rest {
		lg.Warn("Unjournaled scratch file removed: job_id=%s file=%s", store.JobID(), name)
		if err := store.Remove(name); err != nil {
			return removed, false, err
		}
		removed++
	}

	return removed, false, store.Destroy()
}

func replayJournal(store *scratch.DiskStore, name string, rank int, minAge time.Duration, lg *logger.Logger) (journalState, bool, error) {
	j, err := journal.Open(store.Path(name), rank, lg)
	if err != nil {
		if errors.Is(err, journal.ErrLocked) {
			return journalState{}, true, nil
		}
		return journalState{}, false, err
	}
	defer j.Close()

	fsm := journal.NewFSM()
	if err := j.Replay(fsm); err != nil {
		return journalState{}, false, err
	}
	state := fsm.GetState()

	if minAge > 0 && !state.LastUpdatedAt.IsZero() && time.Since(state.LastUpdatedAt) < minAge {
		return journalState{}, true, nil
	}

	lg.Debug("Journal replayed: job_id=%s rank=%d phase=%s pending=%d", state.JobID, rank, state.Phase, len(state.PendingFiles()))
	return journalState{name: name, pending: state.PendingFiles()}, false, nil
}
