package daemon

import (
	"github.com/sirupsen/logrus"

	"github.com/chargemon/chargemon/pkg/history"
)

type appendJob struct {
	collection string
	rec        history.Record
}

// historyWriter persists records asynchronously so a slow or failing
// store never blocks sample processing. The queue is bounded; when it
// fills, samples are dropped with an error log. A failed append is
// logged and skipped, never retried.
type historyWriter struct {
	store history.Store
	jobs  chan appendJob
	done  chan struct{}
}

func newHistoryWriter(store history.Store) *historyWriter {
	w := &historyWriter{
		store: store,
		jobs:  make(chan appendJob, 64),
		done:  make(chan struct{}),
	}
	go w.drain()
	return w
}

func (w *historyWriter) drain() {
	defer close(w.done)
	for job := range w.jobs {
		if _, err := w.store.Append(job.collection, job.rec); err != nil {
			logrus.Errorf("history append to %s failed, sample dropped: %v", job.collection, err)
		}
	}
}

// enqueue hands a record to the writer without blocking. Jobs are
// drained by a single goroutine, so per-stream append order is kept.
func (w *historyWriter) enqueue(collection string, rec history.Record) {
	select {
	case w.jobs <- appendJob{collection: collection, rec: rec}:
	default:
		logrus.Errorf("history writer queue full, dropping sample for %s", collection)
	}
}

// close stops the writer after flushing queued jobs.
func (w *historyWriter) close() {
	close(w.jobs)
	<-w.done
}
