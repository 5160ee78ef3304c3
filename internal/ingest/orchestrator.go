// Package ingest implements the Ingestion Orchestrator, component F: it
// drives the Repository Syncer, File Scanner, Document Builder, Embedding
// Provider, and Vector Store Adapter through one ingest request, with a
// bounded worker pool, skip-unless-force deduplication, backpressure
// between stages, and periodic progress events.
//
// The ctx/cancel/WaitGroup/mutex-guarded-running lifecycle is adapted from
// ternarybob-quaero's internal/jobs/worker.JobProcessor, generalized from a
// queue-polling loop with one goroutine to a multi-stage fan-out/fan-in
// pipeline bounded by pipeline.parallel_workers.
package ingest

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/ternarybob/arbor"

	"github.com/sourcevault/ragvault/internal/interfaces"
	"github.com/sourcevault/ragvault/internal/models"
	"github.com/sourcevault/ragvault/internal/rerr"
)

// Orchestrator drives one ingest request end to end.
type Orchestrator struct {
	syncer   interfaces.RepoSyncer
	scanner  interfaces.Scanner
	embedder interfaces.EmbeddingProvider
	store    interfaces.VectorStore

	dataRoot        string
	parallelWorkers int
	maxFileBytes    int64
	embedBatchSize  int
	forceReprocess  bool

	logger arbor.ILogger
}

// Config bundles the tunables Ingest needs beyond the component
// dependencies themselves.
type Config struct {
	DataRoot        string
	ParallelWorkers int
	MaxFileBytes    int64
	EmbedBatchSize  int
	ForceReprocess  bool
}

// New builds an Orchestrator. No DocumentBuilder is passed here: Ingest
// takes a function that constructs a fresh one stamped with the ingest's
// repository URL, since a Builder is single-repository scoped.
func New(syncer interfaces.RepoSyncer, scanner interfaces.Scanner, embedder interfaces.EmbeddingProvider, store interfaces.VectorStore, cfg Config, logger arbor.ILogger) *Orchestrator {
	workers := cfg.ParallelWorkers
	if workers <= 0 {
		workers = 1
	}
	batchSize := cfg.EmbedBatchSize
	if batchSize <= 0 {
		batchSize = 16
	}
	return &Orchestrator{
		syncer:          syncer,
		scanner:         scanner,
		embedder:        embedder,
		store:           store,
		dataRoot:        cfg.DataRoot,
		parallelWorkers: workers,
		maxFileBytes:    cfg.MaxFileBytes,
		embedBatchSize:  batchSize,
		forceReprocess:  cfg.ForceReprocess,
		logger:          logger,
	}
}

// builderFunc constructs the DocumentBuilder for one ingest run, scoped to
// spec.URL. Injected as a function rather than an interface field so the
// orchestrator does not need to import the docbuilder package directly.
type builderFunc func(repositoryURL string) interfaces.DocumentBuilder

// Ingest runs spec through materialize -> scan -> build -> embed -> insert,
// reporting progress to sink as it goes. Cancellation via ctx completes the
// batch already handed to the store, then stops.
func (o *Orchestrator) Ingest(ctx context.Context, requestID string, spec models.IngestSpec, newBuilder builderFunc, sink interfaces.ProgressSink) (*models.IngestReport, error) {
	report := &models.IngestReport{State: models.StateQueued}
	emit := newProgressEmitter(requestID, sink)

	report.State = models.StateSyncing
	emit.emit(report.State, 0, 0, 0)

	relPath := relativeRepoPath(spec.URL)
	commit, err := o.syncer.Materialize(ctx, spec.URL, spec.Reference, relPath)
	if err != nil {
		report.State = models.StateFailed
		return report, err
	}
	report.Commit = commit

	report.State = models.StateScanning
	emit.emit(report.State, 0, 0, 0)

	items, skips, err := o.scanner.Scan(ctx, filepath.Join(o.dataRoot, relPath), spec.Subdirs)
	if err != nil {
		report.State = models.StateFailed
		return report, err
	}

	builder := newBuilder(spec.URL)

	var (
		mu        sync.Mutex
		processed int
		inserted  int
		skipped   int
		errs      []string
	)

	recordSkip := func(reason models.SkipReason) {
		mu.Lock()
		skipped++
		processed++
		mu.Unlock()
		_ = reason
	}
	recordError := func(relPath string, err error) {
		mu.Lock()
		errs = append(errs, relPath+": "+err.Error())
		processed++
		mu.Unlock()
	}

	go func() {
		for range skips {
			recordSkip(models.SkipExcluded)
			emit.maybeEmit(report.State, processed, inserted, skipped)
		}
	}()

	docCh := make(chan *models.Document, o.embedBatchSize*4)
	var buildWG sync.WaitGroup
	for w := 0; w < o.parallelWorkers; w++ {
		buildWG.Add(1)
		go func() {
			defer buildWG.Done()
			for item := range items {
				select {
				case <-ctx.Done():
					return
				default:
				}

				if !o.forceReprocess {
					if fp, ok, ferr := o.store.Fingerprint(ctx, spec.URL, item.RelativePath); ferr == nil && ok {
						if fp == item.Fingerprint() {
							recordSkip(models.SkipExcluded)
							emit.maybeEmit(report.State, processed, inserted, skipped)
							continue
						}
					}
				}

				doc, skip := builder.Build(item)
				if skip != nil {
					recordSkip(skip.Reason)
					emit.maybeEmit(report.State, processed, inserted, skipped)
					continue
				}
				doc.RepositoryURL = spec.URL

				select {
				case docCh <- doc:
				case <-ctx.Done():
					return
				}
			}
		}()
	}
	go func() {
		buildWG.Wait()
		close(docCh)
	}()

	report.State = models.StateEmbedding
	batch := make([]*models.Document, 0, o.embedBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		report.State = models.StateEmbedding
		texts := make([]string, len(batch))
		for i, d := range batch {
			texts[i] = d.Content
		}
		vecs, err := o.embedder.Embed(ctx, texts)
		if err != nil {
			for _, d := range batch {
				recordError(d.RelativePath, err)
			}
			batch = batch[:0]
			return nil
		}
		for i, d := range batch {
			d.Embedding = vecs[i]
		}

		report.State = models.StateWriting
		if err := o.store.Insert(ctx, batch); err != nil {
			if rerr.IsRunFatal(rerr.KindOf(err)) {
				return err
			}
			for _, d := range batch {
				recordError(d.RelativePath, err)
			}
			batch = batch[:0]
			return nil
		}

		mu.Lock()
		inserted += len(batch)
		processed += len(batch)
		mu.Unlock()
		emit.maybeEmit(report.State, processed, inserted, skipped)

		batch = batch[:0]
		return nil
	}

	for doc := range docCh {
		batch = append(batch, doc)
		if len(batch) >= o.embedBatchSize {
			if err := flush(); err != nil {
				report.State = models.StateFailed
				report.Errors = errs
				return report, err
			}
		}
		select {
		case <-ctx.Done():
			// Finish the batch already accumulated, then stop per the
			// cancellation contract, rather than dropping partial work.
			_ = flush()
			report.State = models.StateFailed
			report.Errors = errs
			report.FilesInserted = inserted
			report.FilesSkipped = skipped
			return report, rerr.New(rerr.Cancelled, "ingest", ctx.Err()).WithRepo(spec.URL, "")
		default:
		}
	}
	if err := flush(); err != nil {
		report.State = models.StateFailed
		report.Errors = errs
		return report, err
	}

	report.FilesInserted = inserted
	report.FilesSkipped = skipped
	report.Errors = errs

	if inserted == 0 && len(errs) > 0 {
		report.State = models.StateFailed
	} else {
		report.State = models.StateDone
	}
	emit.emit(report.State, processed, inserted, skipped)

	return report, nil
}

func relativeRepoPath(repoURL string) string {
	return filepath.Join("repos", hashedDirName(repoURL))
}

// RelativeRepoPath exposes the same repo_url -> local-path hashing the
// orchestrator uses internally, so a standalone "sync" command
// materializes a repository at the exact path "ingest" will later look
// for it at.
func RelativeRepoPath(repoURL string) string {
	return relativeRepoPath(repoURL)
}

type progressEmitter struct {
	requestID string
	sink      interfaces.ProgressSink
	last      time.Time
	lastCount int
}

func newProgressEmitter(requestID string, sink interfaces.ProgressSink) *progressEmitter {
	return &progressEmitter{requestID: requestID, sink: sink, last: time.Now()}
}

func (p *progressEmitter) emit(state models.IngestState, processed, inserted, skipped int) {
	if p.sink == nil {
		return
	}
	p.last = time.Now()
	p.lastCount = processed
	p.sink.OnProgress(models.ProgressEvent{
		RequestID: p.requestID,
		State:     state,
		Processed: processed,
		Inserted:  inserted,
		Skipped:   skipped,
	})
}

// maybeEmit emits a progress event every 100 documents or every 2 seconds,
// whichever is first, per the orchestrator's reporting contract.
func (p *progressEmitter) maybeEmit(state models.IngestState, processed, inserted, skipped int) {
	if p.sink == nil {
		return
	}
	if processed-p.lastCount >= 100 || time.Since(p.last) >= 2*time.Second {
		p.emit(state, processed, inserted, skipped)
	}
}
