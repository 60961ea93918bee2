// Package worker runs the single-threaded transcription pipeline: it scans
// the global inbox in mtime order, acquires jobs via processing markers,
// drives the media and speech stages, and commits artifacts to the user's
// outbox. The accelerator is the bottleneck, so there is deliberately no
// concurrency here.
package worker

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"verbatim/internal/media"
	"verbatim/internal/metrics"
	"verbatim/internal/queue"
	"verbatim/internal/store"
	"verbatim/internal/transcribe"
)

// ErrRestartRequested signals that the worker finished a job on an
// accelerator backend with a known memory leak and the process should exit
// so a supervisor can restart it.
var ErrRestartRequested = errors.New("worker restart requested")

// Worker owns one pass of the processing loop.
type Worker struct {
	store     *store.Store
	scanner   *queue.Scanner
	engine    transcribe.Transcriber
	estimator *media.Estimator

	// exitAfterJob restarts the process after each completed job.
	exitAfterJob bool

	// Media operations are fields so tests can run the pipeline without
	// ffmpeg on PATH.
	hasAudio    func(ctx context.Context, path string) (bool, error)
	normalize   func(ctx context.Context, in, out string) error
	mergeTracks func(ctx context.Context, inputs []string, out string) error

	idleSleep time.Duration
}

// Config carries the worker's runtime parameters.
type Config struct {
	Online       bool
	Device       string
	StuckTimeout time.Duration
}

func New(s *store.Store, engine transcribe.Transcriber, cfg Config) *Worker {
	return &Worker{
		store:        s,
		scanner:      queue.NewScanner(s, cfg.StuckTimeout),
		engine:       engine,
		estimator:    media.NewEstimator(cfg.Online, cfg.Device),
		exitAfterJob: cfg.Device == "mps",
		hasAudio:     media.HasAudio,
		normalize:    media.Normalize,
		mergeTracks:  media.MergeTracks,
		idleSleep:    time.Second,
	}
}

// NewWithDependencies injects the media stages and estimator for testing.
func NewWithDependencies(
	s *store.Store,
	engine transcribe.Transcriber,
	cfg Config,
	estimator *media.Estimator,
	hasAudio func(context.Context, string) (bool, error),
	normalize func(context.Context, string, string) error,
	mergeTracks func(context.Context, []string, string) error,
) *Worker {
	w := New(s, engine, cfg)
	w.estimator = estimator
	w.hasAudio = hasAudio
	w.normalize = normalize
	w.mergeTracks = mergeTracks
	return w
}

// Run loops until the context is cancelled or a restart is requested.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			if errors.Is(err, ErrRestartRequested) || errors.Is(err, context.Canceled) {
				return err
			}
			slog.Error("processing loop error", "error", err)
		}
		if !processed {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(w.idleSleep):
			}
		}
	}
}

// RunOnce performs one scan and processes at most one job. It reports
// whether a job was picked up.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	eligible, stuck, err := w.scanner.Scan(time.Now())
	if err != nil {
		return false, fmt.Errorf("scan inbox: %w", err)
	}

	for _, job := range stuck {
		slog.Warn("job stuck in processing, promoting to error", "user", job.User, "file", job.File)
		w.reportError(job, "processing stuck or failed")
	}

	metrics.QueueSize.Set(float64(len(eligible)))
	if len(eligible) == 0 {
		return false, nil
	}

	job := eligible[0]
	if err := queue.AcquireMarker(w.store, job.User, job.File); err != nil {
		if errors.Is(err, queue.ErrAlreadyAcquired) {
			return false, nil
		}
		return false, err
	}

	slog.Info("processing job", "user", job.User, "file", job.File)
	if err := w.process(ctx, job); err != nil {
		return true, err
	}
	if w.exitAfterJob {
		return true, ErrRestartRequested
	}
	return true, nil
}

// cancelled reports whether the user deleted the input while the job ran.
// Checked at every stage boundary; the pipeline abandons the job cleanly.
func (w *Worker) cancelled(job queue.Candidate) bool {
	_, err := os.Stat(job.Path)
	return err != nil
}

func (w *Worker) abandon(job queue.Candidate, heartbeat string) {
	slog.Info("input deleted, abandoning job", "user", job.User, "file", job.File)
	if heartbeat != "" {
		os.Remove(heartbeat)
	}
	// The delete already cleared the outbox; a media artifact committed
	// since then would linger there with no editor page.
	os.Remove(w.store.MediaPath(job.User, job.File))
	queue.ReleaseMarker(w.store, job.User, job.File)
}

func (w *Worker) process(ctx context.Context, job queue.Candidate) error {
	start := time.Now()
	defer func() {
		metrics.TranscriptionDuration.Observe(time.Since(start).Seconds())
		metrics.ProcessingFileSize.Set(0)
	}()

	estimate, runTime := w.estimator.Estimate(ctx, job.Path)
	if runTime < 0 {
		w.reportError(job, "the file could not be read")
		return nil
	}

	metrics.TrackFile(job.Path)

	var (
		segments []transcribe.Segment
		hbPath   string
		err      error
	)
	if isZip(job.File) {
		segments, hbPath, err = w.processZip(ctx, job)
	} else {
		segments, hbPath, err = w.processSingle(ctx, job, estimate)
	}
	if hbPath != "" {
		defer os.Remove(hbPath)
	}
	if err != nil || segments == nil {
		return err
	}

	// The user may have cancelled during transcription.
	if w.cancelled(job) {
		w.abandon(job, hbPath)
		return nil
	}

	if len(segments) > 0 {
		metrics.AudioDurationSeconds.Observe(segments[len(segments)-1].End)
	}

	language := w.store.ReadLanguage(job.User)
	viewer, err := artifactsViewer(segments, job.File, language)
	if err == nil {
		err = writeArtifacts(w.store, job, viewer, segments)
	}
	if err != nil {
		slog.Error("artifact generation failed", "user", job.User, "file", job.File, "error", err)
		w.reportError(job, "error creating the editor")
		return nil
	}

	os.Remove(hbPath)
	queue.ReleaseMarker(w.store, job.User, job.File)
	if err := os.Remove(job.Path); err != nil && !os.IsNotExist(err) {
		slog.Error("could not remove completed input", "path", job.Path, "error", err)
	}
	metrics.TranscriptionsTotal.Inc()
	slog.Info("job completed", "user", job.User, "file", job.File, "segments", len(segments))
	return nil
}

// processSingle runs the pipeline stages for a plain audio/video job and
// returns the transcript. A nil transcript with nil error means the job was
// abandoned or failed and already handled.
func (w *Worker) processSingle(ctx context.Context, job queue.Candidate, estimate float64) ([]transcribe.Segment, string, error) {
	hbPath, err := queue.WriteHeartbeat(w.store, job.User, queue.Heartbeat{
		Estimate: estimate,
		Start:    time.Now().Unix(),
		File:     job.File,
	})
	if err != nil {
		return nil, "", fmt.Errorf("write heartbeat: %w", err)
	}

	ok, err := w.hasAudio(ctx, job.Path)
	if err != nil || !ok {
		w.reportError(job, "the file's audio track could not be read")
		return nil, hbPath, nil
	}

	if w.cancelled(job) {
		w.abandon(job, hbPath)
		return nil, hbPath, nil
	}

	if err := os.MkdirAll(w.store.OutDir(job.User), 0o755); err != nil {
		return nil, hbPath, err
	}
	mediaOut := w.store.MediaPath(job.User, job.File)
	transcribeInput := mediaOut
	if err := w.normalize(ctx, job.Path, mediaOut); err != nil {
		// Keep the job alive on normalization failure: transcribe the
		// original and keep a copy as the playable artifact.
		slog.Error("normalization failed, using original media", "file", job.File, "error", err)
		if cerr := copyFile(job.Path, mediaOut); cerr != nil {
			slog.Error("could not copy original media", "error", cerr)
		}
		transcribeInput = job.Path
	}

	if w.cancelled(job) {
		w.abandon(job, hbPath)
		return nil, hbPath, nil
	}

	segments, err := w.engine.Transcribe(ctx, transcribeInput, transcribe.Options{
		Language: w.store.ReadLanguage(job.User),
		Hotwords: w.store.ReadHotwords(job.User),
		Track:    -1,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, hbPath, ctx.Err()
		}
		metrics.TranscriptionErrorsTotal.WithLabelValues("transcribe").Inc()
		slog.Error("transcription failed", "user", job.User, "file", job.File, "error", err)
		w.reportError(job, "transcription failed")
		return nil, hbPath, nil
	}
	return segments, hbPath, nil
}

// reportError moves a failed input to the user's error directory with a
// diagnostic text file. The text file is written first so the UI always has
// a reason once the moved file appears; the move falls back to copy-then-
// delete across filesystems, and the processing marker is always cleaned up.
func (w *Worker) reportError(job queue.Candidate, reason string) {
	slog.Error("job failed", "user", job.User, "file", job.File, "reason", reason)
	metrics.TranscriptionErrorsTotal.WithLabelValues("job").Inc()

	if err := os.MkdirAll(w.store.ErrorDir(job.User), 0o755); err != nil {
		slog.Error("could not create error directory", "user", job.User, "error", err)
	}
	if err := os.WriteFile(w.store.ErrorTextPath(job.User, job.File), []byte(reason), 0o644); err != nil {
		slog.Error("could not write error text", "user", job.User, "file", job.File, "error", err)
	}

	dest := w.store.ErrorPath(job.User, job.File)
	if err := os.Rename(job.Path, dest); err != nil && !os.IsNotExist(err) {
		if cerr := copyFile(job.Path, dest); cerr != nil {
			slog.Error("could not move input to error directory, leaving in place",
				"path", job.Path, "error", cerr)
		} else if rerr := os.Remove(job.Path); rerr != nil {
			slog.Error("could not remove input after copy", "path", job.Path, "error", rerr)
		}
	}

	queue.ReleaseMarker(w.store, job.User, job.File)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dst)
		return err
	}
	return out.Close()
}
