package worker

import (
	"archive/zip"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"verbatim/internal/queue"
	"verbatim/internal/transcribe"
)

func isZip(name string) bool {
	return strings.HasSuffix(strings.ToLower(name), ".zip")
}

// processZip handles archive jobs: each contained recording is a separate
// track of the same conversation. Tracks are transcribed strictly in
// sequence, their segments merged by start time, and their audio mixed into
// a single playable artifact.
func (w *Worker) processZip(ctx context.Context, job queue.Candidate) ([]transcribe.Segment, string, error) {
	scratch := filepath.Join(w.store.WorkerRoot(), "zip")
	os.RemoveAll(scratch)
	if err := os.MkdirAll(scratch, 0o755); err != nil {
		return nil, "", fmt.Errorf("create zip scratch: %w", err)
	}
	defer os.RemoveAll(scratch)

	tracks, err := extractArchive(job.Path, scratch)
	if err != nil {
		w.reportError(job, "the archive could not be read")
		return nil, "", nil
	}

	var audioTracks []string
	total := 0.0
	for _, track := range tracks {
		ok, err := w.hasAudio(ctx, track)
		if err != nil || !ok {
			continue
		}
		estimate, runTime := w.estimator.Estimate(ctx, track)
		if runTime < 0 {
			continue
		}
		total += estimate
		audioTracks = append(audioTracks, track)
	}
	if len(audioTracks) == 0 {
		w.reportError(job, "the archive contains no readable audio tracks")
		return nil, "", nil
	}

	hbPath, err := queue.WriteHeartbeat(w.store, job.User, queue.Heartbeat{
		Estimate: total,
		Start:    time.Now().Unix(),
		File:     job.File,
	})
	if err != nil {
		return nil, "", fmt.Errorf("write heartbeat: %w", err)
	}

	language := w.store.ReadLanguage(job.User)
	hotwords := w.store.ReadHotwords(job.User)

	parts := make([][]transcribe.Segment, 0, len(audioTracks))
	for i, track := range audioTracks {
		if w.cancelled(job) {
			w.abandon(job, hbPath)
			return nil, hbPath, nil
		}
		segments, err := w.engine.Transcribe(ctx, track, transcribe.Options{
			Language: language,
			Hotwords: hotwords,
			Track:    i,
		})
		if err != nil {
			if ctx.Err() != nil {
				return nil, hbPath, ctx.Err()
			}
			w.reportError(job, "transcription failed")
			return nil, hbPath, nil
		}
		parts = append(parts, segments)
	}

	if w.cancelled(job) {
		w.abandon(job, hbPath)
		return nil, hbPath, nil
	}

	// Mix the tracks and normalize the result into the playable artifact.
	if err := os.MkdirAll(w.store.OutDir(job.User), 0o755); err != nil {
		return nil, hbPath, err
	}
	mixed := filepath.Join(scratch, "tmp.mp4")
	if err := w.mergeTracks(ctx, audioTracks, mixed); err != nil {
		w.reportError(job, "the audio tracks could not be merged")
		return nil, hbPath, nil
	}
	if err := w.normalize(ctx, mixed, w.store.MediaPath(job.User, job.File)); err != nil {
		if cerr := copyFile(mixed, w.store.MediaPath(job.User, job.File)); cerr != nil {
			w.reportError(job, "the merged audio could not be processed")
			return nil, hbPath, nil
		}
	}

	return transcribe.MergeByStart(parts), hbPath, nil
}

// extractArchive unpacks a zip into dir, flattening entry names and refusing
// paths that would escape the scratch directory.
func extractArchive(path, dir string) ([]string, error) {
	r, err := zip.OpenReader(path)
	if err != nil {
		return nil, fmt.Errorf("open archive: %w", err)
	}
	defer r.Close()

	var extracted []string
	for _, entry := range r.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(filepath.Clean(entry.Name))
		if name == "." || name == ".." || strings.HasPrefix(name, ".") {
			continue
		}
		target := filepath.Join(dir, name)

		src, err := entry.Open()
		if err != nil {
			return nil, fmt.Errorf("open archive entry %s: %w", entry.Name, err)
		}
		dst, err := os.Create(target)
		if err != nil {
			src.Close()
			return nil, err
		}
		if _, err := io.Copy(dst, src); err != nil {
			src.Close()
			dst.Close()
			return nil, fmt.Errorf("extract %s: %w", entry.Name, err)
		}
		src.Close()
		if err := dst.Close(); err != nil {
			return nil, err
		}
		extracted = append(extracted, target)
	}
	return extracted, nil
}
