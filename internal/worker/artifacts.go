package worker

import (
	"fmt"
	"os"

	"verbatim/internal/artifacts"
	"verbatim/internal/queue"
	"verbatim/internal/store"
	"verbatim/internal/transcribe"
)

func artifactsViewer(segments []transcribe.Segment, file, language string) (string, error) {
	return artifacts.CreateViewer(segments, file, language)
}

// writeArtifacts commits the subtitle and editor outputs. The editor page is
// written last: its presence is what flips the job to done.
func writeArtifacts(s *store.Store, job queue.Candidate, viewer string, segments []transcribe.Segment) error {
	if err := os.MkdirAll(s.OutDir(job.User), 0o755); err != nil {
		return err
	}
	srt := artifacts.CreateSRT(segments)
	if err := os.WriteFile(s.SRTPath(job.User, job.File), []byte(srt), 0o644); err != nil {
		return fmt.Errorf("write subtitles: %w", err)
	}
	if err := os.WriteFile(s.ViewerPath(job.User, job.File), []byte(viewer), 0o644); err != nil {
		return fmt.Errorf("write editor: %w", err)
	}
	return nil
}
