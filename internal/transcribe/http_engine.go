package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"
)

// HTTPEngine talks to a standalone speech service. The service loads the ASR
// and diarization models once and accepts audio over multipart POST; keeping
// it out of process lets the worker restart cheaply around accelerator leaks.
type HTTPEngine struct {
	baseURL   string
	authToken string
	device    string
	batchSize int
	client    *http.Client
}

// NewHTTPEngine builds an engine for the service at baseURL. authToken is the
// diarization model credential forwarded as a bearer token.
func NewHTTPEngine(baseURL, authToken, device string, batchSize int) *HTTPEngine {
	return &HTTPEngine{
		baseURL:   strings.TrimRight(baseURL, "/"),
		authToken: authToken,
		device:    device,
		batchSize: batchSize,
		// Transcription of long recordings is slow by design; the
		// heartbeat file, not this timeout, bounds user-visible waiting.
		client: &http.Client{Timeout: 4 * time.Hour},
	}
}

// NewHTTPEngineWithClient injects a custom client, primarily for testing.
func NewHTTPEngineWithClient(baseURL, authToken, device string, batchSize int, client *http.Client) *HTTPEngine {
	e := NewHTTPEngine(baseURL, authToken, device, batchSize)
	e.client = client
	return e
}

// Healthy checks the service before the worker enters its loop.
func (e *HTTPEngine) Healthy(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return fmt.Errorf("speech service unreachable: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("speech service unhealthy: HTTP %d", resp.StatusCode)
	}
	return nil
}

type transcribeResponse struct {
	Segments []Segment `json:"segments"`
}

// Transcribe posts the audio file and decodes the segmented transcript.
func (e *HTTPEngine) Transcribe(ctx context.Context, audioPath string, opts Options) ([]Segment, error) {
	f, err := os.Open(audioPath)
	if err != nil {
		return nil, fmt.Errorf("open audio: %w", err)
	}
	defer f.Close()

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return nil, err
	}
	if _, err := io.Copy(part, f); err != nil {
		return nil, fmt.Errorf("read audio: %w", err)
	}
	mw.WriteField("language", opts.Language)
	mw.WriteField("hotwords", strings.Join(opts.Hotwords, "\n"))
	mw.WriteField("device", e.device)
	mw.WriteField("batch_size", strconv.Itoa(e.batchSize))
	if opts.Track >= 0 {
		mw.WriteField("track", strconv.Itoa(opts.Track))
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/transcribe", &body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if e.authToken != "" {
		req.Header.Set("Authorization", "Bearer "+e.authToken)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("transcription request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("transcription failed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var decoded transcribeResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode transcript: %w", err)
	}
	return decoded.Segments, nil
}
