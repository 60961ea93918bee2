package config

import (
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

var (
	// Root is the filesystem root holding the data/ tree shared by the
	// frontend and the worker. Falls back to the executable directory.
	Root string

	// Online selects the hosted deployment profile (affects ETA ratios
	// and user identification; offline mode runs as the "local" user).
	Online bool

	// Device is the accelerator backend: "cpu", "cuda" or "mps".
	Device string

	// BatchSize is forwarded to the speech service.
	BatchSize int

	// StorageSecret signs the browser-held session identifier.
	StorageSecret string

	// Windows augments PATH with the bundled ffmpeg directories.
	Windows bool

	SSLCertFile string
	SSLKeyFile  string

	// Port the frontend listens on.
	Port string

	// StuckTimeout is how long a .processing marker may exist (seconds)
	// before the job is declared stuck and promoted to the error directory.
	StuckTimeout int

	// ASRURL is the base URL of the speech/diarization service.
	ASRURL string

	// HFAuthToken is the diarization model credential. The worker refuses
	// to start without it.
	HFAuthToken string

	// MetricsPort serves Prometheus metrics on the worker.
	MetricsPort int

	// MaxUploadBytes caps a single upload stream.
	MaxUploadBytes int64 = 12_000_000_000
)

// Load reads .env if present and populates the package configuration.
func Load() error {
	_ = godotenv.Load()

	Root = os.Getenv("ROOT")
	if Root == "" {
		exe, err := os.Executable()
		if err != nil {
			return err
		}
		Root = filepath.Dir(exe)
	}

	Online = os.Getenv("ONLINE") == "True"
	Device = getEnvWithDefault("DEVICE", "cpu")
	BatchSize = getEnvInt("BATCH_SIZE", 4)
	StorageSecret = os.Getenv("STORAGE_SECRET")
	Windows = os.Getenv("WINDOWS") == "True"
	SSLCertFile = os.Getenv("SSL_CERTFILE")
	SSLKeyFile = os.Getenv("SSL_KEYFILE")
	Port = getEnvWithDefault("PORT", "8080")
	StuckTimeout = getEnvInt("STUCK_TIMEOUT", 600)
	ASRURL = os.Getenv("ASR_URL")
	HFAuthToken = os.Getenv("HF_AUTH_TOKEN")
	MetricsPort = getEnvInt("METRICS_PORT", 8000)

	if Windows {
		path := os.Getenv("PATH")
		path += string(os.PathListSeparator) + filepath.Join("ffmpeg", "bin")
		path += string(os.PathListSeparator) + "ffmpeg"
		os.Setenv("PATH", path)
	}

	return nil
}

func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
