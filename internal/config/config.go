// Package config reads the environment once at startup. API keys stay here
// and in the provider clients; they are never written into run state.
package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

type Config struct {
	Port string
	Env  string

	GeminiAPIKey string
	GroqAPIKey   string

	GeneratorModel string
	ReviewerModel  string
	MaxCycles      int

	Checkpoint CheckpointConfig
	Bundle     ObjectStoreConfig
}

// CheckpointConfig selects the durable medium for run checkpoints.
type CheckpointConfig struct {
	Backend     string // memory, file, postgres, s3
	Dir         string
	PostgresDSN string
	S3          ObjectStoreConfig
}

type ObjectStoreConfig struct {
	Endpoint  string
	Region    string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = ":8081"
	} else if !strings.HasPrefix(port, ":") {
		port = ":" + port
	}

	env := strings.TrimSpace(os.Getenv("APP_ENV"))
	if env == "" {
		env = "local"
	}

	return &Config{
		Port: port,
		Env:  env,

		GeminiAPIKey: strings.TrimSpace(os.Getenv("GEMINI_API_KEY")),
		GroqAPIKey:   strings.TrimSpace(os.Getenv("GROQ_API_KEY")),

		GeneratorModel: firstNonEmpty(os.Getenv("GENERATOR_MODEL"), "llama-3.3-70b-versatile"),
		ReviewerModel:  firstNonEmpty(os.Getenv("REVIEWER_MODEL"), "gemini-2.5-flash"),
		MaxCycles:      envInt("MAX_CYCLES", 3),

		Checkpoint: CheckpointConfig{
			Backend:     firstNonEmpty(os.Getenv("CHECKPOINT_BACKEND"), "file"),
			Dir:         firstNonEmpty(os.Getenv("CHECKPOINT_DIR"), ".draftforge"),
			PostgresDSN: strings.TrimSpace(os.Getenv("DATABASE_URL")),
			S3:          loadObjectStore("CHECKPOINT_S3", env, "draftforge-checkpoints"),
		},
		Bundle: loadObjectStore("BUNDLE_S3", env, "draftforge-bundles"),
	}, nil
}

func loadObjectStore(prefix, env, defaultBucket string) ObjectStoreConfig {
	return ObjectStoreConfig{
		Endpoint:  resolveEndpoint(prefix, env),
		Region:    firstNonEmpty(os.Getenv(prefix+"_REGION"), "us-east-1"),
		AccessKey: firstNonEmpty(os.Getenv(prefix+"_ACCESS_KEY"), os.Getenv("MINIO_ROOT_USER")),
		SecretKey: firstNonEmpty(os.Getenv(prefix+"_SECRET_KEY"), os.Getenv("MINIO_ROOT_PASSWORD")),
		Bucket:    firstNonEmpty(os.Getenv(prefix+"_BUCKET"), defaultBucket),
		UseSSL:    resolveUseSSL(prefix, env),
	}
}

func resolveEndpoint(prefix, env string) string {
	if strings.EqualFold(env, "local") {
		return firstNonEmpty(os.Getenv(prefix+"_ENDPOINT"), "minio:9000")
	}
	return strings.TrimSpace(os.Getenv(prefix + "_ENDPOINT"))
}

func resolveUseSSL(prefix, env string) bool {
	if strings.EqualFold(env, "local") {
		return false
	}
	raw := strings.TrimSpace(os.Getenv(prefix + "_USE_SSL"))
	if raw == "" {
		return true
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return true
	}
	return v
}

func envInt(key string, fallback int) int {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 1 {
		return fallback
	}
	return v
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
