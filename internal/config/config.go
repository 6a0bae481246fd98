package config

import (
	_ "embed"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed vocabulary.yaml
var vocabularyYAML []byte

type vocabularyFile struct {
	Phrases []string `yaml:"phrases"`
}

// Vocabulary returns the built-in concept phrases used for cluster labels.
func Vocabulary() []string {
	var v vocabularyFile
	if err := yaml.Unmarshal(vocabularyYAML, &v); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded vocabulary.yaml: " + err.Error())
	}
	return v.Phrases
}

type Config struct {
	Library  LibraryConfig
	Database DatabaseConfig
	Encoder  EncoderConfig
	Web      WebConfig
}

type LibraryConfig struct {
	Root       string   // root directory of the watched media library
	ThumbsDir  string   // directory for rendered previews (defaults to <root>/.thumbs)
	IgnoreDirs []string // directory names skipped during scans
	BatchSize  int      // files per pipeline batch (default 16)
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL; empty selects the in-memory store
	MaxOpenConns int    // maximum open connections (default 25)
}

type EncoderConfig struct {
	URL          string // embedding sidecar base URL (defaults to http://localhost:8000)
	Dim          int    // embedding dimension (default 512)
	TextProvider string // text embedding backend: sidecar (default), ollama, openai, gemini
	OllamaURL    string
	OllamaModel  string
	OpenAIToken  string
	GeminiAPIKey string
}

type WebConfig struct {
	Host string
	Port int
}

// envInt reads an environment variable and parses it as a positive integer.
// Returns the default value if the env var is unset, empty, or invalid.
func envInt(key string, defaultVal int) int {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if n, err := strconv.Atoi(s); err == nil && n > 0 {
		return n
	}
	return defaultVal
}

// envStr reads an environment variable with a fallback default.
func envStr(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	root := envStr("MEDIA_ATLAS_ROOT", "library")

	ignore := []string{".thumbs", ".git", "@eaDir", "lost+found"}
	if extra := os.Getenv("MEDIA_ATLAS_IGNORE"); extra != "" {
		for _, d := range strings.Split(extra, ",") {
			if d = strings.TrimSpace(d); d != "" {
				ignore = append(ignore, d)
			}
		}
	}

	return &Config{
		Library: LibraryConfig{
			Root:       root,
			ThumbsDir:  envStr("MEDIA_ATLAS_THUMBS", filepath.Join(root, ".thumbs")),
			IgnoreDirs: ignore,
			BatchSize:  envInt("MEDIA_ATLAS_BATCH", 16),
		},
		Database: DatabaseConfig{
			URL:          os.Getenv("DATABASE_URL"),
			MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
		},
		Encoder: EncoderConfig{
			URL:          os.Getenv("ENCODER_URL"),
			Dim:          envInt("EMBEDDING_DIM", 512),
			TextProvider: envStr("TEXT_PROVIDER", "sidecar"),
			OllamaURL:    os.Getenv("OLLAMA_URL"),
			OllamaModel:  os.Getenv("OLLAMA_MODEL"),
			OpenAIToken:  os.Getenv("OPENAI_TOKEN"),
			GeminiAPIKey: os.Getenv("GEMINI_API_KEY"),
		},
		Web: WebConfig{
			Host: envStr("WEB_HOST", "0.0.0.0"),
			Port: envInt("WEB_PORT", 8080),
		},
	}
}
