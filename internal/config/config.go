package config

import (
	_ "embed"
	"os"
	"strconv"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var modelsYAML []byte

const (
	// DefaultModel is the embedding model used when EMBEDDING_MODEL is unset.
	DefaultModel = "facenet"

	// DefaultThreshold is the match threshold used for unknown models.
	DefaultThreshold = 0.9
)

type Config struct {
	Gallery   GalleryConfig
	Matcher   MatcherConfig
	Session   SessionConfig
	Ledger    LedgerConfig
	Embedding EmbeddingConfig
	Database  DatabaseConfig
	MariaDB   MariaDBConfig
	Admin     AdminConfig
	Models    ModelsConfig
}

type GalleryConfig struct {
	Dir          string // defaults to dataset
	MaxImageSize int    // longest side of stored enrollment images, defaults to 1024
}

type MatcherConfig struct {
	Threshold   float64 // strict upper bound on Euclidean distance for a match
	HNSWMinSize int     // gallery size from which the approximate HNSW index is used, 0 disables it (default)
}

type SessionConfig struct {
	StableFrames int // consecutive matching frames before an identity is confirmed (default 1)
	MaxKiosks    int // open kiosk sessions allowed at once
}

type LedgerConfig struct {
	Backend         string // csv, postgres or mariadb
	Path            string // CSV file path, defaults to attendance.csv
	DuplicatePolicy string // allow or reject-repeat
}

type EmbeddingConfig struct {
	URL             string  // defaults to http://localhost:8000
	Model           string  // defaults to facenet
	Dim             int     // defaults to the model's dimension
	MinDetScore     float64 // minimum detector confidence for an aligned face (default 0.5)
	PigoCascadePath string  // optional pigo cascade for local face presence checks
}

type DatabaseConfig struct {
	URL          string // PostgreSQL connection URL
	MaxOpenConns int    // Maximum open connections (default 25)
	MaxIdleConns int    // Maximum idle connections (default 5)
}

type MariaDBConfig struct {
	DSN string // e.g. attendance:attendance@tcp(mariadb:3306)/attendance?parseTime=true
}

// AdminConfig holds the static credential guarding the administration surface.
type AdminConfig struct {
	Username string
	Password string
}

type ModelsConfig struct {
	Models map[string]ModelDefaults `yaml:"models"`
}

type ModelDefaults struct {
	Dim       int     `yaml:"dim"`
	Threshold float64 `yaml:"threshold"`
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

// envFloat reads an environment variable and parses it as a non-negative float.
// Returns the default value if the env var is unset, empty, or invalid.
func envFloat(key string, defaultVal float64) float64 {
	s := os.Getenv(key)
	if s == "" {
		return defaultVal
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && f >= 0 {
		return f
	}
	return defaultVal
}

func envString(key, defaultVal string) string {
	if s := os.Getenv(key); s != "" {
		return s
	}
	return defaultVal
}

func Load() *Config {
	var models ModelsConfig
	if err := yaml.Unmarshal(modelsYAML, &models); err != nil {
		// This is an embedded file so this error should never happen in practice
		panic("failed to unmarshal embedded models.yaml: " + err.Error())
	}

	cfg := &Config{Models: models}
	model := envString("EMBEDDING_MODEL", DefaultModel)
	defaults := cfg.GetModelDefaults(model)

	cfg.Gallery = GalleryConfig{
		Dir:          envString("DATASET_DIR", "dataset"),
		MaxImageSize: envInt("IMAGE_MAX_SIZE", 1024),
	}
	cfg.Matcher = MatcherConfig{
		Threshold:   envFloat("MATCH_THRESHOLD", defaults.Threshold),
		HNSWMinSize: envInt("MATCH_HNSW_MIN_SIZE", 0),
	}
	cfg.Session = SessionConfig{
		StableFrames: envInt("SESSION_STABLE_FRAMES", 1),
		MaxKiosks:    envInt("KIOSK_MAX_SESSIONS", constants.MaxKioskSessions),
	}
	cfg.Ledger = LedgerConfig{
		Backend:         envString("LEDGER_BACKEND", "csv"),
		Path:            envString("ATTENDANCE_FILE", "attendance.csv"),
		DuplicatePolicy: envString("LEDGER_DUPLICATE_POLICY", "allow"),
	}
	cfg.Embedding = EmbeddingConfig{
		URL:             os.Getenv("EMBEDDING_URL"),
		Model:           model,
		Dim:             envInt("EMBEDDING_DIM", defaults.Dim),
		MinDetScore:     envFloat("EMBEDDING_MIN_DET_SCORE", 0.5),
		PigoCascadePath: os.Getenv("PIGO_CASCADE_PATH"),
	}
	cfg.Database = DatabaseConfig{
		URL:          os.Getenv("DATABASE_URL"),
		MaxOpenConns: envInt("DATABASE_MAX_OPEN_CONNS", 25),
		MaxIdleConns: envInt("DATABASE_MAX_IDLE_CONNS", 5),
	}
	cfg.MariaDB = MariaDBConfig{
		DSN: os.Getenv("MARIADB_DSN"),
	}
	cfg.Admin = AdminConfig{
		Username: envString("ADMIN_USERNAME", "admin"),
		Password: envString("ADMIN_PASSWORD", "123"),
	}
	return cfg
}

// GetModelDefaults returns defaults for a specific model, falling back to
// DefaultThreshold and a 512 dimension for unknown models.
func (c *Config) GetModelDefaults(model string) ModelDefaults {
	if d, ok := c.Models.Models[model]; ok {
		return d
	}
	return ModelDefaults{Dim: 512, Threshold: DefaultThreshold}
}
