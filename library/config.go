package library

import (
	"fmt"
	"os"
	"strconv"
	"unicode/utf8"

	"github.com/joho/godotenv"
)

// Config is everything the library core needs from its caller.
type Config struct {
	// DataDir holds books.csv, members.csv and loans.csv.
	DataDir string
	// MaxLoansPerMember caps the open loans of a single member.
	MaxLoansPerMember int
	// DateFormat is the Go layout the CLI accepts for dates typed by users.
	// The tables always store DateLayout.
	DateFormat string
	// Delimiter separates table fields.
	Delimiter rune
}

// DefaultConfig returns the settings used when nothing is configured.
func DefaultConfig() Config {
	return Config{
		DataDir:           "./data",
		MaxLoansPerMember: DefaultMaxLoansPerMember,
		DateFormat:        DateLayout,
		Delimiter:         ',',
	}
}

// LoadConfig reads the environment, after loading envFiles (".env" when none
// are given). Missing env files are ignored and variables already set in the
// environment win over file values.
func LoadConfig(envFiles ...string) (Config, error) {
	if len(envFiles) == 0 {
		envFiles = []string{".env"}
	}
	for _, f := range envFiles {
		if _, err := os.Stat(f); err != nil {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Config{}, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg := DefaultConfig()
	cfg.DataDir = getEnv("DATA_DIR", cfg.DataDir)
	cfg.DateFormat = getEnv("DATE_FORMAT", cfg.DateFormat)

	if v := os.Getenv("MAX_LOANS_PER_MEMBER"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			return Config{}, fmt.Errorf("MAX_LOANS_PER_MEMBER must be a positive integer, got %q", v)
		}
		cfg.MaxLoansPerMember = n
	}

	if v := os.Getenv("CSV_DELIMITER"); v != "" {
		r, size := utf8.DecodeRuneInString(v)
		if size != len(v) {
			return Config{}, fmt.Errorf("CSV_DELIMITER must be a single character, got %q", v)
		}
		cfg.Delimiter = r
	}
	return cfg, nil
}

func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}
