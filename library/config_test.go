package library

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// clearEnv unsets every variable LoadConfig reads. t.Setenv registers the
// restore, so godotenv sees them as absent for the rest of the test.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DATA_DIR", "MAX_LOANS_PER_MEMBER", "DATE_FORMAT", "CSV_DELIMITER"} {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	clearEnv(t)

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.Equal(t, 2, cfg.MaxLoansPerMember)
	assert.Equal(t, "./data", cfg.DataDir)
}

func TestLoadConfigFromEnvironment(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/srv/library")
	t.Setenv("MAX_LOANS_PER_MEMBER", "5")
	t.Setenv("DATE_FORMAT", "02/01/2006")
	t.Setenv("CSV_DELIMITER", ";")

	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, Config{
		DataDir:           "/srv/library",
		MaxLoansPerMember: 5,
		DateFormat:        "02/01/2006",
		Delimiter:         ';',
	}, cfg)
}

func TestLoadConfigEnvFile(t *testing.T) {
	clearEnv(t)
	t.Setenv("DATA_DIR", "/from/env")
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("DATA_DIR=/from/file\nMAX_LOANS_PER_MEMBER=3\n"), 0o644))

	cfg, err := LoadConfig(envFile)
	require.NoError(t, err)
	assert.Equal(t, "/from/env", cfg.DataDir, "process environment wins")
	assert.Equal(t, 3, cfg.MaxLoansPerMember)
}

func TestLoadConfigRejectsBadValues(t *testing.T) {
	cases := map[string]struct{ key, value string }{
		"non-numeric cap":      {"MAX_LOANS_PER_MEMBER", "many"},
		"zero cap":             {"MAX_LOANS_PER_MEMBER", "0"},
		"negative cap":         {"MAX_LOANS_PER_MEMBER", "-1"},
		"multi-char delimiter": {"CSV_DELIMITER", ";;"},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			clearEnv(t)
			t.Setenv(tc.key, tc.value)

			_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.env"))
			assert.Error(t, err)
		})
	}
}
