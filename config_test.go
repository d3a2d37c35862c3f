package study

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testConfigYAML = `
log_level: debug
study_public_url: https://study.example.edu
auth:
  secret_keys:
    - key: secret-a
    - key: secret-b
      algorithm: HS512
study:
  airtable_api_key: key-test
  airtable_base_id: appBase
  airtable_class_table_id: tblClasses
  airtable_instructor_table_id: tblInstructors
  airtable_admin_table_id: tblAdmins
  airtable_preassessment_submission_table_id: tblPre
  airtable_postassessment_submission_table_id: tblPost
  airtable_user_class_association_table_id: tblAssoc
sync:
  platform_url: https://platform.example.edu
  platform_cookie: cookie-value
email:
  type: mock
  from_address: study@example.edu
server:
  port: 9001
`

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(testConfigYAML))
	require.NoError(t, err)

	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "https://study.example.edu", cfg.StudyPublicURL)

	require.Len(t, cfg.Auth.SecretKeys, 2)
	assert.Equal(t, "HS256", cfg.Auth.SecretKeys[0].Algorithm)
	assert.Equal(t, "HS512", cfg.Auth.SecretKeys[1].Algorithm)

	require.NotNil(t, cfg.Study)
	assert.Equal(t, "tblInstructors", cfg.Study.InstructorTableID)

	require.NotNil(t, cfg.Sync)
	assert.Equal(t, "@every 10m", cfg.Sync.Schedule)

	// Explicit values win, unset ones default.
	assert.Equal(t, 9001, cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 9090, cfg.Server.MetricsPort)
}

func TestParseConfigRequiresSecretKeys(t *testing.T) {
	_, err := ParseConfig([]byte("log_level: info\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "secret_keys")
}

func TestParseConfigRejectsEmptyKeyEntry(t *testing.T) {
	_, err := ParseConfig([]byte("auth:\n  secret_keys:\n    - algorithm: HS256\n"))
	assert.Error(t, err)
}

func TestParseConfigRejectsBadYAML(t *testing.T) {
	_, err := ParseConfig([]byte("auth: [not: valid"))
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG", base64.StdEncoding.EncodeToString([]byte(testConfigYAML)))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "https://study.example.edu", cfg.StudyPublicURL)
}

func TestLoadConfigRejectsBadBase64(t *testing.T) {
	t.Setenv("CONFIG", "%%% not base64 %%%")

	_, err := LoadConfig()
	assert.Error(t, err)
}

func TestConfigStudyURL(t *testing.T) {
	cfg := Config{StudyPublicURL: "https://study.example.edu/"}

	got, err := cfg.StudyURL("/login")
	require.NoError(t, err)
	assert.Equal(t, "https://study.example.edu/login", got)
}
