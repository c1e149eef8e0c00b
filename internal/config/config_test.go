// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
classifier:
  api_key: "${TEST_CLASSIFIER_KEY}"
sms:
  api_url: "https://sms.example.com/send"
  api_key: "sms-key"
  from: "+15550001111 22"
  recipients:
    - "+15550000001 2345"
    - ""
    - "  +15550000002 2345  "
store:
  bucket: "dispatch-mail"
database:
  url: "postgres://localhost/dispatch"
`

func writeConfig(t *testing.T, content string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CONFIG_PATH", path)
}

func TestLoad_ExpandsEnvAndDefaults(t *testing.T) {
	writeConfig(t, validYAML)
	t.Setenv("TEST_CLASSIFIER_KEY", "secret-123")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.Classifier.APIKey != "secret-123" {
		t.Errorf("api key = %q, want expanded env value", cfg.Classifier.APIKey)
	}
	if cfg.Classifier.BaseURL != "https://api.openai.com/v1" {
		t.Errorf("base url default = %q", cfg.Classifier.BaseURL)
	}
	if cfg.Classifier.Model != "gpt-4o-mini" {
		t.Errorf("model default = %q", cfg.Classifier.Model)
	}
	if cfg.Store.IncomingPrefix != "incoming/" {
		t.Errorf("incoming prefix default = %q", cfg.Store.IncomingPrefix)
	}
	if cfg.RetryBaseDelay != 500*time.Millisecond {
		t.Errorf("retry base delay default = %v", cfg.RetryBaseDelay)
	}
	if cfg.Port != 8080 {
		t.Errorf("port default = %d", cfg.Port)
	}
}

func TestLoad_RecipientsFiltered(t *testing.T) {
	writeConfig(t, validYAML)
	t.Setenv("TEST_CLASSIFIER_KEY", "k")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	got := cfg.Recipients()
	if len(got) != 2 {
		t.Fatalf("recipients = %v, want blanks dropped", got)
	}
	if got[1] != "+15550000002 2345" {
		t.Errorf("recipients must be trimmed, got %q", got[1])
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	writeConfig(t, validYAML)
	t.Setenv("TEST_CLASSIFIER_KEY", "k")
	t.Setenv("RETRY_BASE_DELAY", "2s")
	t.Setenv("PORT", "9090")
	t.Setenv("REDIS_URL", "redis://cache:6379/1")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if cfg.RetryBaseDelay != 2*time.Second {
		t.Errorf("retry base delay = %v, want 2s", cfg.RetryBaseDelay)
	}
	if cfg.Port != 9090 {
		t.Errorf("port = %d, want 9090", cfg.Port)
	}
	if cfg.RedisURL != "redis://cache:6379/1" {
		t.Errorf("redis url = %q", cfg.RedisURL)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	cases := []struct {
		name   string
		remove string // line fragment whose value gets blanked
		want   string
	}{
		{"no classifier credentials", "${TEST_CLASSIFIER_KEY}", "classifier credentials"},
		{"no sms key", "sms-key", "sms.api_key"},
		{"no origin number", "+15550001111 22", "sms.from"},
		{"no bucket", "dispatch-mail", "store.bucket"},
		{"no database", "postgres://localhost/dispatch", "database URL"},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			writeConfig(t, strings.ReplaceAll(validYAML, c.remove, ""))
			t.Setenv("TEST_CLASSIFIER_KEY", "k")
			t.Setenv("DATABASE_URL", "")

			_, err := Load()
			if err == nil {
				t.Fatal("expected a validation error")
			}
			if !strings.Contains(err.Error(), c.want) {
				t.Errorf("error %q should name %q", err, c.want)
			}
		})
	}
}

func TestLoad_EntraCredentialsSatisfyClassifier(t *testing.T) {
	yaml := strings.ReplaceAll(validYAML, `api_key: "${TEST_CLASSIFIER_KEY}"`, `
  tenant_id: "tenant"
  client_id: "client"
  client_secret: "secret"`)
	writeConfig(t, yaml)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if !cfg.Classifier.UseClientCredentials() {
		t.Error("full Entra triple should enable client credentials")
	}
}

func TestLoad_MissingFile(t *testing.T) {
	t.Setenv("CONFIG_PATH", filepath.Join(t.TempDir(), "absent.yaml"))

	if _, err := Load(); err == nil {
		t.Fatal("expected error for missing config file")
	}
}
