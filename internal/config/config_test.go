package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/hray3182/CalBuddy/internal/models"
)

func TestLoadDefaults(t *testing.T) {
	t.Chdir(t.TempDir())
	for _, k := range []string{"API_URL", "HTTP_TIMEOUT", "TIMEZONE", "WEEK_START", "EMBEDDINGS_CRON", "DEV_MODE", "CLERK_JWT_KEY"} {
		t.Setenv(k, "")
	}
	t.Setenv("TELEGRAM_TOKEN", "tg")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.TelegramToken != "tg" || cfg.APIURL != "http://localhost:5001/api" {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.HTTPTimeout != 30*time.Second || cfg.WeekStart != time.Sunday || cfg.DevMode {
		t.Errorf("defaults = %v %v %v", cfg.HTTPTimeout, cfg.WeekStart, cfg.DevMode)
	}
	if cfg.EmbeddingsCron != "0 3 * * *" {
		t.Errorf("cron = %q", cfg.EmbeddingsCron)
	}
}

func TestAgendaCron(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("AGENDA_CRON", "restored after the test")
	os.Unsetenv("AGENDA_CRON")
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AgendaCron != "0 8 * * *" {
		t.Errorf("default agenda cron = %q", cfg.AgendaCron)
	}

	t.Setenv("AGENDA_CRON", "")
	cfg, err = Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.AgendaCron != "" {
		t.Errorf("empty AGENDA_CRON should disable the push, got %q", cfg.AgendaCron)
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("HTTP_TIMEOUT", "5s")
	t.Setenv("TIMEZONE", "UTC")
	t.Setenv("WEEK_START", "Monday")
	t.Setenv("DEV_MODE", "true")
	t.Setenv("CLERK_JWT_KEY", `-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----`)

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.HTTPTimeout != 5*time.Second || cfg.Location != time.UTC || cfg.WeekStart != time.Monday || !cfg.DevMode {
		t.Errorf("cfg = %+v", cfg)
	}
	if cfg.ClerkJWTKey != "-----BEGIN PUBLIC KEY-----\nabc\n-----END PUBLIC KEY-----" {
		t.Errorf("key = %q", cfg.ClerkJWTKey)
	}

	t.Setenv("HTTP_TIMEOUT", "soon")
	if _, err := Load(); err == nil {
		t.Error("expected timeout error")
	}
}

func TestDefaultPlans(t *testing.T) {
	c, err := LoadPlans("")
	if err != nil {
		t.Fatal(err)
	}
	pro, ok := c.Find("PRO")
	if !ok || pro.Status != models.SubscriptionPremium || pro.PriceID != "pro_price_id" || !pro.Paid() {
		t.Errorf("pro = %+v", pro)
	}
	free, ok := c.ForStatus(models.SubscriptionFree)
	if !ok || free.Paid() {
		t.Errorf("free = %+v", free)
	}
}

func TestPlansFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "plans.yaml")
	os.WriteFile(path, []byte("plans:\n  - id: Team\n    price_id: team_price\n"), 0o600)
	c, err := LoadPlans(path)
	if err != nil {
		t.Fatal(err)
	}
	if p, ok := c.Find("team"); !ok || p.Status != models.SubscriptionFree {
		t.Errorf("team = %+v", p)
	}

	bad := []string{"plans: []", "plans:\n  - name: x", "plans:\n  - id: a\n  - id: A"}
	for _, b := range bad {
		if _, err := ParsePlans([]byte(b)); err == nil {
			t.Errorf("ParsePlans(%q) accepted", b)
		}
	}
}
