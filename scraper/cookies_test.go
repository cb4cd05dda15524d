package scraper

import (
	"encoding/json"
	"net/url"
	"os"
	"path/filepath"
	"testing"
)

func writeCookies(t *testing.T, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cookies.json")
	if err := os.WriteFile(path, []byte(contents), 0o644); err != nil {
		t.Fatalf("write cookies: %v", err)
	}
	return path
}

func TestCarregarCookies(t *testing.T) {
	path := writeCookies(t, `{
		"app": {"value": "%7B%22token%22%3A%22abc%22%2C%22cidade%22%3A1%2C%22empresa%22%3A1%7D"},
		"cidades": {
			"Cacoal": [{"cidade": 2, "empresa": 3}],
			"Ji-Paraná": [{"cidade": 1, "empresa": 1}, {"cidade": 1, "empresa": 2}]
		}
	}`)

	cookies, err := CarregarCookies(path)
	if err != nil {
		t.Fatalf("load cookies: %v", err)
	}
	if len(cookies) != 3 {
		t.Fatalf("expected 3 city cookies, got %d", len(cookies))
	}

	porNome := make(map[string]string)
	for _, c := range cookies {
		porNome[c.Nome] = c.App
	}
	// Multi-store regions get numbered, single-store ones keep the name.
	if _, ok := porNome["Cacoal"]; !ok {
		t.Fatalf("expected city Cacoal, got %v", porNome)
	}
	if _, ok := porNome["Ji-Paraná 1"]; !ok {
		t.Fatalf("expected city Ji-Paraná 1, got %v", porNome)
	}
	if _, ok := porNome["Ji-Paraná 2"]; !ok {
		t.Fatalf("expected city Ji-Paraná 2, got %v", porNome)
	}

	// The Cacoal cookie must carry its own store ids while keeping the
	// rest of the session payload.
	decoded, err := url.QueryUnescape(porNome["Cacoal"])
	if err != nil {
		t.Fatalf("unescape cookie: %v", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		t.Fatalf("parse cookie payload: %v", err)
	}
	if payload["token"] != "abc" {
		t.Fatalf("expected session token preserved, got %v", payload["token"])
	}
	if payload["cidade"] != json.Number("2") && payload["cidade"] != float64(2) {
		t.Fatalf("expected cidade 2, got %v (%T)", payload["cidade"], payload["cidade"])
	}
}

func TestCarregarCookies_ArquivoInvalido(t *testing.T) {
	if _, err := CarregarCookies(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}

	path := writeCookies(t, `{"cidades": {"Cacoal": [{"cidade": 1, "empresa": 1}]}}`)
	if _, err := CarregarCookies(path); err == nil {
		t.Fatalf("expected error when app cookie is missing")
	}

	path = writeCookies(t, `{"app": {"value": "%7B%7D"}, "cidades": {}}`)
	if _, err := CarregarCookies(path); err == nil {
		t.Fatalf("expected error when no cities are configured")
	}
}
