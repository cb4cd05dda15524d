package scraper

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
)

// CidadeCookie is the ready-to-send "app" cookie for one city, plus the
// display name the city is stored under.
type CidadeCookie struct {
	Nome string
	App  string
}

type cookiesFile struct {
	App struct {
		Value string `json:"value"`
	} `json:"app"`
	Cidades map[string][]empresa `json:"cidades"`
}

type empresa struct {
	Cidade  json.Number `json:"cidade"`
	Empresa json.Number `json:"empresa"`
}

// CarregarCookies reads the session cookie captured from the site and
// derives one cookie per configured city by rewriting the cidade and
// empresa fields of the encoded payload. Regions with more than one store
// get a numeric suffix.
func CarregarCookies(path string) ([]CidadeCookie, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}

	var f cookiesFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse cookies: %w", err)
	}
	if f.App.Value == "" {
		return nil, fmt.Errorf("cookies file %s: missing app cookie value", path)
	}

	decoded, err := url.QueryUnescape(f.App.Value)
	if err != nil {
		return nil, fmt.Errorf("decode app cookie: %w", err)
	}
	var payload map[string]any
	if err := json.Unmarshal([]byte(decoded), &payload); err != nil {
		return nil, fmt.Errorf("parse app cookie payload: %w", err)
	}

	var cookies []CidadeCookie
	for regiao, empresas := range f.Cidades {
		for i, e := range empresas {
			payload["cidade"] = e.Cidade
			payload["empresa"] = e.Empresa

			encoded, err := json.Marshal(payload)
			if err != nil {
				return nil, fmt.Errorf("encode app cookie payload: %w", err)
			}

			nome := regiao
			if len(empresas) > 1 {
				nome = fmt.Sprintf("%s %d", regiao, i+1)
			}
			cookies = append(cookies, CidadeCookie{
				Nome: nome,
				App:  url.QueryEscape(string(encoded)),
			})
		}
	}
	if len(cookies) == 0 {
		return nil, fmt.Errorf("cookies file %s: no cities configured", path)
	}
	return cookies, nil
}
