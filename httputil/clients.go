package httputil

import (
	"net/http"
	"net/url"
	"time"
)

type Clients struct {
	Scraping *http.Client // for catalog pages, optionally proxied
	Download *http.Client // for image payloads, longer timeout
}

func NewClients(proxyURL string) *Clients {
	transport := http.DefaultTransport
	if proxyURL != "" {
		if u, err := url.Parse(proxyURL); err == nil {
			transport = &http.Transport{Proxy: http.ProxyURL(u)}
		}
	}

	return &Clients{
		Scraping: &http.Client{
			Timeout:   15 * time.Second,
			Transport: transport,
		},
		Download: &http.Client{
			Timeout:   60 * time.Second,
			Transport: transport,
		},
	}
}
