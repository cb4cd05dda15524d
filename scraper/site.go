package scraper

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

// fetchDocument downloads one page with the given app cookie and parses it.
func (o *Orchestrator) fetchDocument(ctx context.Context, pageURL, appCookie string) (*goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)
	for k, v := range o.site.Headers {
		req.Header.Set(k, v)
	}
	if appCookie != "" {
		req.AddCookie(&http.Cookie{Name: "app", Value: appCookie})
	}

	resp, err := o.clients.Scraping.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: status %d", pageURL, resp.StatusCode)
	}
	return goquery.NewDocumentFromReader(resp.Body)
}

const userAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0 Safari/537.36"

// extrairPagina pulls the product names, links and raw prices from one
// listing page. The three selector hits must line up one to one; a mismatch
// means the page layout changed and the whole page is rejected rather than
// risk pairing a price with the wrong product.
func (o *Orchestrator) extrairPagina(doc *goquery.Document, categoria *string) ([]models.ProdutoBruto, []models.PrecoBruto, error) {
	var produtos []models.ProdutoBruto
	var links []string

	doc.Find(o.site.Selectors.Nome).Each(func(_ int, sel *goquery.Selection) {
		a := sel.Find("a").First()
		href, ok := a.Attr("href")
		if !ok || href == "" {
			return
		}
		link := o.absoluto(href)
		produtos = append(produtos, models.ProdutoBruto{
			Nome:      strings.TrimSpace(a.Text()),
			Link:      link,
			Categoria: categoria,
		})
		links = append(links, link)
	})

	var precos []models.PrecoBruto
	var parseErr error
	doc.Find(o.site.Selectors.Preco).Each(func(i int, sel *goquery.Selection) {
		if parseErr != nil || i >= len(links) {
			return
		}
		valor, err := ParsePreco(sel.Text())
		if err != nil {
			parseErr = err
			return
		}
		precos = append(precos, models.PrecoBruto{Link: links[i], Preco: valor})
	})
	if parseErr != nil {
		return nil, nil, parseErr
	}

	if len(produtos) != len(precos) {
		return nil, nil, fmt.Errorf("extraction mismatch: %d products, %d prices", len(produtos), len(precos))
	}
	return produtos, precos, nil
}

// ParsePreco converts a Brazilian currency string like "R$ 1.234,56" to a
// float value.
func ParsePreco(texto string) (float64, error) {
	limpo := strings.TrimSpace(texto)
	limpo = strings.TrimPrefix(limpo, "R$")
	limpo = strings.ReplaceAll(limpo, ".", "")
	limpo = strings.ReplaceAll(limpo, ",", ".")
	limpo = strings.TrimSpace(limpo)

	valor, err := strconv.ParseFloat(limpo, 64)
	if err != nil {
		return 0, fmt.Errorf("parse price %q: %w", texto, err)
	}
	return valor, nil
}
