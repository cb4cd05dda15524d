package scraper

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Categoria is one category listing URL and the category path used as the
// product's stored category.
type Categoria struct {
	Nome string
	URL  string
}

// Categorias fetches the site menu and splits it into leaf categories (one
// listing page per deepest category, which carries the category name) and
// root categories (one page per top-level section, cheaper but anonymous).
func (o *Orchestrator) Categorias(ctx context.Context) (folhas, raizes []Categoria, err error) {
	doc, err := o.fetchDocument(ctx, o.site.BaseURL, "")
	if err != nil {
		return nil, nil, fmt.Errorf("fetch menu: %w", err)
	}

	// Count how many menu links live under each path prefix. A prefix that
	// only ever sees one link is a leaf.
	porPrefixo := make(map[string][]string)
	var ordem []string
	raizesVistas := make(map[string]bool)

	doc.Find(o.site.Selectors.Menu).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok || href == "" {
			return
		}
		partes := strings.Split(href, "/")
		if len(partes) < 3 {
			return
		}
		partes = partes[2:]

		raiz := partes[0]
		if !raizesVistas[raiz] {
			raizesVistas[raiz] = true
			raizes = append(raizes, Categoria{
				URL: o.absoluto("/categoria/" + raiz + o.site.PageQuery),
			})
		}

		for i := range partes {
			chave := strings.Join(partes[:i+1], "/")
			if _, ok := porPrefixo[chave]; !ok {
				ordem = append(ordem, chave)
			}
			porPrefixo[chave] = append(porPrefixo[chave], href)
		}
	})

	for _, chave := range ordem {
		hrefs := porPrefixo[chave]
		if len(hrefs) != 1 {
			continue
		}
		folhas = append(folhas, Categoria{
			Nome: chave,
			URL:  o.absoluto(hrefs[0] + o.site.PageQuery),
		})
	}

	if len(folhas) == 0 {
		return nil, nil, fmt.Errorf("no categories found on %s", o.site.BaseURL)
	}
	return folhas, raizes, nil
}

func (o *Orchestrator) absoluto(ref string) string {
	base, err := url.Parse(o.site.BaseURL)
	if err != nil {
		return ref
	}
	u, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return base.ResolveReference(u).String()
}
