package scraper

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/PuerkitoBio/goquery"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/config"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/httputil"
)

func loadFixture(t *testing.T, name string) []byte {
	t.Helper()
	path := filepath.Join("testdata", name)
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read fixture %s: %v", name, err)
	}
	return data
}

func testSite(baseURL string) *config.SiteConfig {
	return &config.SiteConfig{
		BaseURL:   baseURL,
		PageQuery: "?p=300",
		Selectors: config.SelectorsConfig{
			Nome:  "div[class='h-[72px] text-ellipsis overflow-hidden cursor-pointer mt-2 text-center']",
			Preco: "div.text-xl.text-secondary.font-semibold.h-7",
			Menu:  "ul a",
		},
	}
}

func TestParsePreco(t *testing.T) {
	cases := []struct {
		in   string
		want float64
	}{
		{"R$ 25,90", 25.90},
		{"R$ 1.234,56", 1234.56},
		{" R$ 0,99 ", 0.99},
		{"R$2.349,00", 2349.00},
	}
	for _, c := range cases {
		got, err := ParsePreco(c.in)
		if err != nil {
			t.Fatalf("parse %q: %v", c.in, err)
		}
		if got != c.want {
			t.Fatalf("parse %q: expected %v, got %v", c.in, c.want, got)
		}
	}

	if _, err := ParsePreco("indisponível"); err == nil {
		t.Fatalf("expected error for non-price text")
	}
}

func TestExtrairPagina(t *testing.T) {
	o := &Orchestrator{site: testSite("https://www.irmaosgoncalves.com.br")}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(loadFixture(t, "listagem.html")))
	if err != nil {
		t.Fatalf("parse fixture: %v", err)
	}

	categoria := "mercearia/graos"
	produtos, precos, err := o.extrairPagina(doc, &categoria)
	if err != nil {
		t.Fatalf("extract failed: %v", err)
	}

	if len(produtos) != 3 || len(precos) != 3 {
		t.Fatalf("expected 3 products and 3 prices, got %d and %d", len(produtos), len(precos))
	}

	if produtos[0].Nome != "Arroz Tio João 5kg" {
		t.Fatalf("unexpected first product name: %s", produtos[0].Nome)
	}
	if produtos[0].Link != "https://www.irmaosgoncalves.com.br/produto/arroz-tio-joao-5kg-1234" {
		t.Fatalf("unexpected first product link: %s", produtos[0].Link)
	}
	if produtos[0].Categoria == nil || *produtos[0].Categoria != "mercearia/graos" {
		t.Fatalf("expected category on extracted product, got %v", produtos[0].Categoria)
	}

	if precos[0].Preco != 25.90 {
		t.Fatalf("expected first price 25.90, got %v", precos[0].Preco)
	}
	if precos[2].Preco != 2349.00 {
		t.Fatalf("expected thousands price 2349.00, got %v", precos[2].Preco)
	}
	if precos[1].Link != produtos[1].Link {
		t.Fatalf("price and product links out of step: %s vs %s", precos[1].Link, produtos[1].Link)
	}
}

func TestCategorias(t *testing.T) {
	menu := loadFixture(t, "menu.html")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(menu)
	}))
	defer server.Close()

	o := &Orchestrator{
		site:    testSite(server.URL),
		clients: httputil.NewClients(""),
	}

	folhas, raizes, err := o.Categorias(t.Context())
	if err != nil {
		t.Fatalf("categories failed: %v", err)
	}

	if len(raizes) != 2 {
		t.Fatalf("expected 2 root categories, got %d", len(raizes))
	}

	nomes := make(map[string]string)
	for _, f := range folhas {
		nomes[f.Nome] = f.URL
	}
	if _, ok := nomes["mercearia/graos/arroz"]; !ok {
		t.Fatalf("expected leaf mercearia/graos/arroz, got %v", nomes)
	}
	if _, ok := nomes["mercearia/cafes"]; !ok {
		t.Fatalf("expected leaf mercearia/cafes, got %v", nomes)
	}
	if _, ok := nomes["mercearia"]; ok {
		t.Fatalf("a prefix with several children must not be a leaf")
	}
	if url := nomes["mercearia/graos/arroz"]; url != server.URL+"/categoria/mercearia/graos/arroz?p=300" {
		t.Fatalf("unexpected leaf URL: %s", url)
	}
}
