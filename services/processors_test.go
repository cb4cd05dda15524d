package services

import (
	"testing"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

func strPtr(s string) *string { return &s }

func TestProcessarDadosBrutos_PrecoUniforme(t *testing.T) {
	resultados := []models.ResultadoCategoria{
		{
			Cidade:   "Cacoal",
			Produtos: []models.ProdutoBruto{{Nome: "Arroz 5kg", Link: "/produto/arroz"}},
			Precos:   []models.PrecoBruto{{Link: "/produto/arroz", Preco: 25.90}},
		},
		{
			Cidade:   "Jaru",
			Produtos: []models.ProdutoBruto{{Nome: "Arroz 5kg", Link: "/produto/arroz"}},
			Precos:   []models.PrecoBruto{{Link: "/produto/arroz", Preco: 25.90}},
		},
	}

	dados := ProcessarDadosBrutos(resultados)

	if len(dados.Produtos) != 1 {
		t.Fatalf("expected 1 product, got %d", len(dados.Produtos))
	}
	if len(dados.PrecosUniformes) != 1 {
		t.Fatalf("expected 1 uniform price, got %d", len(dados.PrecosUniformes))
	}
	if len(dados.PrecosVariaveis) != 0 {
		t.Fatalf("expected no variable prices, got %d", len(dados.PrecosVariaveis))
	}
	if dados.PrecosUniformes[0].Preco != 25.90 {
		t.Fatalf("expected price 25.90, got %v", dados.PrecosUniformes[0].Preco)
	}
	if len(dados.Disponibilidades) != 2 {
		t.Fatalf("expected 2 availability facts, got %d", len(dados.Disponibilidades))
	}
}

func TestProcessarDadosBrutos_PrecoVariavel(t *testing.T) {
	resultados := []models.ResultadoCategoria{
		{
			Cidade: "Cacoal",
			Precos: []models.PrecoBruto{{Link: "/produto/cafe", Preco: 18.50}},
		},
		{
			Cidade: "Jaru",
			Precos: []models.PrecoBruto{{Link: "/produto/cafe", Preco: 19.90}},
		},
	}

	dados := ProcessarDadosBrutos(resultados)

	if len(dados.PrecosUniformes) != 0 {
		t.Fatalf("expected no uniform prices, got %d", len(dados.PrecosUniformes))
	}
	if len(dados.PrecosVariaveis) != 2 {
		t.Fatalf("expected 2 variable prices, got %d", len(dados.PrecosVariaveis))
	}
	porCidade := make(map[string]float64)
	for _, p := range dados.PrecosVariaveis {
		porCidade[p.Cidade] = p.Preco
	}
	if porCidade["Cacoal"] != 18.50 || porCidade["Jaru"] != 19.90 {
		t.Fatalf("unexpected per-city prices: %v", porCidade)
	}
}

func TestProcessarDadosBrutos_DeduplicacaoComCategoria(t *testing.T) {
	// The same soap shows up on a category page in one city and on the
	// root page in another. The first sighting wins the name, but the
	// category must survive regardless of order.
	resultados := []models.ResultadoCategoria{
		{
			Cidade:   "Cacoal",
			Produtos: []models.ProdutoBruto{{Nome: "Sabonete", Link: "/produto/sabonete"}},
			Precos:   []models.PrecoBruto{{Link: "/produto/sabonete", Preco: 3.99}},
		},
		{
			Cidade:   "Jaru",
			Produtos: []models.ProdutoBruto{{Nome: "Sabonete", Link: "/produto/sabonete", Categoria: strPtr("higiene/sabonetes")}},
			Precos:   []models.PrecoBruto{{Link: "/produto/sabonete", Preco: 3.99}},
		},
	}

	dados := ProcessarDadosBrutos(resultados)

	if len(dados.Produtos) != 1 {
		t.Fatalf("expected 1 product after dedup, got %d", len(dados.Produtos))
	}
	p := dados.Produtos[0]
	if p.Categoria == nil || *p.Categoria != "higiene/sabonetes" {
		t.Fatalf("expected category backfilled from later sighting, got %v", p.Categoria)
	}
}

func TestProcessarDadosBrutos_PrimeiraCategoriaVence(t *testing.T) {
	resultados := []models.ResultadoCategoria{
		{
			Cidade:   "Cacoal",
			Produtos: []models.ProdutoBruto{{Nome: "Café", Link: "/produto/cafe", Categoria: strPtr("mercearia/cafes")}},
		},
		{
			Cidade:   "Jaru",
			Produtos: []models.ProdutoBruto{{Nome: "Café Torrado", Link: "/produto/cafe", Categoria: strPtr("outra/categoria")}},
		},
	}

	dados := ProcessarDadosBrutos(resultados)

	p := dados.Produtos[0]
	if p.Nome != "Café" {
		t.Fatalf("expected first name to win, got %s", p.Nome)
	}
	if *p.Categoria != "mercearia/cafes" {
		t.Fatalf("expected first category to win, got %s", *p.Categoria)
	}
}

func TestProcessarDadosBrutos_CidadeUnica(t *testing.T) {
	resultados := []models.ResultadoCategoria{
		{
			Cidade: "Vilhena",
			Precos: []models.PrecoBruto{{Link: "/produto/leite", Preco: 5.49}},
		},
	}

	dados := ProcessarDadosBrutos(resultados)

	if len(dados.PrecosUniformes) != 1 {
		t.Fatalf("single-city price should classify as uniform, got %d uniform", len(dados.PrecosUniformes))
	}
}
