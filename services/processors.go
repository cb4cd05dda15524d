package services

import (
	"log"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

// ProcessarDadosBrutos collapses the per-city scrape results into the three
// fact groups the persistence layer consumes: the deduplicated product set,
// price facts split into uniform and per-city variable, and per-city
// availability facts.
//
// Product dedup is first occurrence wins, except a missing categoria is
// filled in from a later observation that carries one. A product listed
// under a category page wins over the same product found on the root page.
func ProcessarDadosBrutos(resultados []models.ResultadoCategoria) *models.DadosProcessados {
	dados := &models.DadosProcessados{}

	vistos := make(map[string]*models.ProdutoBruto)
	var ordem []string
	for _, res := range resultados {
		for _, p := range res.Produtos {
			existente, ok := vistos[p.Link]
			if !ok {
				cp := p
				vistos[p.Link] = &cp
				ordem = append(ordem, p.Link)
				continue
			}
			if existente.Categoria == nil && p.Categoria != nil {
				existente.Categoria = p.Categoria
			}
		}
	}
	for _, link := range ordem {
		v := vistos[link]
		dados.Produtos = append(dados.Produtos, models.ProdutoInfo{
			Nome:      v.Nome,
			Link:      v.Link,
			Categoria: v.Categoria,
		})
	}

	// precosPorLink holds every (cidade, preco) observation of a product.
	precosPorLink := make(map[string][]observacao)
	var ordemPrecos []string
	for _, res := range resultados {
		for _, pr := range res.Precos {
			if _, ok := precosPorLink[pr.Link]; !ok {
				ordemPrecos = append(ordemPrecos, pr.Link)
			}
			precosPorLink[pr.Link] = append(precosPorLink[pr.Link], observacao{cidade: res.Cidade, preco: pr.Preco})

			dados.Disponibilidades = append(dados.Disponibilidades, models.DisponibilidadeInfo{
				ProdutoLink: pr.Link,
				Cidade:      res.Cidade,
			})
		}
	}

	for _, link := range ordemPrecos {
		obs := precosPorLink[link]
		if precoUniforme(obs) {
			dados.PrecosUniformes = append(dados.PrecosUniformes, models.PrecoInfo{
				Link:  link,
				Preco: obs[0].preco,
			})
			continue
		}
		for _, o := range obs {
			dados.PrecosVariaveis = append(dados.PrecosVariaveis, models.PrecoVariavel{
				Link:   link,
				Preco:  o.preco,
				Cidade: o.cidade,
			})
		}
	}

	log.Printf("processed scrape: %d products, %d uniform prices, %d variable prices, %d availability facts",
		len(dados.Produtos), len(dados.PrecosUniformes), len(dados.PrecosVariaveis), len(dados.Disponibilidades))

	return dados
}

// observacao is one (city, price) sighting of a product within a scrape.
type observacao struct {
	cidade string
	preco  float64
}

// precoUniforme reports whether every city observation carries the exact
// same value. Classification is exact equality; the cent tolerance only
// applies when comparing against stored periods.
func precoUniforme(obs []observacao) bool {
	for _, o := range obs[1:] {
		if o.preco != obs[0].preco {
			return false
		}
	}
	return true
}
