package models

import "time"

// SemCidade is the sentinel city used for products whose price is uniform
// across every store. It is inserted first so it conventionally gets id 1.
const SemCidade = "Sem Cidade"

// Produto is a row of the produtos table. Identity is the surrogate id;
// the natural key is the unique product link.
type Produto struct {
	ID              int64
	Nome            string
	Link            string
	Categoria       *string
	DataAtualizacao time.Time
}

// Cidade is a row of the cidades table.
type Cidade struct {
	ID   int64
	Nome string
}

// HistoricoPreco is one price period for a (produto, cidade) pair:
// the price held from DataInicio through DataFim inclusive. A nil DataFim
// means the period is still open. Closed rows are never mutated.
type HistoricoPreco struct {
	ID         int64
	ProdutoID  int64
	CidadeID   int64
	Preco      float64
	DataInicio time.Time
	DataFim    *time.Time
}

// DisponibilidadeCidade is one availability period for a (produto, cidade)
// pair. Disponivel is explicit so "became unavailable" can open a period of
// its own rather than being inferred from row absence.
type DisponibilidadeCidade struct {
	ID         int64
	ProdutoID  int64
	CidadeID   int64
	Disponivel bool
	DataInicio time.Time
	DataFim    *time.Time
}

// Imagem is a row of the imagens table. Conteudo stays nil until the image
// worker downloads the file; LinkImagem is filled by the discovery pass.
type Imagem struct {
	ProdutoID       int64
	LinkImagem      string
	Conteudo        []byte
	DataAtualizacao time.Time
}

// LogExecucao records the date of a completed scrape run. The gap closer
// reads the latest row; the scheduler uses it as the ran-today guard.
type LogExecucao struct {
	ID           int64
	DataExecucao time.Time
}

// MudancaPreco is one row of the changed-price digest: the earliest and the
// latest known price of a product over its whole history, where they differ.
type MudancaPreco struct {
	ProdutoID    int64
	PrecoInicial float64
	PrecoFinal   float64
	PrimeiraData time.Time
	UltimaData   time.Time
}
