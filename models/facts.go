package models

// ResultadoCategoria is the raw output of scraping one category page under
// one city cookie: parallel product and price tuples plus the city label.
type ResultadoCategoria struct {
	Produtos []ProdutoBruto
	Precos   []PrecoBruto
	Cidade   string
}

// ProdutoBruto is a raw (nome, link, categoria) tuple. Categoria is nil when
// the page was scraped through a root category URL.
type ProdutoBruto struct {
	Nome      string
	Link      string
	Categoria *string
}

// PrecoBruto is a raw (link, preco) observation.
type PrecoBruto struct {
	Link  string
	Preco float64
}

// ProdutoInfo is a deduplicated product fact keyed by link.
type ProdutoInfo struct {
	Nome      string
	Link      string
	Categoria *string
}

// PrecoInfo is a price that held across every observed city.
type PrecoInfo struct {
	Link  string
	Preco float64
}

// PrecoVariavel is a per-city price for a product whose price differs
// between cities.
type PrecoVariavel struct {
	Link   string
	Preco  float64
	Cidade string
}

// DisponibilidadeInfo records that a product was observed at all in a city.
type DisponibilidadeInfo struct {
	ProdutoLink string
	Cidade      string
}

// DadosProcessados is the classified snapshot handed to the save pipeline.
type DadosProcessados struct {
	Produtos         []ProdutoInfo
	PrecosUniformes  []PrecoInfo
	PrecosVariaveis  []PrecoVariavel
	Disponibilidades []DisponibilidadeInfo
}
