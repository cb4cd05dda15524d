package services

import (
	"context"
	"time"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// fakeStore is an in-memory Store used by the service tests. It mirrors
// the period semantics of the real backends closely enough to verify the
// reconciliation logic without a database.
type fakeStore struct {
	nextID   int64
	produtos map[string]*models.Produto
	cidades  map[string]int64

	precosAbertos map[storage.Key]float64
	precosFechos  map[storage.Key]time.Time
	precosInicios map[storage.Key]time.Time

	dispAbertas map[storage.Key]bool
	dispFechos  map[storage.Key]time.Time

	execucoes []time.Time
	mudancas  []models.MudancaPreco

	imagens map[string]*models.Imagem
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		produtos:      make(map[string]*models.Produto),
		cidades:       make(map[string]int64),
		precosAbertos: make(map[storage.Key]float64),
		precosFechos:  make(map[storage.Key]time.Time),
		precosInicios: make(map[storage.Key]time.Time),
		dispAbertas:   make(map[storage.Key]bool),
		dispFechos:    make(map[storage.Key]time.Time),
		imagens:       make(map[string]*models.Imagem),
	}
}

// newTestService pins the clock so period dates are predictable.
func newTestService(f *fakeStore, dia time.Time) *Service {
	return &Service{
		store: f,
		now:   func() time.Time { return dia },
		loc:   time.UTC,
	}
}

func (f *fakeStore) InTransaction(_ context.Context, fn func(q storage.Queries) error) error {
	return fn(f)
}

func (f *fakeStore) Close() error { return nil }

func (f *fakeStore) InsertIgnore(_ context.Context, _ string, rows []map[string]any, _ []string) (int64, error) {
	return int64(len(rows)), nil
}

func (f *fakeStore) ProdutoIDsPorLink(_ context.Context, links []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, l := range links {
		if p, ok := f.produtos[l]; ok {
			out[l] = p.ID
		}
	}
	return out, nil
}

func (f *fakeStore) CidadeIDsPorNome(_ context.Context, nomes []string) (map[string]int64, error) {
	out := make(map[string]int64)
	for _, n := range nomes {
		if id, ok := f.cidades[n]; ok {
			out[n] = id
		}
	}
	return out, nil
}

func (f *fakeStore) ProdutosPorLink(_ context.Context, links []string) (map[string]*models.Produto, error) {
	out := make(map[string]*models.Produto)
	for _, l := range links {
		if p, ok := f.produtos[l]; ok {
			cp := *p
			out[l] = &cp
		}
	}
	return out, nil
}

func (f *fakeStore) InserirProdutos(_ context.Context, produtos []models.Produto) (int64, error) {
	var n int64
	for _, p := range produtos {
		if _, ok := f.produtos[p.Link]; ok {
			continue
		}
		f.nextID++
		p.ID = f.nextID
		cp := p
		f.produtos[p.Link] = &cp
		n++
	}
	return n, nil
}

func (f *fakeStore) AtualizarProduto(_ context.Context, p *models.Produto) error {
	for _, atual := range f.produtos {
		if atual.ID == p.ID {
			atual.Nome = p.Nome
			atual.Categoria = p.Categoria
			atual.DataAtualizacao = p.DataAtualizacao
			return nil
		}
	}
	return nil
}

func (f *fakeStore) ContarProdutosSemCategoria(_ context.Context) (int, error) {
	var n int
	for _, p := range f.produtos {
		if p.Categoria == nil {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) ContarCidades(_ context.Context) (int, error) {
	return len(f.cidades), nil
}

func (f *fakeStore) InserirCidades(_ context.Context, nomes []string) (int64, error) {
	var n int64
	for _, nome := range nomes {
		if _, ok := f.cidades[nome]; ok {
			continue
		}
		f.cidades[nome] = int64(len(f.cidades) + 1)
		n++
	}
	return n, nil
}

func (f *fakeStore) PrecosAbertos(_ context.Context) (map[storage.Key]float64, error) {
	out := make(map[storage.Key]float64, len(f.precosAbertos))
	for k, v := range f.precosAbertos {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) FecharPrecos(_ context.Context, keys []storage.Key, fim time.Time) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.precosAbertos[k]; ok {
			delete(f.precosAbertos, k)
			f.precosFechos[k] = fim
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InserirPrecos(_ context.Context, rows []models.HistoricoPreco) (int64, error) {
	for _, r := range rows {
		k := storage.Key{ProdutoID: r.ProdutoID, CidadeID: r.CidadeID}
		f.precosAbertos[k] = r.Preco
		f.precosInicios[k] = r.DataInicio
	}
	return int64(len(rows)), nil
}

func (f *fakeStore) DisponibilidadesAbertas(_ context.Context) (map[storage.Key]bool, error) {
	out := make(map[storage.Key]bool, len(f.dispAbertas))
	for k, v := range f.dispAbertas {
		out[k] = v
	}
	return out, nil
}

func (f *fakeStore) FecharDisponibilidades(_ context.Context, keys []storage.Key, fim time.Time) (int64, error) {
	var n int64
	for _, k := range keys {
		if _, ok := f.dispAbertas[k]; ok {
			delete(f.dispAbertas, k)
			f.dispFechos[k] = fim
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) InserirDisponibilidades(_ context.Context, rows []models.DisponibilidadeCidade) (int64, error) {
	for _, r := range rows {
		f.dispAbertas[storage.Key{ProdutoID: r.ProdutoID, CidadeID: r.CidadeID}] = r.Disponivel
	}
	return int64(len(rows)), nil
}

func (f *fakeStore) FecharTodosAbertos(_ context.Context, fim time.Time) (int64, error) {
	n := int64(len(f.precosAbertos) + len(f.dispAbertas))
	for k := range f.precosAbertos {
		delete(f.precosAbertos, k)
		f.precosFechos[k] = fim
	}
	for k := range f.dispAbertas {
		delete(f.dispAbertas, k)
		f.dispFechos[k] = fim
	}
	return n, nil
}

func (f *fakeStore) UltimaExecucao(_ context.Context) (time.Time, bool, error) {
	if len(f.execucoes) == 0 {
		return time.Time{}, false, nil
	}
	return f.execucoes[len(f.execucoes)-1], true, nil
}

func (f *fakeStore) RegistrarExecucao(_ context.Context, dia time.Time) error {
	f.execucoes = append(f.execucoes, dia)
	return nil
}

func (f *fakeStore) MudancasPreco(_ context.Context) ([]models.MudancaPreco, error) {
	return f.mudancas, nil
}

func (f *fakeStore) ProdutosSemImagem(_ context.Context, limite int) (map[string]int64, error) {
	out := make(map[string]int64)
	for link, p := range f.produtos {
		if len(out) >= limite {
			break
		}
		temImagem := false
		for _, img := range f.imagens {
			if img.ProdutoID == p.ID {
				temImagem = true
				break
			}
		}
		if !temImagem {
			out[link] = p.ID
		}
	}
	return out, nil
}

func (f *fakeStore) InserirLinksImagem(_ context.Context, imagens []models.Imagem) (int64, error) {
	for _, img := range imagens {
		cp := img
		f.imagens[img.LinkImagem] = &cp
	}
	return int64(len(imagens)), nil
}

func (f *fakeStore) AtualizarConteudoImagem(_ context.Context, link string, conteudo []byte) error {
	if img, ok := f.imagens[link]; ok {
		img.Conteudo = conteudo
	}
	return nil
}

func (f *fakeStore) ImagensPendentes(_ context.Context, limite int) ([]models.Imagem, error) {
	var out []models.Imagem
	for _, img := range f.imagens {
		if len(out) >= limite {
			break
		}
		if img.Conteudo == nil {
			out = append(out, *img)
		}
	}
	return out, nil
}
