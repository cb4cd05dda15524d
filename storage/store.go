package storage

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

// DefaultBatchSize bounds every bulk statement (IN lookups, tuple closes,
// multi-row inserts). Correctness does not depend on its value.
const DefaultBatchSize = 500

// ErrIntegrity marks a uniqueness-constraint violation surfaced by the
// backend. The transaction is already rolled back when it is returned;
// callers log and skip the run instead of retrying.
var ErrIntegrity = errors.New("integrity violation")

// IsIntegrity reports whether err is (or wraps) an integrity violation.
func IsIntegrity(err error) bool {
	return errors.Is(err, ErrIntegrity)
}

// Key identifies one (produto, cidade) pair in the period tables.
type Key struct {
	ProdutoID int64
	CidadeID  int64
}

// ConflictSafeWriter performs a bulk insert that silently skips rows
// violating the uniqueness constraint on conflictCols. Existing rows are
// never modified. The returned count is rows actually written on Postgres;
// the SQLite emulation reports attempted rows instead (see sqlite.go).
type ConflictSafeWriter interface {
	InsertIgnore(ctx context.Context, table string, rows []map[string]any, conflictCols []string) (int64, error)
}

// Queries is every operation the services need. It is implemented both by
// the root store handles (autocommit) and by their transaction-bound
// counterparts, so a unit of work written against Queries runs unchanged
// inside InTransaction.
type Queries interface {
	ConflictSafeWriter

	// Identity resolution. Bulk IN lookups, chunked; keys with no row are
	// simply absent from the map and are never auto-created here.
	ProdutoIDsPorLink(ctx context.Context, links []string) (map[string]int64, error)
	CidadeIDsPorNome(ctx context.Context, nomes []string) (map[string]int64, error)

	// Produtos.
	ProdutosPorLink(ctx context.Context, links []string) (map[string]*models.Produto, error)
	InserirProdutos(ctx context.Context, produtos []models.Produto) (int64, error)
	AtualizarProduto(ctx context.Context, p *models.Produto) error
	ContarProdutosSemCategoria(ctx context.Context) (int, error)

	// Cidades.
	ContarCidades(ctx context.Context) (int, error)
	InserirCidades(ctx context.Context, nomes []string) (int64, error)

	// Price periods.
	PrecosAbertos(ctx context.Context) (map[Key]float64, error)
	FecharPrecos(ctx context.Context, keys []Key, fim time.Time) (int64, error)
	InserirPrecos(ctx context.Context, rows []models.HistoricoPreco) (int64, error)

	// Availability periods.
	DisponibilidadesAbertas(ctx context.Context) (map[Key]bool, error)
	FecharDisponibilidades(ctx context.Context, keys []Key, fim time.Time) (int64, error)
	InserirDisponibilidades(ctx context.Context, rows []models.DisponibilidadeCidade) (int64, error)

	// Gap closing and run log.
	FecharTodosAbertos(ctx context.Context, fim time.Time) (int64, error)
	UltimaExecucao(ctx context.Context) (time.Time, bool, error)
	RegistrarExecucao(ctx context.Context, dia time.Time) error

	// Changed-price digest over the full history.
	MudancasPreco(ctx context.Context) ([]models.MudancaPreco, error)

	// Imagens.
	ProdutosSemImagem(ctx context.Context, limite int) (map[string]int64, error)
	InserirLinksImagem(ctx context.Context, imagens []models.Imagem) (int64, error)
	AtualizarConteudoImagem(ctx context.Context, link string, conteudo []byte) error
	ImagensPendentes(ctx context.Context, limite int) ([]models.Imagem, error)
}

// Store is a storage handle owned by the orchestration layer and passed
// into each service explicitly. InTransaction wraps fn in begin/commit with
// rollback on error; fn sees a Queries bound to that transaction.
type Store interface {
	Queries
	InTransaction(ctx context.Context, fn func(q Queries) error) error
	Close() error
}

// chunk splits items into slices of at most size elements.
func chunk[T any](items []T, size int) [][]T {
	if size <= 0 {
		size = DefaultBatchSize
	}
	var out [][]T
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[i:end])
	}
	return out
}

// rowColumns returns the sorted column names of a row set so generated SQL
// is deterministic regardless of map iteration order.
func rowColumns(rows []map[string]any) []string {
	if len(rows) == 0 {
		return nil
	}
	cols := make([]string, 0, len(rows[0]))
	for c := range rows[0] {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	return cols
}
