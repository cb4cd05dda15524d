package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

// sqQuerier is satisfied by both *sql.DB and *sql.Tx.
type sqQuerier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type sqQueries struct {
	q         sqQuerier
	batchSize int
}

// SQLiteStore is the minimal local backend, used for development and
// single-machine deployments.
type SQLiteStore struct {
	sqQueries
	db *sql.DB
}

func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_loc=UTC")
	if err != nil {
		return nil, err
	}

	store := &SQLiteStore{
		sqQueries: sqQueries{q: db, batchSize: DefaultBatchSize},
		db:        db,
	}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return store, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// SetBatchSize overrides the bulk statement size (default 500).
func (s *SQLiteStore) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS produtos (
		id INTEGER PRIMARY KEY,
		nome TEXT NOT NULL,
		link TEXT NOT NULL UNIQUE,
		categoria TEXT,
		data_atualizacao DATE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS cidades (
		id INTEGER PRIMARY KEY,
		nome TEXT NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS historico_precos (
		id INTEGER PRIMARY KEY,
		produto_id INTEGER NOT NULL REFERENCES produtos(id),
		cidade_id INTEGER NOT NULL DEFAULT 1 REFERENCES cidades(id),
		preco REAL NOT NULL,
		data_inicio DATE NOT NULL,
		data_fim DATE,
		UNIQUE (produto_id, cidade_id, data_inicio)
	);

	CREATE TABLE IF NOT EXISTS disponibilidade_cidades (
		id INTEGER PRIMARY KEY,
		produto_id INTEGER NOT NULL REFERENCES produtos(id),
		cidade_id INTEGER NOT NULL REFERENCES cidades(id),
		disponivel BOOLEAN NOT NULL DEFAULT TRUE,
		data_inicio DATE NOT NULL,
		data_fim DATE,
		UNIQUE (produto_id, cidade_id, data_inicio)
	);

	CREATE TABLE IF NOT EXISTS imagens (
		produto_id INTEGER PRIMARY KEY REFERENCES produtos(id),
		link_imagem TEXT NOT NULL,
		conteudo BLOB,
		data_atualizacao DATE NOT NULL
	);

	CREATE TABLE IF NOT EXISTS log_execucoes (
		id INTEGER PRIMARY KEY,
		data_execucao DATE NOT NULL UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_precos_abertos ON historico_precos(produto_id, cidade_id) WHERE data_fim IS NULL;
	CREATE INDEX IF NOT EXISTS idx_disponibilidade_aberta ON disponibilidade_cidades(produto_id, cidade_id) WHERE data_fim IS NULL;
	CREATE INDEX IF NOT EXISTS idx_precos_inicio ON historico_precos(data_inicio);
	`
	_, err := s.db.Exec(schema)
	return err
}

// InTransaction runs fn inside one transaction: commit on nil, rollback on
// error. Integrity violations come back wrapped in ErrIntegrity.
func (s *SQLiteStore) InTransaction(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if err := fn(&sqQueries{q: tx, batchSize: s.batchSize}); err != nil {
		return wrapSQLiteErr(err)
	}
	if err := tx.Commit(); err != nil {
		return wrapSQLiteErr(err)
	}
	return nil
}

func wrapSQLiteErr(err error) error {
	var serr sqlite3.Error
	if errors.As(err, &serr) && serr.Code == sqlite3.ErrConstraint {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return err
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

// =============================================================================
// ConflictSafeWriter
// =============================================================================

// InsertIgnore emulates conflict-skipping bulk insert with per-row
// INSERT OR IGNORE statements. Slower than the Postgres path but the final
// table state is the same. The returned count is attempted rows, not true
// inserts; SQLite has no cheap affected-count for the OR IGNORE path and
// the asymmetry is accepted (callers only log it).
func (s *sqQueries) InsertIgnore(ctx context.Context, table string, rows []map[string]any, conflictCols []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := rowColumns(rows)
	query := fmt.Sprintf("INSERT OR IGNORE INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), placeholders(len(cols)))

	var attempted int64
	for _, row := range rows {
		args := make([]any, len(cols))
		for i, c := range cols {
			args[i] = row[c]
		}
		if _, err := s.q.ExecContext(ctx, query, args...); err != nil {
			return attempted, wrapSQLiteErr(err)
		}
		attempted++
	}
	return attempted, nil
}

// =============================================================================
// Identity resolution
// =============================================================================

func (s *sqQueries) lookupIDs(ctx context.Context, query string, keys []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(keys))
	for _, batch := range chunk(keys, s.batchSize) {
		args := make([]any, len(batch))
		for i, k := range batch {
			args[i] = k
		}
		rows, err := s.q.QueryContext(ctx, fmt.Sprintf(query, placeholders(len(batch))), args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var key string
			var id int64
			if err := rows.Scan(&key, &id); err != nil {
				rows.Close()
				return nil, err
			}
			ids[key] = id
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (s *sqQueries) ProdutoIDsPorLink(ctx context.Context, links []string) (map[string]int64, error) {
	return s.lookupIDs(ctx, `SELECT link, id FROM produtos WHERE link IN (%s)`, links)
}

func (s *sqQueries) CidadeIDsPorNome(ctx context.Context, nomes []string) (map[string]int64, error) {
	return s.lookupIDs(ctx, `SELECT nome, id FROM cidades WHERE nome IN (%s)`, nomes)
}

// =============================================================================
// Produtos
// =============================================================================

func (s *sqQueries) ProdutosPorLink(ctx context.Context, links []string) (map[string]*models.Produto, error) {
	out := make(map[string]*models.Produto, len(links))
	for _, batch := range chunk(links, s.batchSize) {
		args := make([]any, len(batch))
		for i, l := range batch {
			args[i] = l
		}
		rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
			SELECT id, nome, link, categoria, data_atualizacao
			FROM produtos WHERE link IN (%s)`, placeholders(len(batch))), args...)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var pr models.Produto
			var categoria sql.NullString
			if err := rows.Scan(&pr.ID, &pr.Nome, &pr.Link, &categoria, &pr.DataAtualizacao); err != nil {
				rows.Close()
				return nil, err
			}
			if categoria.Valid {
				pr.Categoria = &categoria.String
			}
			out[pr.Link] = &pr
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *sqQueries) InserirProdutos(ctx context.Context, produtos []models.Produto) (int64, error) {
	rows := make([]map[string]any, len(produtos))
	for i, pr := range produtos {
		rows[i] = map[string]any{
			"nome":             pr.Nome,
			"link":             pr.Link,
			"categoria":        pr.Categoria,
			"data_atualizacao": pr.DataAtualizacao,
		}
	}
	return s.InsertIgnore(ctx, "produtos", rows, []string{"link"})
}

func (s *sqQueries) AtualizarProduto(ctx context.Context, pr *models.Produto) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE produtos SET nome = ?, categoria = ?, data_atualizacao = ?
		WHERE id = ?`,
		pr.Nome, pr.Categoria, pr.DataAtualizacao, pr.ID)
	return err
}

func (s *sqQueries) ContarProdutosSemCategoria(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM produtos WHERE categoria IS NULL`).Scan(&n)
	return n, err
}

// =============================================================================
// Cidades
// =============================================================================

func (s *sqQueries) ContarCidades(ctx context.Context) (int, error) {
	var n int
	err := s.q.QueryRowContext(ctx, `SELECT COUNT(*) FROM cidades`).Scan(&n)
	return n, err
}

func (s *sqQueries) InserirCidades(ctx context.Context, nomes []string) (int64, error) {
	rows := make([]map[string]any, len(nomes))
	for i, nome := range nomes {
		rows[i] = map[string]any{"nome": nome}
	}
	return s.InsertIgnore(ctx, "cidades", rows, []string{"nome"})
}

// =============================================================================
// Price periods
// =============================================================================

func (s *sqQueries) PrecosAbertos(ctx context.Context) (map[Key]float64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT produto_id, cidade_id, preco
		FROM historico_precos WHERE data_fim IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	abertos := make(map[Key]float64)
	for rows.Next() {
		var k Key
		var preco float64
		if err := rows.Scan(&k.ProdutoID, &k.CidadeID, &preco); err != nil {
			return nil, err
		}
		abertos[k] = preco
	}
	return abertos, rows.Err()
}

func (s *sqQueries) FecharPrecos(ctx context.Context, keys []Key, fim time.Time) (int64, error) {
	return s.fecharPeriodos(ctx, "historico_precos", keys, fim)
}

func (s *sqQueries) InserirPrecos(ctx context.Context, periodos []models.HistoricoPreco) (int64, error) {
	rows := make([]map[string]any, len(periodos))
	for i, hp := range periodos {
		rows[i] = map[string]any{
			"produto_id":  hp.ProdutoID,
			"cidade_id":   hp.CidadeID,
			"preco":       hp.Preco,
			"data_inicio": hp.DataInicio,
		}
	}
	return s.InsertIgnore(ctx, "historico_precos", rows, []string{"produto_id", "cidade_id", "data_inicio"})
}

// =============================================================================
// Availability periods
// =============================================================================

func (s *sqQueries) DisponibilidadesAbertas(ctx context.Context) (map[Key]bool, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT produto_id, cidade_id, disponivel
		FROM disponibilidade_cidades WHERE data_fim IS NULL`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	abertas := make(map[Key]bool)
	for rows.Next() {
		var k Key
		var disponivel bool
		if err := rows.Scan(&k.ProdutoID, &k.CidadeID, &disponivel); err != nil {
			return nil, err
		}
		abertas[k] = disponivel
	}
	return abertas, rows.Err()
}

func (s *sqQueries) FecharDisponibilidades(ctx context.Context, keys []Key, fim time.Time) (int64, error) {
	return s.fecharPeriodos(ctx, "disponibilidade_cidades", keys, fim)
}

func (s *sqQueries) InserirDisponibilidades(ctx context.Context, periodos []models.DisponibilidadeCidade) (int64, error) {
	rows := make([]map[string]any, len(periodos))
	for i, d := range periodos {
		rows[i] = map[string]any{
			"produto_id":  d.ProdutoID,
			"cidade_id":   d.CidadeID,
			"disponivel":  d.Disponivel,
			"data_inicio": d.DataInicio,
		}
	}
	return s.InsertIgnore(ctx, "disponibilidade_cidades", rows, []string{"produto_id", "cidade_id", "data_inicio"})
}

// fecharPeriodos uses row-value IN lists (supported since SQLite 3.15) in
// chunks, mirroring the Postgres path.
func (s *sqQueries) fecharPeriodos(ctx context.Context, table string, keys []Key, fim time.Time) (int64, error) {
	var fechados int64
	for _, batch := range chunk(keys, s.batchSize) {
		var b strings.Builder
		fmt.Fprintf(&b, "UPDATE %s SET data_fim = ? WHERE data_fim IS NULL AND (produto_id, cidade_id) IN (VALUES ", table)
		args := make([]any, 0, 1+2*len(batch))
		args = append(args, fim)
		for i, k := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString("(?, ?)")
			args = append(args, k.ProdutoID, k.CidadeID)
		}
		b.WriteByte(')')

		res, err := s.q.ExecContext(ctx, b.String(), args...)
		if err != nil {
			return fechados, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fechados, err
		}
		fechados += n
	}
	return fechados, nil
}

// =============================================================================
// Gap closing and run log
// =============================================================================

func (s *sqQueries) FecharTodosAbertos(ctx context.Context, fim time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"historico_precos", "disponibilidade_cidades"} {
		res, err := s.q.ExecContext(ctx,
			fmt.Sprintf(`UPDATE %s SET data_fim = ? WHERE data_fim IS NULL`, table), fim)
		if err != nil {
			return total, err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return total, err
		}
		total += n
	}
	return total, nil
}

func (s *sqQueries) UltimaExecucao(ctx context.Context) (time.Time, bool, error) {
	var dia time.Time
	err := s.q.QueryRowContext(ctx, `
		SELECT data_execucao FROM log_execucoes
		ORDER BY data_execucao DESC LIMIT 1`).Scan(&dia)
	if err == sql.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return dia, true, nil
}

func (s *sqQueries) RegistrarExecucao(ctx context.Context, dia time.Time) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT OR IGNORE INTO log_execucoes (data_execucao) VALUES (?)`, dia)
	return err
}

// =============================================================================
// Changed-price digest
// =============================================================================

func (s *sqQueries) MudancasPreco(ctx context.Context) ([]models.MudancaPreco, error) {
	rows, err := s.q.QueryContext(ctx, mudancasPrecoSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var mudancas []models.MudancaPreco
	for rows.Next() {
		var m models.MudancaPreco
		if err := rows.Scan(&m.ProdutoID, &m.PrecoInicial, &m.PrecoFinal, &m.PrimeiraData, &m.UltimaData); err != nil {
			return nil, err
		}
		if m.PrecoInicial != m.PrecoFinal {
			mudancas = append(mudancas, m)
		}
	}
	return mudancas, rows.Err()
}

// =============================================================================
// Imagens
// =============================================================================

func (s *sqQueries) ProdutosSemImagem(ctx context.Context, limite int) (map[string]int64, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT p.link, p.id
		FROM produtos p
		LEFT JOIN imagens i ON i.produto_id = p.id
		WHERE i.produto_id IS NULL
		LIMIT ?`, limite)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]int64)
	for rows.Next() {
		var link string
		var id int64
		if err := rows.Scan(&link, &id); err != nil {
			return nil, err
		}
		out[link] = id
	}
	return out, rows.Err()
}

func (s *sqQueries) InserirLinksImagem(ctx context.Context, imagens []models.Imagem) (int64, error) {
	rows := make([]map[string]any, len(imagens))
	for i, img := range imagens {
		rows[i] = map[string]any{
			"produto_id":       img.ProdutoID,
			"link_imagem":      img.LinkImagem,
			"data_atualizacao": img.DataAtualizacao,
		}
	}
	return s.InsertIgnore(ctx, "imagens", rows, []string{"produto_id"})
}

func (s *sqQueries) AtualizarConteudoImagem(ctx context.Context, link string, conteudo []byte) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE imagens SET conteudo = ?, data_atualizacao = DATE('now')
		WHERE link_imagem = ?`, conteudo, link)
	return err
}

func (s *sqQueries) ImagensPendentes(ctx context.Context, limite int) ([]models.Imagem, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT produto_id, link_imagem, data_atualizacao
		FROM imagens
		WHERE conteudo IS NULL AND link_imagem NOT LIKE '%removebg-preview%'
		LIMIT ?`, limite)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var imagens []models.Imagem
	for rows.Next() {
		var img models.Imagem
		if err := rows.Scan(&img.ProdutoID, &img.LinkImagem, &img.DataAtualizacao); err != nil {
			return nil, err
		}
		imagens = append(imagens, img)
	}
	return imagens, rows.Err()
}
