package storage

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/models"
)

// pgQuerier is satisfied by both *pgxpool.Pool and pgx.Tx, so the same
// query methods serve autocommit and transactional paths.
type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type pgQueries struct {
	q         pgQuerier
	batchSize int
}

// PostgresStore is the full-featured backend, reached through a pgx pool.
type PostgresStore struct {
	pgQueries
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	config, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	config.MaxConns = 10
	config.MinConns = 2
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping: %w", err)
	}

	s := &PostgresStore{
		pgQueries: pgQueries{q: pool, batchSize: DefaultBatchSize},
		pool:      pool,
	}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return s, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

// SetBatchSize overrides the bulk statement size (default 500).
func (s *PostgresStore) SetBatchSize(n int) {
	if n > 0 {
		s.batchSize = n
	}
}

func (s *PostgresStore) migrate(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS produtos (
		id BIGSERIAL PRIMARY KEY,
		nome VARCHAR(255) NOT NULL,
		link VARCHAR(1024) NOT NULL UNIQUE,
		categoria VARCHAR(255),
		data_atualizacao DATE NOT NULL DEFAULT CURRENT_DATE
	);

	CREATE TABLE IF NOT EXISTS cidades (
		id BIGSERIAL PRIMARY KEY,
		nome VARCHAR(255) NOT NULL UNIQUE
	);

	CREATE TABLE IF NOT EXISTS historico_precos (
		id BIGSERIAL PRIMARY KEY,
		produto_id BIGINT NOT NULL REFERENCES produtos(id),
		cidade_id BIGINT NOT NULL DEFAULT 1 REFERENCES cidades(id),
		preco DOUBLE PRECISION NOT NULL,
		data_inicio DATE NOT NULL,
		data_fim DATE,
		UNIQUE (produto_id, cidade_id, data_inicio)
	);

	CREATE TABLE IF NOT EXISTS disponibilidade_cidades (
		id BIGSERIAL PRIMARY KEY,
		produto_id BIGINT NOT NULL REFERENCES produtos(id),
		cidade_id BIGINT NOT NULL REFERENCES cidades(id),
		disponivel BOOLEAN NOT NULL DEFAULT TRUE,
		data_inicio DATE NOT NULL,
		data_fim DATE,
		UNIQUE (produto_id, cidade_id, data_inicio)
	);

	CREATE TABLE IF NOT EXISTS imagens (
		produto_id BIGINT PRIMARY KEY REFERENCES produtos(id),
		link_imagem VARCHAR(1024) NOT NULL,
		conteudo BYTEA,
		data_atualizacao DATE NOT NULL DEFAULT CURRENT_DATE
	);

	CREATE TABLE IF NOT EXISTS log_execucoes (
		id BIGSERIAL PRIMARY KEY,
		data_execucao DATE NOT NULL UNIQUE
	);

	CREATE INDEX IF NOT EXISTS idx_precos_abertos ON historico_precos(produto_id, cidade_id) WHERE data_fim IS NULL;
	CREATE INDEX IF NOT EXISTS idx_disponibilidade_aberta ON disponibilidade_cidades(produto_id, cidade_id) WHERE data_fim IS NULL;
	CREATE INDEX IF NOT EXISTS idx_precos_inicio ON historico_precos(data_inicio);
	`
	_, err := s.pool.Exec(ctx, schema)
	return err
}

// InTransaction runs fn inside one transaction: commit on nil, rollback on
// error. Integrity violations come back wrapped in ErrIntegrity.
func (s *PostgresStore) InTransaction(ctx context.Context, fn func(q Queries) error) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if err := fn(&pgQueries{q: tx, batchSize: s.batchSize}); err != nil {
		return wrapPgErr(err)
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapPgErr(err)
	}
	return nil
}

func wrapPgErr(err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%w: %v", ErrIntegrity, err)
	}
	return err
}

// =============================================================================
// ConflictSafeWriter
// =============================================================================

// InsertIgnore bulk-inserts rows, skipping uniqueness conflicts on
// conflictCols via ON CONFLICT DO NOTHING. Returns rows actually written.
func (p *pgQueries) InsertIgnore(ctx context.Context, table string, rows []map[string]any, conflictCols []string) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	cols := rowColumns(rows)

	var written int64
	for _, batch := range chunk(rows, p.batchSize) {
		query := buildPgInsertIgnore(table, cols, conflictCols, len(batch))
		args := make([]any, 0, len(batch)*len(cols))
		for _, row := range batch {
			for _, c := range cols {
				args = append(args, row[c])
			}
		}
		tag, err := p.q.Exec(ctx, query, args...)
		if err != nil {
			return written, wrapPgErr(err)
		}
		written += tag.RowsAffected()
	}
	return written, nil
}

func buildPgInsertIgnore(table string, cols, conflictCols []string, nRows int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "INSERT INTO %s (%s) VALUES ", table, strings.Join(cols, ", "))
	arg := 1
	for i := 0; i < nRows; i++ {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteByte('(')
		for j := range cols {
			if j > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "$%d", arg)
			arg++
		}
		b.WriteByte(')')
	}
	fmt.Fprintf(&b, " ON CONFLICT (%s) DO NOTHING", strings.Join(conflictCols, ", "))
	return b.String()
}

// =============================================================================
// Identity resolution
// =============================================================================

func (p *pgQueries) ProdutoIDsPorLink(ctx context.Context, links []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(links))
	for _, batch := range chunk(links, p.batchSize) {
		rows, err := p.q.Query(ctx, `SELECT link, id FROM produtos WHERE link = ANY($1)`, batch)
		if err != nil {
			return nil, err
		}
		if err := scanKeyIDs(rows, ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func (p *pgQueries) CidadeIDsPorNome(ctx context.Context, nomes []string) (map[string]int64, error) {
	ids := make(map[string]int64, len(nomes))
	for _, batch := range chunk(nomes, p.batchSize) {
		rows, err := p.q.Query(ctx, `SELECT nome, id FROM cidades WHERE nome = ANY($1)`, batch)
		if err != nil {
			return nil, err
		}
		if err := scanKeyIDs(rows, ids); err != nil {
			return nil, err
		}
	}
	return ids, nil
}

func scanKeyIDs(rows pgx.Rows, into map[string]int64) error {
	defer rows.Close()
	for rows.Next() {
		var key string
		var id int64
		if err := rows.Scan(&key, &id); err != nil {
			return err
		}
		into[key] = id
	}
	return rows.Err()
}

// =============================================================================
// Produtos
// =============================================================================

func (p *pgQueries) ProdutosPorLink(ctx context.Context, links []string) (map[string]*models.Produto, error) {
	out := make(map[string]*models.Produto, len(links))
	for _, batch := range chunk(links, p.batchSize) {
		rows, err := p.q.Query(ctx, `
			SELECT id, nome, link, categoria, data_atualizacao
			FROM produtos WHERE link = ANY($1)`, batch)
		if err != nil {
			return nil, err
		}
		for rows.Next() {
			var pr models.Produto
			if err := rows.Scan(&pr.ID, &pr.Nome, &pr.Link, &pr.Categoria, &pr.DataAtualizacao); err != nil {
				rows.Close()
				return nil, err
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

func (p *pgQueries) InserirProdutos(ctx context.Context, produtos []models.Produto) (int64, error) {
	rows := make([]map[string]any, len(produtos))
	for i, pr := range produtos {
		rows[i] = map[string]any{
			"nome":             pr.Nome,
			"link":             pr.Link,
			"categoria":        pr.Categoria,
			"data_atualizacao": pr.DataAtualizacao,
		}
	}
	return p.InsertIgnore(ctx, "produtos", rows, []string{"link"})
}

func (p *pgQueries) AtualizarProduto(ctx context.Context, pr *models.Produto) error {
	_, err := p.q.Exec(ctx, `
		UPDATE produtos SET nome = $2, categoria = $3, data_atualizacao = $4
		WHERE id = $1`,
		pr.ID, pr.Nome, pr.Categoria, pr.DataAtualizacao)
	return err
}

func (p *pgQueries) ContarProdutosSemCategoria(ctx context.Context) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM produtos WHERE categoria IS NULL`).Scan(&n)
	return n, err
}

// =============================================================================
// Cidades
// =============================================================================

func (p *pgQueries) ContarCidades(ctx context.Context) (int, error) {
	var n int
	err := p.q.QueryRow(ctx, `SELECT COUNT(*) FROM cidades`).Scan(&n)
	return n, err
}

func (p *pgQueries) InserirCidades(ctx context.Context, nomes []string) (int64, error) {
	rows := make([]map[string]any, len(nomes))
	for i, nome := range nomes {
		rows[i] = map[string]any{"nome": nome}
	}
	return p.InsertIgnore(ctx, "cidades", rows, []string{"nome"})
}

// =============================================================================
// Price periods
// =============================================================================

func (p *pgQueries) PrecosAbertos(ctx context.Context) (map[Key]float64, error) {
	rows, err := p.q.Query(ctx, `
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

func (p *pgQueries) FecharPrecos(ctx context.Context, keys []Key, fim time.Time) (int64, error) {
	return p.fecharPeriodos(ctx, "historico_precos", keys, fim)
}

func (p *pgQueries) InserirPrecos(ctx context.Context, periodos []models.HistoricoPreco) (int64, error) {
	rows := make([]map[string]any, len(periodos))
	for i, hp := range periodos {
		rows[i] = map[string]any{
			"produto_id":  hp.ProdutoID,
			"cidade_id":   hp.CidadeID,
			"preco":       hp.Preco,
			"data_inicio": hp.DataInicio,
		}
	}
	return p.InsertIgnore(ctx, "historico_precos", rows, []string{"produto_id", "cidade_id", "data_inicio"})
}

// =============================================================================
// Availability periods
// =============================================================================

func (p *pgQueries) DisponibilidadesAbertas(ctx context.Context) (map[Key]bool, error) {
	rows, err := p.q.Query(ctx, `
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

func (p *pgQueries) FecharDisponibilidades(ctx context.Context, keys []Key, fim time.Time) (int64, error) {
	return p.fecharPeriodos(ctx, "disponibilidade_cidades", keys, fim)
}

func (p *pgQueries) InserirDisponibilidades(ctx context.Context, periodos []models.DisponibilidadeCidade) (int64, error) {
	rows := make([]map[string]any, len(periodos))
	for i, d := range periodos {
		rows[i] = map[string]any{
			"produto_id":  d.ProdutoID,
			"cidade_id":   d.CidadeID,
			"disponivel":  d.Disponivel,
			"data_inicio": d.DataInicio,
		}
	}
	return p.InsertIgnore(ctx, "disponibilidade_cidades", rows, []string{"produto_id", "cidade_id", "data_inicio"})
}

// fecharPeriodos closes open periods for the given keys in chunked
// tuple-IN updates. The data_fim IS NULL guard keeps already-closed rows
// untouched.
func (p *pgQueries) fecharPeriodos(ctx context.Context, table string, keys []Key, fim time.Time) (int64, error) {
	var fechados int64
	for _, batch := range chunk(keys, p.batchSize) {
		var b strings.Builder
		fmt.Fprintf(&b, "UPDATE %s SET data_fim = $1 WHERE data_fim IS NULL AND (produto_id, cidade_id) IN (", table)
		args := make([]any, 0, 1+2*len(batch))
		args = append(args, fim)
		for i, k := range batch {
			if i > 0 {
				b.WriteString(", ")
			}
			fmt.Fprintf(&b, "($%d, $%d)", len(args)+1, len(args)+2)
			args = append(args, k.ProdutoID, k.CidadeID)
		}
		b.WriteByte(')')

		tag, err := p.q.Exec(ctx, b.String(), args...)
		if err != nil {
			return fechados, err
		}
		fechados += tag.RowsAffected()
	}
	return fechados, nil
}

// =============================================================================
// Gap closing and run log
// =============================================================================

func (p *pgQueries) FecharTodosAbertos(ctx context.Context, fim time.Time) (int64, error) {
	var total int64
	for _, table := range []string{"historico_precos", "disponibilidade_cidades"} {
		tag, err := p.q.Exec(ctx,
			fmt.Sprintf(`UPDATE %s SET data_fim = $1 WHERE data_fim IS NULL`, table), fim)
		if err != nil {
			return total, err
		}
		total += tag.RowsAffected()
	}
	return total, nil
}

func (p *pgQueries) UltimaExecucao(ctx context.Context) (time.Time, bool, error) {
	var dia time.Time
	err := p.q.QueryRow(ctx, `
		SELECT data_execucao FROM log_execucoes
		ORDER BY data_execucao DESC LIMIT 1`).Scan(&dia)
	if err == pgx.ErrNoRows {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return dia, true, nil
}

func (p *pgQueries) RegistrarExecucao(ctx context.Context, dia time.Time) error {
	_, err := p.q.Exec(ctx, `
		INSERT INTO log_execucoes (data_execucao) VALUES ($1)
		ON CONFLICT (data_execucao) DO NOTHING`, dia)
	return err
}

// =============================================================================
// Changed-price digest
// =============================================================================

// Portable SQL: correlated subqueries instead of window functions so the
// identical statement runs on both backends.
const mudancasPrecoSQL = `
	SELECT h.produto_id,
		(SELECT h2.preco FROM historico_precos h2
			WHERE h2.produto_id = h.produto_id
			ORDER BY h2.data_inicio ASC LIMIT 1) AS preco_inicial,
		(SELECT h3.preco FROM historico_precos h3
			WHERE h3.produto_id = h.produto_id
			ORDER BY h3.data_inicio DESC LIMIT 1) AS preco_final,
		MIN(h.data_inicio) AS primeira_data,
		MAX(h.data_inicio) AS ultima_data
	FROM historico_precos h
	GROUP BY h.produto_id`

// MudancasPreco compares each product's earliest and latest recorded price
// over the full history and returns the rows where they differ.
func (p *pgQueries) MudancasPreco(ctx context.Context) ([]models.MudancaPreco, error) {
	rows, err := p.q.Query(ctx, mudancasPrecoSQL)
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

func (p *pgQueries) ProdutosSemImagem(ctx context.Context, limite int) (map[string]int64, error) {
	rows, err := p.q.Query(ctx, `
		SELECT p.link, p.id
		FROM produtos p
		LEFT JOIN imagens i ON i.produto_id = p.id
		WHERE i.produto_id IS NULL
		LIMIT $1`, limite)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64)
	if err := scanKeyIDs(rows, out); err != nil {
		return nil, err
	}
	return out, nil
}

func (p *pgQueries) InserirLinksImagem(ctx context.Context, imagens []models.Imagem) (int64, error) {
	rows := make([]map[string]any, len(imagens))
	for i, img := range imagens {
		rows[i] = map[string]any{
			"produto_id":       img.ProdutoID,
			"link_imagem":      img.LinkImagem,
			"data_atualizacao": img.DataAtualizacao,
		}
	}
	return p.InsertIgnore(ctx, "imagens", rows, []string{"produto_id"})
}

func (p *pgQueries) AtualizarConteudoImagem(ctx context.Context, link string, conteudo []byte) error {
	_, err := p.q.Exec(ctx, `
		UPDATE imagens SET conteudo = $2, data_atualizacao = CURRENT_DATE
		WHERE link_imagem = $1`, link, conteudo)
	return err
}

func (p *pgQueries) ImagensPendentes(ctx context.Context, limite int) ([]models.Imagem, error) {
	rows, err := p.q.Query(ctx, `
		SELECT produto_id, link_imagem, data_atualizacao
		FROM imagens
		WHERE conteudo IS NULL AND link_imagem NOT LIKE '%removebg-preview%'
		LIMIT $1`, limite)
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
