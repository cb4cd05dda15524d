package storage

import (
	"testing"
)

func TestBuildPgInsertIgnore(t *testing.T) {
	got := buildPgInsertIgnore("cidades", []string{"nome"}, []string{"nome"}, 2)
	want := "INSERT INTO cidades (nome) VALUES ($1), ($2) ON CONFLICT (nome) DO NOTHING"
	if got != want {
		t.Fatalf("unexpected SQL:\n got %s\nwant %s", got, want)
	}
}

func TestBuildPgInsertIgnore_MultiColumn(t *testing.T) {
	got := buildPgInsertIgnore("historico_precos",
		[]string{"cidade_id", "data_inicio", "preco", "produto_id"},
		[]string{"produto_id", "cidade_id", "data_inicio"}, 2)
	want := "INSERT INTO historico_precos (cidade_id, data_inicio, preco, produto_id) " +
		"VALUES ($1, $2, $3, $4), ($5, $6, $7, $8) " +
		"ON CONFLICT (produto_id, cidade_id, data_inicio) DO NOTHING"
	if got != want {
		t.Fatalf("unexpected SQL:\n got %s\nwant %s", got, want)
	}
}

func TestChunk(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}

	batches := chunk(items, 2)
	if len(batches) != 3 {
		t.Fatalf("expected 3 batches, got %d", len(batches))
	}
	if len(batches[0]) != 2 || len(batches[2]) != 1 {
		t.Fatalf("unexpected batch sizes: %d, %d", len(batches[0]), len(batches[2]))
	}

	if got := chunk([]int{}, 2); got != nil {
		t.Fatalf("empty input should produce no batches, got %v", got)
	}

	// A non-positive size falls back to the default instead of looping.
	batches = chunk(items, 0)
	if len(batches) != 1 || len(batches[0]) != 5 {
		t.Fatalf("expected one default-size batch, got %d", len(batches))
	}
}

func TestRowColumns_Deterministic(t *testing.T) {
	rows := []map[string]any{
		{"preco": 1.0, "cidade_id": 1, "produto_id": 2, "data_inicio": nil},
	}
	cols := rowColumns(rows)
	want := []string{"cidade_id", "data_inicio", "preco", "produto_id"}
	if len(cols) != len(want) {
		t.Fatalf("expected %d columns, got %d", len(want), len(cols))
	}
	for i := range want {
		if cols[i] != want[i] {
			t.Fatalf("column %d: expected %s, got %s", i, want[i], cols[i])
		}
	}
}

func TestPlaceholders(t *testing.T) {
	if got := placeholders(3); got != "?, ?, ?" {
		t.Fatalf("unexpected placeholders: %q", got)
	}
	if got := placeholders(1); got != "?" {
		t.Fatalf("unexpected placeholders: %q", got)
	}
}
