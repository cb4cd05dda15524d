package services

import (
	"testing"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

func TestReconciliar_NovoEAusente(t *testing.T) {
	hoje := map[storage.Key]float64{
		{ProdutoID: 1, CidadeID: 1}: 10.00,
		{ProdutoID: 2, CidadeID: 1}: 20.00,
	}
	abertos := map[storage.Key]float64{
		{ProdutoID: 2, CidadeID: 1}: 20.00,
		{ProdutoID: 3, CidadeID: 1}: 30.00,
	}

	p := reconciliar(hoje, abertos, precoIgual)

	if len(p.inserir) != 1 {
		t.Fatalf("expected 1 insert, got %d", len(p.inserir))
	}
	if v := p.inserir[storage.Key{ProdutoID: 1, CidadeID: 1}]; v != 10.00 {
		t.Fatalf("expected product 1 opened at 10.00, got %v", v)
	}
	if len(p.fechar) != 1 {
		t.Fatalf("expected 1 close, got %d", len(p.fechar))
	}
	if p.fechar[0] != (storage.Key{ProdutoID: 3, CidadeID: 1}) {
		t.Fatalf("expected product 3 closed, got %+v", p.fechar[0])
	}
}

func TestReconciliar_MudancaDePreco(t *testing.T) {
	k := storage.Key{ProdutoID: 1, CidadeID: 2}
	hoje := map[storage.Key]float64{k: 12.50}
	abertos := map[storage.Key]float64{k: 11.00}

	p := reconciliar(hoje, abertos, precoIgual)

	if len(p.fechar) != 1 || p.fechar[0] != k {
		t.Fatalf("expected the changed key closed, got %+v", p.fechar)
	}
	if v, ok := p.inserir[k]; !ok || v != 12.50 {
		t.Fatalf("expected reopen at 12.50, got %v (present=%v)", v, ok)
	}
}

func TestReconciliar_ToleranciaDeCentavo(t *testing.T) {
	k := storage.Key{ProdutoID: 1, CidadeID: 1}

	// Half a cent of float noise must not churn the period.
	p := reconciliar(
		map[storage.Key]float64{k: 10.005},
		map[storage.Key]float64{k: 10.00},
		precoIgual,
	)
	if len(p.fechar) != 0 || len(p.inserir) != 0 {
		t.Fatalf("0.005 difference should be a no-op, got close=%d insert=%d", len(p.fechar), len(p.inserir))
	}

	// Two cents is a real change.
	p = reconciliar(
		map[storage.Key]float64{k: 10.02},
		map[storage.Key]float64{k: 10.00},
		precoIgual,
	)
	if len(p.fechar) != 1 || len(p.inserir) != 1 {
		t.Fatalf("0.02 difference should turn the period over, got close=%d insert=%d", len(p.fechar), len(p.inserir))
	}
}

func TestReconciliar_Idempotente(t *testing.T) {
	hoje := map[storage.Key]float64{
		{ProdutoID: 1, CidadeID: 1}: 10.00,
		{ProdutoID: 2, CidadeID: 3}: 20.00,
	}
	abertos := map[storage.Key]float64{
		{ProdutoID: 1, CidadeID: 1}: 10.00,
		{ProdutoID: 2, CidadeID: 3}: 20.00,
	}

	p := reconciliar(hoje, abertos, precoIgual)

	if len(p.fechar) != 0 || len(p.inserir) != 0 {
		t.Fatalf("identical observation should be a no-op, got close=%d insert=%d", len(p.fechar), len(p.inserir))
	}
}

func TestReconciliar_Disponibilidade(t *testing.T) {
	k1 := storage.Key{ProdutoID: 1, CidadeID: 1}
	k2 := storage.Key{ProdutoID: 2, CidadeID: 1}

	p := reconciliar(
		map[storage.Key]bool{k1: true},
		map[storage.Key]bool{k1: true, k2: true},
		func(a, b bool) bool { return a == b },
	)

	if len(p.inserir) != 0 {
		t.Fatalf("expected no inserts, got %d", len(p.inserir))
	}
	if len(p.fechar) != 1 || p.fechar[0] != k2 {
		t.Fatalf("expected only the vanished product closed, got %+v", p.fechar)
	}
}
