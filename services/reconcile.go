package services

import (
	"math"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/AndreLuis933/irmaos-goncalves-scraper/storage"
)

// centavo is the tolerance when comparing an observed price against the
// open period. A period only turns over when the difference exceeds one
// cent, so float noise from parsing never churns the history.
const centavo = 0.01

func precoIgual(a, b float64) bool {
	return math.Abs(a-b) <= centavo
}

// plano is the outcome of diffing today's observations against the open
// periods: which periods to close, and which new periods to open.
type plano[V any] struct {
	fechar  []storage.Key
	inserir map[storage.Key]V
}

// reconciliar diffs the set of observed (produto, cidade) values against
// every currently open period:
//
//   - observed but not open: open a new period
//   - open but not observed: close, nothing reopens
//   - both, value unchanged: leave alone
//   - both, value changed: close the old period and open a new one
func reconciliar[V any](hoje, abertos map[storage.Key]V, igual func(a, b V) bool) plano[V] {
	observados := mapset.NewThreadUnsafeSetFromMapKeys(hoje)
	atuais := mapset.NewThreadUnsafeSetFromMapKeys(abertos)

	p := plano[V]{inserir: make(map[storage.Key]V)}

	for k := range observados.Difference(atuais).Iter() {
		p.inserir[k] = hoje[k]
	}
	for k := range atuais.Difference(observados).Iter() {
		p.fechar = append(p.fechar, k)
	}
	for k := range observados.Intersect(atuais).Iter() {
		if !igual(hoje[k], abertos[k]) {
			p.fechar = append(p.fechar, k)
			p.inserir[k] = hoje[k]
		}
	}
	return p
}
