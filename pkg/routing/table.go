package routing

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Priority define o desempate quando mais de um padrão casa com a requisição.
type Priority string

const (
	// PriorityInsertion: o primeiro padrão registrado vence.
	PriorityInsertion Priority = "insertion"
	// PriorityLongestPrefix: vence o padrão com o maior prefixo literal;
	// empates seguem a ordem de inserção.
	PriorityLongestPrefix Priority = "longest_prefix"
)

type record struct {
	key     Key
	entry   Entry
	owner   string
	pattern *Pattern
	seq     uint64
}

// Match é o resultado de uma consulta à tabela.
type Match struct {
	Key    Key
	Entry  Entry
	Params Params
	Exact  bool
	Owner  string
}

// RouteInfo descreve uma rota registrada (listagem administrativa).
type RouteInfo struct {
	Key     string `json:"key"`
	Kind    string `json:"kind"`
	Owner   string `json:"owner,omitempty"`
	Pattern bool   `json:"pattern"`
}

// Table mapeia chaves de rota para entradas e mantém o índice de origem
// (arquivo -> chaves que ele contribuiu). O índice serve apenas para remoção.
//
// Um RWMutex protege a tabela: a reconciliação de um arquivo roda inteira
// sob o lock de escrita, então uma consulta enxerga o estado anterior ou o
// posterior, nunca um estado parcial.
type Table struct {
	mu       sync.RWMutex
	priority Priority
	records  map[string]*record
	patterns []*record
	sources  map[string][]string
	seq      uint64
}

// Option configura a Table.
type Option func(*Table)

// WithPriority define a política de desempate entre padrões.
func WithPriority(p Priority) Option {
	return func(t *Table) {
		if p != "" {
			t.priority = p
		}
	}
}

// NewTable cria uma tabela vazia.
func NewTable(opts ...Option) *Table {
	t := &Table{
		priority: PriorityInsertion,
		records:  make(map[string]*record),
		sources:  make(map[string][]string),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert adiciona ou sobrescreve uma chave. owner vazio indica uma rota
// registrada programaticamente, fora do índice de origem.
func (t *Table) Insert(rawKey string, entry Entry, owner string) error {
	rec, err := newRecord(rawKey, entry, owner)
	if err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	t.insertLocked(rec)
	t.sortPatternsLocked()
	return nil
}

// RemoveAllFor remove todas as chaves registradas para o arquivo e limpa a
// entrada do índice. Devolve as chaves removidas.
func (t *Table) RemoveAllFor(owner string) []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := t.removeAllForLocked(owner)
	t.sortPatternsLocked()
	return removed
}

// Reconcile substitui a contribuição de um arquivo: remove tudo o que ele
// registrou antes e insere o novo mapeamento, numa única seção crítica.
// Se alguma chave for inválida nada é alterado.
func (t *Table) Reconcile(owner string, mapping Mapping) (removed, added []string, err error) {
	recs := make([]*record, 0, len(mapping))
	for _, route := range mapping {
		rec, err := newRecord(route.Key, route.Entry, owner)
		if err != nil {
			return nil, nil, err
		}
		recs = append(recs, rec)
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	removed = t.removeAllForLocked(owner)
	for _, rec := range recs {
		t.insertLocked(rec)
		added = append(added, rec.key.String())
	}
	t.sortPatternsLocked()

	return removed, added, nil
}

// Lookup devolve a entrada resolvida: a chave exata, se existir; senão o
// primeiro padrão que casar segundo a prioridade configurada.
func (t *Table) Lookup(method, path string) (Match, bool) {
	all := t.LookupAll(method, path)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}

// LookupAll devolve a união da chave exata (primeiro, se existir) com todos os
// padrões que casam com "METODO caminho", em ordem de prioridade.
func (t *Table) LookupAll(method, path string) []Match {
	t.mu.RLock()
	defer t.mu.RUnlock()

	var matches []Match
	exact := Key{Method: normalizeMethod(method), Path: path}
	if rec, ok := t.records[exact.String()]; ok && rec.pattern == nil {
		matches = append(matches, Match{Key: rec.key, Entry: rec.entry, Exact: true, Owner: rec.owner})
	}

	for _, rec := range t.patterns {
		if params, ok := rec.pattern.Match(method, path); ok {
			matches = append(matches, Match{Key: rec.key, Entry: rec.entry, Params: params, Owner: rec.owner})
		}
	}
	return matches
}

// Keys devolve as chaves atualmente registradas para o arquivo.
func (t *Table) Keys(owner string) []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return append([]string(nil), t.sources[owner]...)
}

// Owners devolve os arquivos com contribuição ativa, em ordem alfabética.
func (t *Table) Owners() []string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	owners := make([]string, 0, len(t.sources))
	for owner := range t.sources {
		owners = append(owners, owner)
	}
	sort.Strings(owners)
	return owners
}

// Len devolve o número de rotas registradas.
func (t *Table) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.records)
}

// Snapshot lista as rotas em ordem de inserção.
func (t *Table) Snapshot() []RouteInfo {
	t.mu.RLock()
	recs := make([]*record, 0, len(t.records))
	for _, rec := range t.records {
		recs = append(recs, rec)
	}
	t.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })

	infos := make([]RouteInfo, len(recs))
	for i, rec := range recs {
		infos[i] = RouteInfo{
			Key:     rec.key.String(),
			Kind:    rec.entry.Kind(),
			Owner:   rec.owner,
			Pattern: rec.pattern != nil,
		}
	}
	return infos
}

func newRecord(rawKey string, entry Entry, owner string) (*record, error) {
	key, err := ParseKey(rawKey)
	if err != nil {
		return nil, err
	}
	rec := &record{key: key, entry: entry, owner: owner}
	if key.IsPattern() {
		if rec.pattern, err = Compile(key); err != nil {
			return nil, fmt.Errorf("falha ao compilar '%s': %w", rawKey, err)
		}
	}
	return rec, nil
}

// insertLocked preserva a posição de uma chave já existente; se ela pertencia
// a outro arquivo, a posse é transferida.
func (t *Table) insertLocked(rec *record) {
	id := rec.key.String()

	if prev, ok := t.records[id]; ok {
		rec.seq = prev.seq
		if prev.owner != rec.owner {
			t.unindexLocked(prev.owner, id)
			t.indexLocked(rec.owner, id)
		}
		if prev.pattern != nil {
			t.dropPatternLocked(prev)
		}
	} else {
		t.seq++
		rec.seq = t.seq
		t.indexLocked(rec.owner, id)
	}

	t.records[id] = rec
	if rec.pattern != nil {
		t.patterns = append(t.patterns, rec)
	}
}

func (t *Table) removeAllForLocked(owner string) []string {
	keys, ok := t.sources[owner]
	if !ok {
		return nil
	}
	for _, id := range keys {
		if rec, ok := t.records[id]; ok {
			delete(t.records, id)
			if rec.pattern != nil {
				t.dropPatternLocked(rec)
			}
		}
	}
	delete(t.sources, owner)
	return keys
}

func (t *Table) indexLocked(owner, id string) {
	if owner == "" {
		return
	}
	t.sources[owner] = append(t.sources[owner], id)
}

func (t *Table) unindexLocked(owner, id string) {
	keys, ok := t.sources[owner]
	if !ok {
		return
	}
	for i, k := range keys {
		if k == id {
			keys = append(keys[:i], keys[i+1:]...)
			break
		}
	}
	if len(keys) == 0 {
		delete(t.sources, owner)
		return
	}
	t.sources[owner] = keys
}

func (t *Table) dropPatternLocked(rec *record) {
	for i, p := range t.patterns {
		if p == rec {
			t.patterns = append(t.patterns[:i], t.patterns[i+1:]...)
			return
		}
	}
}

func (t *Table) sortPatternsLocked() {
	switch t.priority {
	case PriorityLongestPrefix:
		sort.SliceStable(t.patterns, func(i, j int) bool {
			a, b := t.patterns[i], t.patterns[j]
			if a.pattern.LiteralPrefix() != b.pattern.LiteralPrefix() {
				return a.pattern.LiteralPrefix() > b.pattern.LiteralPrefix()
			}
			return a.seq < b.seq
		})
	default:
		sort.SliceStable(t.patterns, func(i, j int) bool {
			return t.patterns[i].seq < t.patterns[j].seq
		})
	}
}

func normalizeMethod(method string) string {
	return strings.ToUpper(method)
}
