package store

// Dirty-набор: какие меню менялись с последнего снапшота. Persist забирает
// копию, пишет файлы без локов и чистит по одному меню после успешной записи.

// DirtyTables возвращает копию dirty-набора.
func (s *Store) DirtyTables() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.dirty))
	for t := range s.dirty {
		out = append(out, t)
	}
	return out
}

// ClearDirty снимает отметку с одного меню (после успешной записи артефакта).
func (s *Store) ClearDirty(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.dirty, table)
}

// Has отвечает, существует ли меню (dirty-надгробия не считаются).
func (s *Store) Has(table string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.entities[table]
	return ok
}

// Export отдаёт копию меню для снапшота: метаданные, схему и плоские строки.
// Копия снимается под read-lock, писать файл можно уже без него.
func (s *Store) Export(table string) (MenuView, []map[string]any, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[table]
	if !ok {
		return MenuView{}, nil, false
	}
	rows := make([]map[string]any, 0, len(e.rows))
	for _, r := range e.rows {
		rows = append(rows, r.Flatten())
	}
	return s.view(e), rows, true
}
