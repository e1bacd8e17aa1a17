package store

import (
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Query возвращает строки меню, прошедшие все фильтры (AND). Без фильтров —
// все строки в порядке вставки. Строка-к-строке — регистронезависимое
// вхождение подстроки, остальные типы — точное равенство.
func (s *Store) Query(table string, filters map[string]string) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[table]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	out := make([]*Record, 0, len(e.rows))
	for _, rec := range e.rows {
		if matchesFilters(rec, filters) {
			out = append(out, rec.clone())
		}
	}
	return out, nil
}

func matchesFilters(rec *Record, filters map[string]string) bool {
	for field, want := range filters {
		v, ok := rec.Data[field]
		if !ok {
			// служебные поля тоже фильтруемы
			switch field {
			case "id":
				v = String(rec.ID)
			case "createdAt":
				v = String(rec.CreatedAt)
			case "updatedAt":
				v = String(rec.UpdatedAt)
			default:
				return false
			}
		}
		if !matchesValue(v, want) {
			return false
		}
	}
	return true
}

func matchesValue(v Value, want string) bool {
	switch {
	case v.IsString():
		return strings.Contains(strings.ToLower(v.Str()), strings.ToLower(want))
	case v.IsNumber():
		f, err := strconv.ParseFloat(strings.TrimSpace(want), 64)
		return err == nil && f == v.Num()
	default: // null ни с чем не совпадает
		return false
	}
}
