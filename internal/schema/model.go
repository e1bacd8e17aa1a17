package schema

import (
	"strings"
	"time"
)

// Типы полей, которые умеет рисовать грид и понимает валидатор.
const (
	TypeString   = "string"
	TypeNumber   = "number"
	TypeEmail    = "email"
	TypePhone    = "phone"
	TypeDate     = "date"
	TypeSelect   = "select"
	TypeTextarea = "textarea"
)

// KnownType проверяет тип по фиксированному перечню.
func KnownType(t string) bool {
	switch t {
	case TypeString, TypeNumber, TypeEmail, TypePhone, TypeDate, TypeSelect, TypeTextarea:
		return true
	}
	return false
}

// Rules — опциональные ограничения поля (мягкие: нарушение даёт warning, не ошибку).
type Rules struct {
	Min     *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max     *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	Pattern string   `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Field описывает одно поле экрана
type Field struct {
	Name       string   `json:"name"`
	Type       string   `json:"type"`
	Label      string   `json:"label"`
	Required   bool     `json:"required,omitempty"`
	ReadOnly   bool     `json:"readOnly,omitempty"`
	Generated  bool     `json:"generated,omitempty"`
	Options    []string `json:"options,omitempty"` // только для select
	Validation *Rules   `json:"validation,omitempty"`
}

// Meta — метаданные меню (экрана). Формат совпадает с блоком "menu"
// в файле-снапшоте, менять поля нельзя без миграции артефактов.
type Meta struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	TableName   string `json:"tableName"`
	Description string `json:"description,omitempty"`
	CreatedAt   string `json:"createdAt"`
	UpdatedAt   string `json:"updatedAt"`
}

// Draft — то, что приходит снаружи (от оракула или из API) при создании меню.
type Draft struct {
	Name        string  `json:"name"`
	Description string  `json:"description,omitempty"`
	Fields      []Field `json:"fields"`
}

// Имена служебных полей. Присутствуют в каждой схеме, всегда readOnly+generated.
const (
	FieldID        = "id"
	FieldCreatedAt = "createdAt"
	FieldUpdatedAt = "updatedAt"
)

// IsGeneratedName — служебное ли имя (без оглядки на флаги схемы).
func IsGeneratedName(name string) bool {
	return name == FieldID || name == FieldCreatedAt || name == FieldUpdatedAt
}

// EnsureGenerated добавляет id/createdAt/updatedAt, если черновик их не принёс.
// Если поле с таким именем уже есть — принудительно ставим readOnly/generated,
// чтобы оракул не мог объявить id обычным полем.
func EnsureGenerated(fields []Field) []Field {
	want := []Field{
		{Name: FieldID, Type: TypeString, Label: "ID", ReadOnly: true, Generated: true},
		{Name: FieldCreatedAt, Type: TypeDate, Label: "Created At", ReadOnly: true, Generated: true},
		{Name: FieldUpdatedAt, Type: TypeDate, Label: "Updated At", ReadOnly: true, Generated: true},
	}
	out := make([]Field, 0, len(fields)+len(want))
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if IsGeneratedName(f.Name) {
			f.ReadOnly = true
			f.Generated = true
			f.Required = false
		}
		out = append(out, f)
		seen[f.Name] = true
	}
	for _, g := range want {
		if !seen[g.Name] {
			out = append(out, g)
		}
	}
	return out
}

// FieldByName — линейный поиск; схемы маленькие, индекс не нужен.
func FieldByName(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Now — текущее время в формате, в котором храним createdAt/updatedAt.
func Now() string {
	return time.Now().UTC().Format(time.RFC3339)
}

// NormalizeLabel — каноникализация подписи для сравнения при матчинге колонок.
func NormalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
