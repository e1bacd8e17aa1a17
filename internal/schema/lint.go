package schema

import (
	"fmt"
	"strings"
)

type Issue struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Lint чинит черновик схемы от оракула и возвращает список того, что пришлось
// поправить. Черновики не отвергаем (оракул регулярно присылает мусор в
// мелочах) — правим по месту: пустые имена выкидываем, неизвестный тип
// становится string, select без options разжалуется в string, дубликаты
// имён схлопываются в первый.
func Lint(fields []Field) ([]Field, []Issue) {
	var issues []Issue
	out := make([]Field, 0, len(fields))
	seen := make(map[string]bool, len(fields))

	for _, f := range fields {
		f.Name = strings.TrimSpace(f.Name)
		if f.Name == "" {
			issues = append(issues, Issue{Code: "name_empty", Message: "field without a name dropped"})
			continue
		}
		if seen[f.Name] {
			issues = append(issues, Issue{
				Field: f.Name, Code: "name_duplicate",
				Message: fmt.Sprintf("duplicate field %q dropped", f.Name),
			})
			continue
		}
		seen[f.Name] = true

		if f.Label == "" {
			f.Label = f.Name
		}
		if !KnownType(f.Type) {
			issues = append(issues, Issue{
				Field: f.Name, Code: "type_unknown",
				Message: fmt.Sprintf("unknown type %q, using string", f.Type),
			})
			f.Type = TypeString
		}
		if f.Type == TypeSelect && len(f.Options) == 0 {
			// select обязан нести непустой options — без вариантов это просто строка
			issues = append(issues, Issue{
				Field: f.Name, Code: "select_no_options",
				Message: "select field without options, demoted to string",
			})
			f.Type = TypeString
		}
		if f.Type != TypeSelect {
			f.Options = nil
		}
		out = append(out, f)
	}
	return out, issues
}
