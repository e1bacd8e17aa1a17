package reconcile

import (
	"context"
	"strings"
	"sync"

	"formika/internal/logging"
	"formika/internal/schema"
)

// MinConfidence — порог, ниже которого матчи не живут. Оракул обязан
// фильтровать сам, но Apply перепроверяет (защита от смены контракта).
const MinConfidence = 0.7

// Match — сопоставление внешней подписи колонки с полем схемы. Эфемерное,
// не персистится.
type Match struct {
	SourceLabel string  `json:"sourceLabel"`
	TargetField string  `json:"targetFieldName"`
	Confidence  float64 `json:"confidence"`
}

// Target — поле схемы глазами матчера.
type Target struct {
	Name  string `json:"name"`
	Label string `json:"label"`
}

// TargetsFromFields собирает цели матчинга из схемы; служебные поля
// колонками таблицы быть не могут.
func TargetsFromFields(fields []schema.Field) []Target {
	out := make([]Target, 0, len(fields))
	for _, f := range fields {
		if f.Generated {
			continue
		}
		out = append(out, Target{Name: f.Name, Label: f.Label})
	}
	return out
}

// Oracle — AI-доводка для подписей, которые не взялись правилами.
type Oracle interface {
	MatchColumns(ctx context.Context, labels []string, targets []Target) ([]Match, error)
}

// Reconciler — двухпроходный матчер: правила (точное совпадение, словарь
// синонимов, вхождение подстроки), затем оракул по остатку.
type Reconciler struct {
	mu       sync.RWMutex        // словарь можно перечитать на лету
	synonyms map[string][]string // каноническое имя поля -> синонимы (lowercase)
	oracle   Oracle              // nil — работаем только правилами
}

func New(oracle Oracle) *Reconciler {
	r := &Reconciler{synonyms: make(map[string][]string), oracle: oracle}
	for field, syns := range builtinSynonyms {
		r.synonyms[field] = append(r.synonyms[field], syns...)
	}
	return r
}

// Reconcile сопоставляет подписи колонок с полями схемы, минимизируя
// обращения к оракулу: к нему уходят только подписи, не взятые правилами.
// Падение оракула глотаем — вернём что есть от правил.
func (r *Reconciler) Reconcile(ctx context.Context, labels []string, targets []Target) []Match {
	matches := make([]Match, 0, len(labels))
	var leftover []string

	for _, label := range labels {
		if m, ok := r.ruleMatch(label, targets); ok {
			matches = append(matches, m)
			continue
		}
		leftover = append(leftover, label)
	}

	if len(leftover) == 0 || r.oracle == nil {
		return matches
	}

	aiMatches, err := r.oracle.MatchColumns(ctx, leftover, targets)
	if err != nil {
		logging.L.Warnw("матчинг колонок: оракул недоступен, оставляем только правила",
			"unmatched", len(leftover), "err", err)
		return matches
	}
	return append(matches, aiMatches...)
}

// ruleMatch пробует приоритеты по очереди: сперва точное совпадение по всем
// целям, потом словарь, потом подстроки. Первая цель, удовлетворившая
// текущему приоритету, побеждает; взаимного исключения целей нет — одна и
// та же цель может достаться нескольким подписям.
func (r *Reconciler) ruleMatch(label string, targets []Target) (Match, bool) {
	norm := schema.NormalizeLabel(label)
	if norm == "" {
		return Match{}, false
	}

	// (a) точное совпадение с именем или подписью поля
	for _, t := range targets {
		if norm == schema.NormalizeLabel(t.Name) || norm == schema.NormalizeLabel(t.Label) {
			return Match{SourceLabel: label, TargetField: t.Name, Confidence: 1.0}, true
		}
	}

	// (b) словарь синонимов канонического имени: вхождение в любую сторону
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, t := range targets {
		for _, syn := range r.synonyms[schema.NormalizeLabel(t.Name)] {
			if strings.Contains(norm, syn) || strings.Contains(syn, norm) {
				return Match{SourceLabel: label, TargetField: t.Name, Confidence: 0.9}, true
			}
		}
	}

	// (c) вхождение подстроки между подписью и именем/подписью поля
	for _, t := range targets {
		tn := schema.NormalizeLabel(t.Name)
		tl := schema.NormalizeLabel(t.Label)
		if containsEither(norm, tn) || (tl != "" && containsEither(norm, tl)) {
			return Match{SourceLabel: label, TargetField: t.Name, Confidence: 0.8}, true
		}
	}

	return Match{}, false
}

func containsEither(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.Contains(a, b) || strings.Contains(b, a)
}

// Apply переименовывает ключи сырой строки по матчам. Несколько подписей на
// одну цель допустимы — колонку забирает первый матч (порядок: правила в
// порядке подписей, потом оракул). Confidence перепроверяется ещё раз.
// Несматченные ключи отбрасываются.
func Apply(matches []Match, raw map[string]any) map[string]any {
	out := make(map[string]any, len(matches))
	for _, m := range matches {
		if m.Confidence < MinConfidence {
			continue
		}
		if _, taken := out[m.TargetField]; taken {
			continue // first match wins
		}
		if v, ok := raw[m.SourceLabel]; ok {
			out[m.TargetField] = v
		}
	}
	return out
}
