package schema

import (
	"fmt"
	"regexp"
	"strings"
)

// tableNameRe — что разрешено в имени таблицы: латиница/цифры/подчёркивание
// плюс хангыль (исходные подписи часто корейские, выкидывать их целиком нельзя).
var tableNameRe = regexp.MustCompile(`[^a-z0-9_가-힣]`)

var wsRe = regexp.MustCompile(`\s+`)

// DeriveTableName строит стабильный идентификатор меню из человеческой подписи:
// lowercase, пробелы → "_", всё лишнее — вон. Свободные имена не отвергаем —
// санитизация здесь, а не на входе. При коллизии добавляем _1, _2, ...
// taken отвечает, занято ли имя (замыкание над реестром меню).
func DeriveTableName(label string, taken func(string) bool) string {
	base := strings.ToLower(strings.TrimSpace(label))
	base = wsRe.ReplaceAllString(base, "_")
	base = tableNameRe.ReplaceAllString(base, "")
	base = strings.Trim(base, "_")
	if base == "" {
		base = "menu"
	}
	if taken == nil || !taken(base) {
		return base
	}
	for i := 1; ; i++ {
		cand := fmt.Sprintf("%s_%d", base, i)
		if !taken(cand) {
			return cand
		}
	}
}
