package reconcile

import (
	"os"
	"path/filepath"
	"strings"

	"formika/internal/logging"
	"formika/internal/schema"

	"gopkg.in/yaml.v3"
)

// Встроенный словарь: каноническое имя поля -> синонимы из реального ввода
// (шапки корейских/английских таблиц). Всё в lowercase, сравнение — вхождение
// в любую сторону.
var builtinSynonyms = map[string][]string{
	"name":       {"이름", "성명", "성함", "사용자명", "고객명", "담당자", "username", "full name", "fullname"},
	"email":      {"이메일", "메일", "메일주소", "전자우편", "e-mail", "mail"},
	"phone":      {"전화", "전화번호", "연락처", "휴대폰", "휴대전화", "핸드폰", "tel", "mobile", "cell"},
	"date":       {"날짜", "일자", "일시", "등록일", "생성일", "day"},
	"address":    {"주소", "거주지", "소재지", "addr"},
	"company":    {"회사", "회사명", "소속", "business", "organization", "org"},
	"department": {"부서", "부서명", "팀", "team", "dept"},
	"position":   {"직급", "직책", "직위", "role", "job title"},
	"age":        {"나이", "연령", "years"},
	"birth":      {"생년월일", "생일", "birthday", "birthdate", "dob"},
	"amount":     {"금액", "가격", "단가", "price", "cost", "total"},
	"quantity":   {"수량", "개수", "qty", "count"},
	"status":     {"상태", "진행상태", "state"},
	"note":       {"비고", "메모", "설명", "내용", "memo", "comment", "remarks", "description"},
	"title":      {"제목", "건명", "subject"},
	"gender":     {"성별", "sex"},
	"id_number":  {"사번", "학번", "회원번호", "번호", "no"},
}

// catalogEntry — одна запись каталога синонимов (формат YAML-файлов).
type catalogEntry struct {
	Field    string   `yaml:"field"`
	Synonyms []string `yaml:"synonyms"`
}

// LoadCatalog доливает синонимы из *.yaml/*.yml в каталоге поверх встроенных.
// Нечитаемый или кривой файл — warning и дальше; отсутствие каталога —
// не ошибка (встроенного словаря достаточно).
func (r *Reconciler) LoadCatalog(dir string) error {
	if dir == "" {
		return nil
	}
	files, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	for _, file := range files {
		name := file.Name()
		if file.IsDir() || (!strings.HasSuffix(name, ".yaml") && !strings.HasSuffix(name, ".yml")) {
			continue
		}
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			logging.L.Warnw("каталог синонимов: файл не читается, пропущен", "file", path, "err", err)
			continue
		}
		var entries []catalogEntry
		if err := yaml.Unmarshal(data, &entries); err != nil {
			logging.L.Warnw("каталог синонимов: битый YAML, пропущен", "file", path, "err", err)
			continue
		}
		r.mu.Lock()
		for _, e := range entries {
			key := schema.NormalizeLabel(e.Field)
			if key == "" {
				continue
			}
			for _, syn := range e.Synonyms {
				if s := schema.NormalizeLabel(syn); s != "" {
					r.synonyms[key] = append(r.synonyms[key], s)
				}
			}
		}
		r.mu.Unlock()
	}
	return nil
}
