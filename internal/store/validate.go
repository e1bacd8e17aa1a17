package store

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"formika/internal/schema"
)

// Warning — мягкое замечание валидатора. Никогда не становится ошибкой:
// логируем и храним строку как есть (политика толерантного приёма —
// частично заполненный ввод от AI/таблиц не отвергаем).
type Warning struct {
	Code    string `json:"code"`
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Коды замечаний (в духе кодов ошибок полей)
const (
	WarnRequired     = "required"
	WarnTypeMismatch = "type_mismatch"
	WarnEmailPattern = "email_pattern"
	WarnPhonePattern = "phone_pattern"
	WarnEnumAppended = "enum_appended"
	WarnRange        = "range"
	WarnPattern      = "pattern"
)

// Patch — какие значения надо долить в options select-полей.
// Валидатор схему сам не трогает: патч применяет хранилище под своим локом,
// так что побочный эффект видно и в тестах, и в коде явно.
type Patch map[string][]string

var (
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe = regexp.MustCompile(`^[0-9+\-() ]+$`)
)

func warn(code, field, msg string) Warning {
	return Warning{Code: code, Field: field, Message: msg}
}

// Normalize приводит сырую строку к безопасному для хранения виду.
// Запускается на каждом insert и update.
//
// Единственный жёсткий отказ — значение, которое вообще не скаляр
// (массив/объект в ячейке): такую строку некуда класть. Всё контентное —
// только warnings.
func Normalize(fields []schema.Field, raw map[string]any) (Row, []Warning, Patch, error) {
	row := make(Row, len(raw))
	var warns []Warning
	patch := make(Patch)

	// все пришедшие ключи — и схемные, и лишние (контейнер открытый);
	// служебные поля отрезаем, они живут на Record
	for k, v := range raw {
		if schema.IsGeneratedName(k) {
			continue
		}
		val, err := FromAny(v)
		if err != nil {
			return nil, nil, nil, fmt.Errorf("field %q: %v", k, err)
		}
		row[k] = val
	}

	for _, f := range fields {
		if f.Generated {
			continue
		}
		v, present := row[f.Name]

		// 1) required без значения → явный null, без ошибки
		if !present {
			if f.Required {
				row[f.Name] = Null()
				warns = append(warns, warn(WarnRequired, f.Name,
					"required field missing, stored as null"))
			}
			continue
		}

		// 2) пустая строка → null
		if v.IsString() && strings.TrimSpace(v.Str()) == "" {
			row[f.Name] = Null()
			continue
		}
		if v.IsNull() {
			continue
		}

		// 3) по типу поля
		switch f.Type {
		case schema.TypeNumber:
			num, ok := coerceNumber(v)
			if !ok {
				row[f.Name] = Null()
				warns = append(warns, warn(WarnTypeMismatch, f.Name,
					fmt.Sprintf("%q is not numeric, stored as null", v.Text())))
				continue
			}
			row[f.Name] = num
			v = num
		case schema.TypeEmail:
			if !emailRe.MatchString(v.Text()) {
				// значение оставляем — пользователь поправит в гриде
				warns = append(warns, warn(WarnEmailPattern, f.Name,
					fmt.Sprintf("%q does not look like an email", v.Text())))
			}
		case schema.TypePhone:
			if !phoneRe.MatchString(v.Text()) {
				warns = append(warns, warn(WarnPhonePattern, f.Name,
					fmt.Sprintf("%q does not look like a phone number", v.Text())))
			}
		case schema.TypeSelect:
			s := v.Text()
			if !contains(f.Options, s) && !contains(patch[f.Name], s) {
				// новое значение принимаем и запоминаем как вариант
				patch[f.Name] = append(patch[f.Name], s)
				warns = append(warns, warn(WarnEnumAppended, f.Name,
					fmt.Sprintf("option %q appended to select", s)))
			}
		}

		// 3.1) мягкие ограничения: нарушение — только warning, значение не трогаем
		if f.Validation != nil {
			checkRules(f, v, &warns)
		}
	}

	return row, warns, patch, nil
}

func coerceNumber(v Value) (Value, bool) {
	if v.IsNumber() {
		return v, true
	}
	if v.IsString() {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v.Str()), 64); err == nil {
			return Number(f), true
		}
	}
	return Null(), false
}

func checkRules(f schema.Field, v Value, warns *[]Warning) {
	r := f.Validation
	if v.IsNumber() {
		if r.Min != nil && v.Num() < *r.Min {
			*warns = append(*warns, warn(WarnRange, f.Name,
				fmt.Sprintf("value %s below min %v", v.Text(), *r.Min)))
		}
		if r.Max != nil && v.Num() > *r.Max {
			*warns = append(*warns, warn(WarnRange, f.Name,
				fmt.Sprintf("value %s above max %v", v.Text(), *r.Max)))
		}
	}
	if r.Pattern != "" && v.IsString() {
		re, err := regexp.Compile(r.Pattern)
		if err != nil {
			// кривой паттерн в схеме — не повод ронять запись
			*warns = append(*warns, warn(WarnPattern, f.Name, "invalid pattern in schema"))
			return
		}
		if !re.MatchString(v.Str()) {
			*warns = append(*warns, warn(WarnPattern, f.Name,
				fmt.Sprintf("%q does not match pattern", v.Str())))
		}
	}
}
