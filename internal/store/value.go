package store

import (
	"encoding/json"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

type valueKind uint8

const (
	kindNull valueKind = iota
	kindString
	kindNumber
)

// Value — закрытый вариант для ячейки строки: строка, число или null.
// Ничего другого в хранилище не живёт; массивы/объекты режутся на входе.
type Value struct {
	kind valueKind
	str  string
	num  float64
}

func Null() Value            { return Value{} }
func String(s string) Value  { return Value{kind: kindString, str: s} }
func Number(f float64) Value { return Value{kind: kindNumber, num: f} }

func (v Value) IsNull() bool   { return v.kind == kindNull }
func (v Value) IsString() bool { return v.kind == kindString }
func (v Value) IsNumber() bool { return v.kind == kindNumber }

func (v Value) Str() string  { return v.str }
func (v Value) Num() float64 { return v.num }

// Any возвращает значение в виде, пригодном для JSON-ответа.
func (v Value) Any() any {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return v.num
	default:
		return nil
	}
}

// Text — строковое представление для фильтров и логов.
func (v Value) Text() string {
	switch v.kind {
	case kindString:
		return v.str
	case kindNumber:
		return strconv.FormatFloat(v.num, 'f', -1, 64)
	default:
		return ""
	}
}

func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case kindString:
		return v.str == o.str
	case kindNumber:
		return v.num == o.num
	default:
		return true
	}
}

// FromAny приводит произвольное JSON-значение к Value. Скаляры принимаем
// (bool — как строку, JSON всё равно не различит после round-trip),
// массивы/объекты — отказ: такие строки считаются структурно негодными.
func FromAny(v any) (Value, error) {
	switch t := v.(type) {
	case nil:
		return Null(), nil
	case string:
		return String(t), nil
	case float64:
		return Number(t), nil
	case float32:
		return Number(float64(t)), nil
	case int:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Null(), errors.Wrapf(err, "bad number %q", t.String())
		}
		return Number(f), nil
	case bool:
		if t {
			return String("true"), nil
		}
		return String("false"), nil
	case Value:
		return t, nil
	default:
		return Null(), errors.Newf("unsupported cell value of type %T", v)
	}
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Any())
}

func (v *Value) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" {
		*v = Null()
		return nil
	}
	var raw any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	val, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = val
	return nil
}

// Row — открытый контейнер ячеек: ключи описываются схемой, но лишние
// ключи не выбрасываются (толерантное хранение).
type Row map[string]Value

func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}
