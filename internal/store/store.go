package store

import (
	"io"
	"math/rand"
	"sync"
	"time"

	"formika/internal/logging"
	"formika/internal/schema"

	"github.com/cockroachdb/errors"
	"github.com/oklog/ulid/v2"
)

// Типовые ошибки хранилища. Контентные проблемы ошибок не дают (см. validate.go),
// валимся только на отсутствующих идентификаторах.
var (
	ErrNotFound    = errors.New("menu not found")
	ErrRowNotFound = errors.New("row not found")
)

// Record — одна строка меню. Служебные поля живут на структуре,
// пользовательские — в Data.
type Record struct {
	ID        string `json:"id"`
	CreatedAt string `json:"createdAt"`
	UpdatedAt string `json:"updatedAt"`
	Data      Row    `json:"data"`
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Data = r.Data.Clone()
	return &cp
}

// Flatten — плоский вид для API и снапшота: служебные поля поверх Data.
// Пользовательское поле с совпадающим именем служебное не перетирает.
func (r *Record) Flatten() map[string]any {
	out := make(map[string]any, len(r.Data)+3)
	for k, v := range r.Data {
		out[k] = v.Any()
	}
	out[schema.FieldID] = r.ID
	out[schema.FieldCreatedAt] = r.CreatedAt
	out[schema.FieldUpdatedAt] = r.UpdatedAt
	return out
}

type entity struct {
	meta   schema.Meta
	fields []schema.Field
	rows   []*Record
	byID   map[string]*Record
}

// MenuView — то, что отдаём наружу вместо указателя на entity.
type MenuView struct {
	Meta   schema.Meta    `json:"menu"`
	Fields []schema.Field `json:"fields"`
	Rows   int            `json:"rows"`
}

// Store — реестр меню со строками. Создаётся один раз в main и передаётся
// по ссылке всем обработчикам; никакого глобального синглтона.
type Store struct {
	mu       sync.RWMutex
	entities map[string]*entity
	order    []string        // порядок создания для листинга
	dirty    map[string]bool // tableName -> есть несохранённые изменения
	entropy  io.Reader
}

func New() *Store {
	src := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Store{
		entities: make(map[string]*entity),
		dirty:    make(map[string]bool),
		entropy:  ulid.Monotonic(src, 0),
	}
}

func (s *Store) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *Store) view(e *entity) MenuView {
	fields := make([]schema.Field, len(e.fields))
	copy(fields, e.fields)
	return MenuView{Meta: e.meta, Fields: fields, Rows: len(e.rows)}
}

// CreateMenu принимает черновик (от оракула или из API), чинит его линтером,
// доливает служебные поля, выводит tableName из человеческой подписи
// и регистрирует пустое меню.
func (s *Store) CreateMenu(d schema.Draft) (MenuView, []schema.Issue) {
	fields, issues := schema.Lint(d.Fields)
	fields = schema.EnsureGenerated(fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	table := schema.DeriveTableName(d.Name, func(name string) bool {
		_, ok := s.entities[name]
		return ok
	})
	now := schema.Now()
	e := &entity{
		meta: schema.Meta{
			ID:          table,
			Name:        d.Name,
			TableName:   table,
			Description: d.Description,
			CreatedAt:   now,
			UpdatedAt:   now,
		},
		fields: fields,
		byID:   make(map[string]*Record),
	}
	s.entities[table] = e
	s.order = append(s.order, table)
	s.dirty[table] = true
	return s.view(e), issues
}

// Register восстанавливает меню из снапшота (используется при старте).
// Меню регистрируется чистым — его только что прочитали с диска.
func (s *Store) Register(meta schema.Meta, fields []schema.Field, rows []*Record) {
	fields = schema.EnsureGenerated(fields)

	s.mu.Lock()
	defer s.mu.Unlock()

	e := &entity{meta: meta, fields: fields, byID: make(map[string]*Record, len(rows))}
	for _, r := range rows {
		e.rows = append(e.rows, r)
		e.byID[r.ID] = r
	}
	s.entities[meta.TableName] = e
	s.order = append(s.order, meta.TableName)
}

func (s *Store) Menu(table string) (MenuView, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[table]
	if !ok {
		return MenuView{}, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	return s.view(e), nil
}

func (s *Store) Menus() []MenuView {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]MenuView, 0, len(s.entities))
	for _, table := range s.order {
		if e, ok := s.entities[table]; ok {
			out = append(out, s.view(e))
		}
	}
	return out
}

// DeleteMenu убирает схему и все строки. Идемпотентно. Меню остаётся в
// dirty-наборе как надгробие, чтобы persist снёс и файл на диске.
func (s *Store) DeleteMenu(table string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.entities[table]; !ok {
		return
	}
	delete(s.entities, table)
	for i, t := range s.order {
		if t == table {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	s.dirty[table] = true
}

// Insert нормализует сырую строку и дописывает её в меню.
// id из payload уважаем, если он свободен; иначе генерим свой.
func (s *Store) Insert(table string, raw map[string]any) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entities[table]
	var fields []schema.Field
	if ok {
		fields = make([]schema.Field, len(e.fields))
		copy(fields, e.fields)
	}
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}

	now := schema.Now()
	row, warns, patch, err := Normalize(fields, raw)
	if err != nil {
		return nil, err
	}
	logWarnings(table, warns)

	wantID, _ := raw[schema.FieldID].(string)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok = s.entities[table]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	s.applyPatchLocked(e, patch)

	id := wantID
	if id == "" || e.byID[id] != nil {
		id = s.newID()
	}
	rec := &Record{ID: id, CreatedAt: now, UpdatedAt: now, Data: row}
	e.rows = append(e.rows, rec)
	e.byID[id] = rec
	s.dirty[table] = true
	return rec.clone(), nil
}

func (s *Store) FindRow(table, id string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entities[table]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	rec := e.byID[id]
	if rec == nil {
		return nil, errors.Wrapf(ErrRowNotFound, "row %q", id)
	}
	return rec.clone(), nil
}

// Update сливает updates поверх текущей строки и прогоняет валидатор заново.
// id и createdAt восстанавливаются из оригинала, что бы клиент ни прислал;
// updatedAt штампуется текущим временем.
func (s *Store) Update(table, id string, updates map[string]any) (*Record, error) {
	s.mu.RLock()
	e, ok := s.entities[table]
	var (
		fields []schema.Field
		prev   *Record
	)
	if ok {
		fields = make([]schema.Field, len(e.fields))
		copy(fields, e.fields)
		if r := e.byID[id]; r != nil {
			prev = r.clone()
		}
	}
	s.mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	if prev == nil {
		return nil, errors.Wrapf(ErrRowNotFound, "row %q", id)
	}

	merged := make(map[string]any, len(prev.Data)+len(updates))
	for k, v := range prev.Data {
		merged[k] = v.Any()
	}
	for k, v := range updates {
		merged[k] = v
	}

	row, warns, patch, err := Normalize(fields, merged)
	if err != nil {
		return nil, err
	}
	logWarnings(table, warns)

	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok = s.entities[table]
	if !ok {
		return nil, errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	rec := e.byID[id]
	if rec == nil {
		return nil, errors.Wrapf(ErrRowNotFound, "row %q", id)
	}
	s.applyPatchLocked(e, patch)
	rec.Data = row
	rec.UpdatedAt = schema.Now()
	s.dirty[table] = true
	return rec.clone(), nil
}

func (s *Store) DeleteRow(table, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entities[table]
	if !ok {
		return errors.Wrapf(ErrNotFound, "menu %q", table)
	}
	if e.byID[id] == nil {
		return errors.Wrapf(ErrRowNotFound, "row %q", id)
	}
	delete(e.byID, id)
	for i, r := range e.rows {
		if r.ID == id {
			e.rows = append(e.rows[:i], e.rows[i+1:]...)
			break
		}
	}
	s.dirty[table] = true
	return nil
}

// BulkFailure — одна неудачная строка батча.
type BulkFailure struct {
	Input map[string]any `json:"input"`
	Error string         `json:"error"`
}

// BulkResult: частичный успех — норма, а не ошибка.
type BulkResult struct {
	Succeeded []*Record     `json:"succeeded"`
	Failed    []BulkFailure `json:"failed"`
}

// BulkInsert вставляет строки по одной, строго последовательно; падение
// одной строки батч не прерывает.
func (s *Store) BulkInsert(table string, raws []map[string]any) (BulkResult, error) {
	if _, err := s.Menu(table); err != nil {
		return BulkResult{}, err
	}
	var res BulkResult
	for _, raw := range raws {
		rec, err := s.Insert(table, raw)
		if err != nil {
			res.Failed = append(res.Failed, BulkFailure{Input: raw, Error: err.Error()})
			continue
		}
		res.Succeeded = append(res.Succeeded, rec)
	}
	return res, nil
}

type MenuStat struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	RowCount int    `json:"rowCount"`
}

type Stats struct {
	MenuCount     int        `json:"entityCount"`
	TotalRowCount int        `json:"totalRowCount"`
	PerMenu       []MenuStat `json:"perEntity"`
}

func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st := Stats{MenuCount: len(s.entities)}
	for _, table := range s.order {
		e, ok := s.entities[table]
		if !ok {
			continue
		}
		st.TotalRowCount += len(e.rows)
		st.PerMenu = append(st.PerMenu, MenuStat{ID: table, Name: e.meta.Name, RowCount: len(e.rows)})
	}
	return st
}

// applyPatchLocked доливает наблюдаемые значения в options select-полей.
// Вызывать только под write-lock.
func (s *Store) applyPatchLocked(e *entity, patch Patch) {
	if len(patch) == 0 {
		return
	}
	for i := range e.fields {
		add, ok := patch[e.fields[i].Name]
		if !ok {
			continue
		}
		for _, opt := range add {
			if !contains(e.fields[i].Options, opt) {
				e.fields[i].Options = append(e.fields[i].Options, opt)
			}
		}
	}
	e.meta.UpdatedAt = schema.Now()
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func logWarnings(table string, warns []Warning) {
	for _, w := range warns {
		logging.L.Warnw("валидация: мягкое замечание",
			"menu", table, "field", w.Field, "code", w.Code, "msg", w.Message)
	}
}
