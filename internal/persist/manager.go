package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"formika/internal/logging"
	"formika/internal/schema"
	"formika/internal/store"

	"github.com/cockroachdb/errors"
)

// artifact — формат файла-снапшота, по одному на меню. Это граничный
// контракт: блок "menu" и ключи менять нельзя.
type artifact struct {
	Menu   schema.Meta      `json:"menu"`
	Schema []schema.Field   `json:"schema"`
	Data   []map[string]any `json:"data"`
}

// Manager периодически сбрасывает dirty-меню на диск и поднимает их при
// старте. Никакого WAL: при падении теряется максимум один интервал правок.
type Manager struct {
	store    *store.Store
	dir      string
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}

	startOnce sync.Once
	stopOnce  sync.Once
	started   bool
}

func New(st *store.Store, dir string, interval time.Duration) *Manager {
	if interval <= 0 {
		interval = 60 * time.Second
	}
	return &Manager{
		store:    st,
		dir:      dir,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (m *Manager) path(table string) string {
	return filepath.Join(m.dir, table+".json")
}

// LoadAll читает все артефакты из каталога и регистрирует меню в хранилище.
// Битый или нечитаемый файл — warning и дальше, старт не валим.
func (m *Manager) LoadAll() error {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return errors.Wrapf(err, "data dir %q", m.dir)
	}
	files, err := os.ReadDir(m.dir)
	if err != nil {
		return errors.Wrapf(err, "data dir %q", m.dir)
	}
	loaded := 0
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), ".json") {
			continue
		}
		path := filepath.Join(m.dir, f.Name())
		if err := m.loadOne(path); err != nil {
			logging.L.Warnw("снапшот пропущен", "file", path, "err", err)
			continue
		}
		loaded++
	}
	logging.L.Infow("снапшоты загружены", "count", loaded)
	return nil
}

func (m *Manager) loadOne(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var a artifact
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	if a.Menu.TableName == "" {
		// старый или чужой файл — имя меню возьмём из имени файла
		a.Menu.TableName = strings.TrimSuffix(filepath.Base(path), ".json")
		if a.Menu.ID == "" {
			a.Menu.ID = a.Menu.TableName
		}
	}

	rows := make([]*store.Record, 0, len(a.Data))
	for _, flat := range a.Data {
		rec, err := recordFromFlat(flat)
		if err != nil {
			logging.L.Warnw("строка снапшота пропущена", "file", path, "err", err)
			continue
		}
		rows = append(rows, rec)
	}
	m.store.Register(a.Menu, a.Schema, rows)
	return nil
}

func recordFromFlat(flat map[string]any) (*store.Record, error) {
	id, _ := flat[schema.FieldID].(string)
	if id == "" {
		return nil, errors.New("row without id")
	}
	createdAt, _ := flat[schema.FieldCreatedAt].(string)
	updatedAt, _ := flat[schema.FieldUpdatedAt].(string)
	data := make(store.Row, len(flat))
	for k, v := range flat {
		if schema.IsGeneratedName(k) {
			continue
		}
		val, err := store.FromAny(v)
		if err != nil {
			return nil, errors.Wrapf(err, "field %q", k)
		}
		data[k] = val
	}
	return &store.Record{ID: id, CreatedAt: createdAt, UpdatedAt: updatedAt, Data: data}, nil
}

// Start запускает фоновый цикл снапшотов. Остановка — Stop().
// Повторный Start — no-op.
func (m *Manager) Start() {
	m.startOnce.Do(func() {
		m.started = true
		go func() {
			defer close(m.done)
			ticker := time.NewTicker(m.interval)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					m.Flush()
				case <-m.stop:
					return
				}
			}
		}()
	})
}

// Stop гасит цикл (если он запускался) и делает финальный синхронный проход.
// Best-effort: ошибки записи логируются, процесс всё равно завершится.
// Повторный Stop — no-op; Stop без Start — просто финальный проход.
func (m *Manager) Stop() {
	m.stopOnce.Do(func() {
		if m.started {
			close(m.stop)
			<-m.done
		}
		m.Flush()
	})
}

// Flush сбрасывает все dirty-меню. Снимок dirty-набора берётся под локом,
// сами файлы пишутся уже без него; отметка снимается с каждого меню
// отдельно и только после успешной записи — неудачники останутся dirty
// до следующего тика.
func (m *Manager) Flush() {
	for _, table := range m.store.DirtyTables() {
		if !m.store.Has(table) {
			// меню удалено — сносим и артефакт
			if err := os.Remove(m.path(table)); err != nil && !os.IsNotExist(err) {
				logging.L.Errorw("артефакт не удалился", "menu", table, "err", err)
				continue
			}
			m.store.ClearDirty(table)
			continue
		}
		view, rows, ok := m.store.Export(table)
		if !ok {
			continue // удалили между проверками — возьмём на следующем тике
		}
		if err := m.writeOne(table, view, rows); err != nil {
			logging.L.Errorw("снапшот не записался", "menu", table, "err", err)
			continue
		}
		m.store.ClearDirty(table)
	}
}

// writeOne пишет артефакт атомарно: во временный файл рядом, потом rename.
func (m *Manager) writeOne(table string, view store.MenuView, rows []map[string]any) error {
	a := artifact{Menu: view.Meta, Schema: view.Fields, Data: rows}
	data, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return err
	}
	tmp := m.path(table) + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path(table))
}
