package persist

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"formika/internal/schema"
	"formika/internal/store"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seedStore(t *testing.T) (*store.Store, string) {
	t.Helper()
	s := store.New()
	view, _ := s.CreateMenu(schema.Draft{
		Name: "User Registration",
		Fields: []schema.Field{
			{Name: "name", Type: schema.TypeString, Label: "이름", Required: true},
			{Name: "age", Type: schema.TypeNumber, Label: "나이"},
		},
	})
	_, err := s.Insert(view.Meta.TableName, map[string]any{"name": "Kim", "age": 30})
	require.NoError(t, err)
	_, err = s.Insert(view.Meta.TableName, map[string]any{"name": "Lee"})
	require.NoError(t, err)
	return s, view.Meta.TableName
}

func TestSnapshotRoundTrip(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)

	m := New(s, dir, time.Minute)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	m.Flush()

	// файл появился, dirty-набор чист
	_, err := os.Stat(filepath.Join(dir, table+".json"))
	require.NoError(t, err)
	assert.Empty(t, s.DirtyTables())

	// загружаем в свежее хранилище
	s2 := store.New()
	m2 := New(s2, dir, time.Minute)
	require.NoError(t, m2.LoadAll())

	view, err := s2.Menu(table)
	require.NoError(t, err)
	assert.Equal(t, "User Registration", view.Meta.Name)
	assert.Equal(t, 2, view.Rows)

	orig, err := s.Query(table, nil)
	require.NoError(t, err)
	loaded, err := s2.Query(table, nil)
	require.NoError(t, err)

	// сравниваем как множества мапов: порядок через reload не гарантирован
	want := make(map[string]map[string]any)
	for _, r := range orig {
		want[r.ID] = r.Flatten()
	}
	require.Len(t, loaded, len(want))
	for _, r := range loaded {
		assert.Equal(t, want[r.ID], r.Flatten())
	}

	// схема пережила round-trip
	origView, _ := s.Menu(table)
	assert.Equal(t, origView.Fields, view.Fields)
}

func TestLoadAllSkipsCorrupt(t *testing.T) {
	dir := t.TempDir()
	s, _ := seedStore(t)
	m := New(s, dir, time.Minute)
	m.Flush()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.json"), []byte("{oops"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644))

	s2 := store.New()
	m2 := New(s2, dir, time.Minute)
	require.NoError(t, m2.LoadAll())
	assert.Len(t, s2.Menus(), 1)
}

func TestFlushOnlyDirty(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)
	m := New(s, dir, time.Minute)
	m.Flush()

	// ничего не менялось — повторный Flush файл не перезаписывает
	path := filepath.Join(dir, table+".json")
	require.NoError(t, os.Remove(path))
	m.Flush()
	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))

	// после правки меню снова dirty и файл возвращается
	_, err = s.Insert(table, map[string]any{"name": "Choi"})
	require.NoError(t, err)
	m.Flush()
	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestDeleteMenuRemovesArtifact(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)
	m := New(s, dir, time.Minute)
	m.Flush()

	path := filepath.Join(dir, table+".json")
	_, err := os.Stat(path)
	require.NoError(t, err)

	s.DeleteMenu(table)
	m.Flush()
	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
	assert.Empty(t, s.DirtyTables())
}

func TestArtifactLayout(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)
	m := New(s, dir, time.Minute)
	m.Flush()

	data, err := os.ReadFile(filepath.Join(dir, table+".json"))
	require.NoError(t, err)

	var doc map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &doc))
	// граничный контракт: именно эти три ключа
	assert.Contains(t, doc, "menu")
	assert.Contains(t, doc, "schema")
	assert.Contains(t, doc, "data")

	var meta schema.Meta
	require.NoError(t, json.Unmarshal(doc["menu"], &meta))
	assert.Equal(t, table, meta.TableName)
	assert.NotEmpty(t, meta.CreatedAt)
}

func TestStartStop(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)
	m := New(s, dir, 10*time.Millisecond)

	m.Start()
	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, table+".json"))
		return err == nil
	}, time.Second, 5*time.Millisecond)

	// Stop делает финальный проход: несохранённая правка доезжает
	_, err := s.Insert(table, map[string]any{"name": "Final"})
	require.NoError(t, err)
	m.Stop()

	s2 := store.New()
	require.NoError(t, New(s2, dir, time.Minute).LoadAll())
	recs, err := s2.Query(table, map[string]string{"name": "final"})
	require.NoError(t, err)
	assert.Len(t, recs, 1)
}

func TestStopWithoutStart(t *testing.T) {
	dir := t.TempDir()
	s, table := seedStore(t)
	m := New(s, dir, time.Minute)

	// Stop без Start не виснет и делает финальный проход
	m.Stop()
	_, err := os.Stat(filepath.Join(dir, table+".json"))
	assert.NoError(t, err)

	// повторный Stop — no-op
	m.Stop()
}

func TestStopTwiceAfterStart(t *testing.T) {
	dir := t.TempDir()
	s, _ := seedStore(t)
	m := New(s, dir, time.Minute)

	m.Start()
	m.Start() // повторный Start — no-op
	m.Stop()
	m.Stop()
	assert.Empty(t, s.DirtyTables())
}
