package api

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"formika/internal/oracle"
	"formika/internal/reconcile"
	"formika/internal/schema"
	"formika/internal/store"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeOracle struct {
	draft      schema.Draft
	extraction oracle.Extraction
}

func (f *fakeOracle) GenerateSchema(context.Context, string) (schema.Draft, error) {
	return f.draft, nil
}

func (f *fakeOracle) ExtractData(context.Context, string, []schema.Field) (oracle.Extraction, error) {
	return f.extraction, nil
}

func testRouter(t *testing.T, o Oracle) (*gin.Engine, *store.Store) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	st := store.New()
	d := Deps{Store: st, Reconciler: reconcile.New(nil), Oracle: o}
	return NewRouter(d), st
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func createUserMenu(t *testing.T, r *gin.Engine) string {
	t.Helper()
	w := doJSON(t, r, http.MethodPost, "/api/menus", gin.H{
		"name": "User Registration",
		"fields": []schema.Field{
			{Name: "name", Type: schema.TypeString, Label: "이름", Required: true},
			{Name: "email", Type: schema.TypeEmail, Label: "이메일", Required: true},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Menu schema.Meta `json:"menu"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Menu.TableName
}

func TestMenuAndRowCRUD(t *testing.T) {
	r, _ := testRouter(t, nil)
	table := createUserMenu(t, r)
	assert.Equal(t, "user_registration", table)

	// вставка: кривой email — warning, но строка принята
	w := doJSON(t, r, http.MethodPost, "/api/menus/"+table+"/rows",
		gin.H{"name": "Kim", "email": "bad-email"})
	require.Equal(t, http.StatusCreated, w.Code)
	var row map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, "bad-email", row["email"])
	id := row["id"].(string)
	require.NotEmpty(t, id)

	// фильтр по подстроке
	w = doJSON(t, r, http.MethodGet, "/api/menus/"+table+"/rows?name=ki", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var rows []map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rows))
	require.Len(t, rows, 1)

	// подделка id при обновлении игнорируется
	w = doJSON(t, r, http.MethodPut, "/api/menus/"+table+"/rows/"+id,
		gin.H{"id": "forged", "name": "Kim Jr"})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &row))
	assert.Equal(t, id, row["id"])
	assert.Equal(t, "Kim Jr", row["name"])

	// удаление строки и 404 после
	w = doJSON(t, r, http.MethodDelete, "/api/menus/"+table+"/rows/"+id, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/menus/"+table+"/rows/"+id, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	// удаление меню идемпотентно, дальше — 404
	w = doJSON(t, r, http.MethodDelete, "/api/menus/"+table, nil)
	require.Equal(t, http.StatusNoContent, w.Code)
	w = doJSON(t, r, http.MethodGet, "/api/menus/"+table+"/rows", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCreateMenuFromPrompt(t *testing.T) {
	fo := &fakeOracle{draft: schema.Draft{
		Name: "주문 관리",
		Fields: []schema.Field{
			{Name: "item", Type: schema.TypeString, Label: "품명"},
		},
	}}
	r, _ := testRouter(t, fo)

	w := doJSON(t, r, http.MethodPost, "/api/menus", gin.H{"prompt": "주문 관리 화면"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var resp struct {
		Menu   schema.Meta    `json:"menu"`
		Fields []schema.Field `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "주문_관리", resp.Menu.TableName)
	// служебные поля долиты
	_, ok := schema.FieldByName(resp.Fields, "id")
	assert.True(t, ok)
}

func TestCreateMenuFromPromptWithoutOracle(t *testing.T) {
	r, _ := testRouter(t, nil)
	w := doJSON(t, r, http.MethodPost, "/api/menus", gin.H{"prompt": "화면"})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestBulkInsertPartial(t *testing.T) {
	r, _ := testRouter(t, nil)
	table := createUserMenu(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/menus/"+table+"/rows/_bulk", []gin.H{
		{"name": "Kim"},
		{"name": []string{"bad"}},
		{"name": "Lee"},
	})
	require.Equal(t, http.StatusOK, w.Code)
	var resp struct {
		Succeeded []map[string]any    `json:"succeeded"`
		Failed    []store.BulkFailure `json:"failed"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Succeeded, 2)
	assert.Len(t, resp.Failed, 1)
}

func TestUploadReconcilesColumns(t *testing.T) {
	r, st := testRouter(t, nil)
	table := createUserMenu(t, r)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "users.csv")
	require.NoError(t, err)
	_, err = fw.Write([]byte("성명,메일주소\nKim,kim@example.com\nPark,park@example.com\n"))
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/menus/"+table+"/upload", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp struct {
		Matches   []reconcile.Match `json:"matches"`
		Succeeded int               `json:"succeeded"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Len(t, resp.Matches, 2)
	assert.Equal(t, 2, resp.Succeeded)

	recs, err := st.Query(table, map[string]string{"name": "park"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "park@example.com", recs[0].Data["email"].Str())
}

func TestExtractInsertsRow(t *testing.T) {
	fo := &fakeOracle{extraction: oracle.Extraction{
		Data:       map[string]any{"name": "Kim", "email": "kim@example.com"},
		Confidence: 0.9,
	}}
	r, st := testRouter(t, fo)
	table := createUserMenu(t, r)

	w := doJSON(t, r, http.MethodPost, "/api/menus/"+table+"/extract",
		gin.H{"text": "김씨, kim@example.com"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	recs, err := st.Query(table, nil)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "Kim", recs[0].Data["name"].Str())
}

func TestStatsEndpoint(t *testing.T) {
	r, _ := testRouter(t, nil)
	table := createUserMenu(t, r)
	w := doJSON(t, r, http.MethodPost, "/api/menus/"+table+"/rows", gin.H{"name": "Kim"})
	require.Equal(t, http.StatusCreated, w.Code)

	w = doJSON(t, r, http.MethodGet, "/api/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var st store.Stats
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &st))
	assert.Equal(t, 1, st.MenuCount)
	assert.Equal(t, 1, st.TotalRowCount)
}
