package oracle

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"formika/internal/reconcile"
	"formika/internal/schema"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeMessages поднимает httptest-сервер, отвечающий как Messages API
// одним текстовым блоком.
func fakeMessages(t *testing.T, reply string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/messages", r.URL.Path)
		assert.Equal(t, "test-key", r.Header.Get("x-api-key"))
		assert.Equal(t, APIVersion, r.Header.Get("anthropic-version"))

		var req messagesRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.NotEmpty(t, req.Messages)

		resp := messagesResponse{Content: []contentBlock{{Type: "text", Text: reply}}}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
}

func testClient(url string) *Client {
	return NewClient(Config{APIKey: "test-key", BaseURL: url})
}

func TestMatchColumnsEnforcesFloor(t *testing.T) {
	reply := "```json\n" + `[
		{"sourceLabel": "성함", "targetFieldName": "name", "confidence": 0.92},
		{"sourceLabel": "쪽지", "targetFieldName": "note", "confidence": 0.4},
		{"sourceLabel": "직급", "targetFieldName": "unknown_field", "confidence": 0.9}
	]` + "\n```"
	srv := fakeMessages(t, reply)
	defer srv.Close()

	matches, err := testClient(srv.URL).MatchColumns(context.Background(),
		[]string{"성함", "쪽지", "직급"},
		[]reconcile.Target{{Name: "name", Label: "이름"}, {Name: "note", Label: "비고"}})
	require.NoError(t, err)

	// ниже порога и мимо целей — отфильтровано самим оракулом
	require.Len(t, matches, 1)
	assert.Equal(t, "name", matches[0].TargetField)
	assert.Equal(t, 0.92, matches[0].Confidence)
}

func TestGenerateSchema(t *testing.T) {
	reply := `{"name": "회원 가입", "description": "registration screen", "fields": [
		{"name": "name", "type": "string", "label": "이름", "required": true},
		{"name": "grade", "type": "select", "label": "등급", "options": ["silver", "gold"]}
	]}`
	srv := fakeMessages(t, reply)
	defer srv.Close()

	draft, err := testClient(srv.URL).GenerateSchema(context.Background(), "회원 가입 화면 만들어줘")
	require.NoError(t, err)
	assert.Equal(t, "회원 가입", draft.Name)
	require.Len(t, draft.Fields, 2)
	assert.Equal(t, []string{"silver", "gold"}, draft.Fields[1].Options)
}

func TestExtractData(t *testing.T) {
	reply := `{"data": {"name": "Kim", "age": 30}, "confidence": 0.8, "missing": ["email"]}`
	srv := fakeMessages(t, reply)
	defer srv.Close()

	ex, err := testClient(srv.URL).ExtractData(context.Background(),
		"김씨, 30살",
		[]schema.Field{{Name: "name", Type: schema.TypeString}, {Name: "age", Type: schema.TypeNumber}})
	require.NoError(t, err)
	assert.Equal(t, "Kim", ex.Data["name"])
	assert.Equal(t, 0.8, ex.Confidence)
	assert.Equal(t, []string{"email"}, ex.Missing)
}

func TestCompleteErrors(t *testing.T) {
	// без ключа — сразу отказ, в сеть не ходим
	c := NewClient(Config{})
	_, err := c.MatchColumns(context.Background(), []string{"x"}, nil)
	assert.Error(t, err)

	// не-200 — ошибка с телом ответа
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error": "rate limited"}`)
	}))
	defer srv.Close()
	_, err = testClient(srv.URL).MatchColumns(context.Background(), []string{"x"}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "429")
}

func TestExtractJSON(t *testing.T) {
	cases := []struct{ in, want string }{
		{"```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"```\n[1, 2]\n```", `[1, 2]`},
		{"Here you go: {\"a\": 1} hope it helps", `{"a": 1}`},
		{`{"a": 1}`, `{"a": 1}`},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, extractJSON(tc.in), "input %q", tc.in)
	}
}
