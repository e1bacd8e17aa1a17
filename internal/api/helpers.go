package api

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"formika/internal/store"

	"github.com/cockroachdb/errors"
	"github.com/gin-gonic/gin"
)

// abortWithErr переводит типовые ошибки хранилища в HTTP-статусы:
// отсутствующие идентификаторы — 404, остальное — 400.
func abortWithErr(c *gin.Context, err error) {
	status := http.StatusBadRequest
	if errors.IsAny(err, store.ErrNotFound, store.ErrRowNotFound) {
		status = http.StatusNotFound
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

type listParams struct {
	Limit   int
	Offset  int
	Filters map[string]string
}

// parseListParams: _limit/_offset — служебные, всё остальное — фильтры полей.
func parseListParams(q url.Values) listParams {
	lp := listParams{Limit: 50, Filters: make(map[string]string)}

	if lv := q.Get("_limit"); lv != "" {
		if n, err := strconv.Atoi(lv); err == nil && n >= 0 && n <= 1000 {
			lp.Limit = n
		}
	}
	if ov := q.Get("_offset"); ov != "" {
		if n, err := strconv.Atoi(ov); err == nil && n >= 0 {
			lp.Offset = n
		}
	}
	for key, vals := range q {
		if strings.HasPrefix(key, "_") || len(vals) == 0 {
			continue
		}
		if v := strings.TrimSpace(vals[0]); v != "" {
			lp.Filters[key] = v
		}
	}
	return lp
}

func paginate(recs []*store.Record, lp listParams) []*store.Record {
	start := lp.Offset
	if start > len(recs) {
		start = len(recs)
	}
	end := start + lp.Limit
	if end > len(recs) {
		end = len(recs)
	}
	return recs[start:end]
}

func flattenAll(recs []*store.Record) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, r := range recs {
		out = append(out, r.Flatten())
	}
	return out
}
