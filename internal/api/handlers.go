package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"formika/internal/oracle"
	"formika/internal/reconcile"
	"formika/internal/schema"
	"formika/internal/store"
	"formika/internal/tabular"

	"github.com/gin-gonic/gin"
)

// Oracle — AI-часть, которой пользуются маршруты (генерация схем и
// экстракция из текста). Матчинг колонок идёт через Reconciler.
type Oracle interface {
	GenerateSchema(ctx context.Context, prompt string) (schema.Draft, error)
	ExtractData(ctx context.Context, text string, fields []schema.Field) (oracle.Extraction, error)
}

// Deps — всё, что нужно обработчикам. Store создаётся один раз в main и
// передаётся сюда по ссылке.
type Deps struct {
	Store       *store.Store
	Reconciler  *reconcile.Reconciler
	Oracle      Oracle // nil — AI-маршруты отвечают 503
	SynonymsDir string
}

type createMenuReq struct {
	Prompt      string         `json:"prompt"`
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Fields      []schema.Field `json:"fields"`
}

// POST /api/menus — либо {prompt} (схему рисует оракул), либо готовый черновик
func CreateMenuHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createMenuReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}

		draft := schema.Draft{Name: req.Name, Description: req.Description, Fields: req.Fields}
		if p := strings.TrimSpace(req.Prompt); p != "" {
			if d.Oracle == nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI oracle not configured"})
				return
			}
			var err error
			draft, err = d.Oracle.GenerateSchema(c.Request.Context(), p)
			if err != nil {
				c.JSON(http.StatusBadGateway, gin.H{"error": "schema generation failed", "details": err.Error()})
				return
			}
		}
		if strings.TrimSpace(draft.Name) == "" || len(draft.Fields) == 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "name and fields (or prompt) required"})
			return
		}

		view, issues := d.Store.CreateMenu(draft)
		c.JSON(http.StatusCreated, gin.H{
			"menu":   view.Meta,
			"fields": view.Fields,
			"issues": issues,
		})
	}
}

// GET /api/menus
func ListMenusHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		views := d.Store.Menus()
		out := make([]gin.H, 0, len(views))
		for _, v := range views {
			out = append(out, gin.H{"menu": v.Meta, "rowCount": v.Rows})
		}
		c.JSON(http.StatusOK, out)
	}
}

// GET /api/menus/:menu
func GetMenuHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := d.Store.Menu(c.Param("menu"))
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"menu": view.Meta, "fields": view.Fields, "rowCount": view.Rows})
	}
}

// GET /api/menus/:menu/fields — схема для грида
func MenuFieldsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		view, err := d.Store.Menu(c.Param("menu"))
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, view.Fields)
	}
}

// DELETE /api/menus/:menu — идемпотентно
func DeleteMenuHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		d.Store.DeleteMenu(c.Param("menu"))
		c.Status(http.StatusNoContent)
	}
}

// POST /api/menus/:menu/rows
func InsertRowHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raw map[string]any
		if err := c.ShouldBindJSON(&raw); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := d.Store.Insert(c.Param("menu"), raw)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, rec.Flatten())
	}
}

// GET /api/menus/:menu/rows — фильтры полей + _limit/_offset
func ListRowsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		lp := parseListParams(c.Request.URL.Query())
		recs, err := d.Store.Query(c.Param("menu"), lp.Filters)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.Header("X-Total-Count", strconv.Itoa(len(recs)))
		c.JSON(http.StatusOK, flattenAll(paginate(recs, lp)))
	}
}

// GET /api/menus/:menu/rows/:id
func GetRowHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		rec, err := d.Store.FindRow(c.Param("menu"), c.Param("id"))
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// PUT /api/menus/:menu/rows/:id — merge поверх текущей строки;
// id/createdAt клиента игнорируются
func UpdateRowHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var updates map[string]any
		if err := c.ShouldBindJSON(&updates); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		rec, err := d.Store.Update(c.Param("menu"), c.Param("id"), updates)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, rec.Flatten())
	}
}

// DELETE /api/menus/:menu/rows/:id
func DeleteRowHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Store.DeleteRow(c.Param("menu"), c.Param("id")); err != nil {
			abortWithErr(c, err)
			return
		}
		c.Status(http.StatusNoContent)
	}
}

// POST /api/menus/:menu/rows/_bulk — частичный успех это нормальный ответ
func BulkInsertHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		var raws []map[string]any
		if err := c.ShouldBindJSON(&raws); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid JSON"})
			return
		}
		res, err := d.Store.BulkInsert(c.Param("menu"), raws)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"succeeded": flattenAll(res.Succeeded),
			"failed":    res.Failed,
		})
	}
}

// GET /api/stats
func StatsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, d.Store.Stats())
	}
}

// POST /api/admin/reload-synonyms — перечитать каталог синонимов на лету
func ReloadSynonymsHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := d.Reconciler.LoadCatalog(d.SynonymsDir); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "catalog load error", "details": err.Error()})
			return
		}
		c.JSON(http.StatusOK, gin.H{"ok": true, "dir": d.SynonymsDir})
	}
}

// POST /api/menus/:menu/upload — таблица → матчинг колонок → bulk insert
func UploadHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Param("menu")
		view, err := d.Store.Menu(table)
		if err != nil {
			abortWithErr(c, err)
			return
		}

		file, _, err := c.Request.FormFile("file")
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "multipart file not found (field name 'file')"})
			return
		}
		defer file.Close()

		labels, rows, err := tabular.Decode(file)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "file decode error", "details": err.Error()})
			return
		}

		targets := reconcile.TargetsFromFields(view.Fields)
		matches := d.Reconciler.Reconcile(c.Request.Context(), labels, targets)

		raws := make([]map[string]any, 0, len(rows))
		for _, row := range rows {
			raws = append(raws, reconcile.Apply(matches, row))
		}
		res, err := d.Store.BulkInsert(table, raws)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"matches":   matches,
			"succeeded": len(res.Succeeded),
			"failed":    res.Failed,
		})
	}
}

type extractReq struct {
	Text string `json:"text"`
}

// POST /api/menus/:menu/extract — свободный текст → строка
func ExtractHandler(d Deps) gin.HandlerFunc {
	return func(c *gin.Context) {
		table := c.Param("menu")
		view, err := d.Store.Menu(table)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		if d.Oracle == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"error": "AI oracle not configured"})
			return
		}

		var req extractReq
		if err := c.ShouldBindJSON(&req); err != nil || strings.TrimSpace(req.Text) == "" {
			c.JSON(http.StatusBadRequest, gin.H{"error": "text required"})
			return
		}

		ex, err := d.Oracle.ExtractData(c.Request.Context(), req.Text, view.Fields)
		if err != nil {
			c.JSON(http.StatusBadGateway, gin.H{"error": "extraction failed", "details": err.Error()})
			return
		}
		rec, err := d.Store.Insert(table, ex.Data)
		if err != nil {
			abortWithErr(c, err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{
			"row":        rec.Flatten(),
			"confidence": ex.Confidence,
			"missing":    ex.Missing,
		})
	}
}
