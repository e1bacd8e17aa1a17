// api/router.go
package api

import (
	"github.com/gin-gonic/gin"
)

func NewRouter(d Deps) *gin.Engine {
	r := gin.Default()

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/stats", StatsHandler(d))
		apiGroup.POST("/admin/reload-synonyms", ReloadSynonymsHandler(d))

		apiGroup.POST("/menus", CreateMenuHandler(d))
		apiGroup.GET("/menus", ListMenusHandler(d))
		apiGroup.GET("/menus/:menu", GetMenuHandler(d))
		apiGroup.DELETE("/menus/:menu", DeleteMenuHandler(d))
		apiGroup.GET("/menus/:menu/fields", MenuFieldsHandler(d))

		// статические "служебные" маршруты — СНАЧАЛА
		apiGroup.POST("/menus/:menu/rows/_bulk", BulkInsertHandler(d))
		apiGroup.POST("/menus/:menu/upload", UploadHandler(d))
		apiGroup.POST("/menus/:menu/extract", ExtractHandler(d))

		// обычные CRUD по строкам
		apiGroup.POST("/menus/:menu/rows", InsertRowHandler(d))
		apiGroup.GET("/menus/:menu/rows", ListRowsHandler(d))
		apiGroup.GET("/menus/:menu/rows/:id", GetRowHandler(d))
		apiGroup.PUT("/menus/:menu/rows/:id", UpdateRowHandler(d))
		apiGroup.DELETE("/menus/:menu/rows/:id", DeleteRowHandler(d))
	}

	return r
}

func RunServer(addr string, d Deps) error {
	return NewRouter(d).Run(addr)
}
