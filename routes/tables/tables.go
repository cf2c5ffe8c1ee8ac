package tables

import (
	"ResumeAI/controllers"
	"ResumeAI/pkg/chain"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"
)

// Register registers the table browser routes (protected)
func Register(g *gin.RouterGroup, db *gorm.DB, chains *chain.Manager) {
	g.GET("/get-database-tables", controllers.GetDatabaseTables(db))
	g.GET("/get-table-data/:tableName", controllers.GetTableData(db))
	g.DELETE("/delete-row/:table/:rowId", controllers.DeleteRow(db, chains))
}
