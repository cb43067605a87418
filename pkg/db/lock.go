package db

import "gorm.io/gorm"

// ForUpdate returns the row-lock suffix for a SELECT on conn's dialect.
// SQLite has no row locks; its transactions already serialize writers.
func ForUpdate(conn *gorm.DB) string {
	if conn == nil || conn.Config == nil || conn.Dialector == nil || conn.Dialector.Name() == "sqlite" {
		return ""
	}
	return " FOR UPDATE"
}
