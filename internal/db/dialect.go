package db

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

const (
	dialectPostgres = "postgres"
	dialectSQLite   = "sqlite"
)

// likeEscaper makes LIKE wildcards in user input match literally; '_' shows up
// in plenty of email addresses.
var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func dialectOf(conn *gorm.DB) string {
	if conn == nil || conn.Dialector == nil {
		return ""
	}
	return conn.Dialector.Name()
}

// ContainsFoldClause builds a WHERE clause matching rows where any of columns
// contains term, ignoring case. Column names are trusted; term is bound.
func ContainsFoldClause(conn *gorm.DB, term string, columns ...string) (string, []any) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(term)) + "%"
	format := `%s ILIKE ? ESCAPE '\'`
	if dialectOf(conn) == dialectSQLite {
		format = `LOWER(%s) LIKE ? ESCAPE '\'`
	}
	conds := make([]string, 0, len(columns))
	args := make([]any, 0, len(columns))
	for _, column := range columns {
		conds = append(conds, fmt.Sprintf(format, column))
		args = append(args, pattern)
	}
	return "(" + strings.Join(conds, " OR ") + ")", args
}
