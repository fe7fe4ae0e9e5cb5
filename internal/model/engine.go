package model

import "strings"

// Engine families the client knows how to probe directly.
const (
	EnginePostgres = "postgres"
	EngineMySQL    = "mysql"
	EngineMongo    = "mongo"
	EngineSQLite   = "sqlite"
	EngineOracle   = "oracle"
)

// NormalizeEngine folds the free-text database type a user typed into a
// canonical engine name. Unknown types come back lowercased and trimmed.
func NormalizeEngine(dbType string) string {
	v := strings.ToLower(strings.TrimSpace(dbType))
	switch v {
	case "postgresql", "pg", "postgres":
		return EnginePostgres
	case "mysql", "mariadb":
		return EngineMySQL
	case "mongo", "mongodb":
		return EngineMongo
	case "sqlite", "sqlite3":
		return EngineSQLite
	case "oracle", "oracledb":
		return EngineOracle
	default:
		return v
	}
}

// IsDocumentEngine reports whether results from this engine are grouped by collection.
func IsDocumentEngine(dbType string) bool {
	return NormalizeEngine(dbType) == EngineMongo
}
