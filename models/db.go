package models

import (
	"database/sql"
	"fmt"
	"os"
	"strings"
	"time"

	_ "github.com/go-sql-driver/mysql"
	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// InitDB opens the MySQL pool, wraps it with gorm and applies the schema file
// when one is given.
func InitDB(dsn, schemaFile string, log *zap.Logger) (*gorm.DB, error) {
	sqlDB, err := sql.Open("mysql", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	db, err := gorm.Open(mysql.New(mysql.Config{
		Conn: sqlDB,
	}), &gorm.Config{
		Logger: newGormLogger(log, gormlogger.Warn),
	})
	if err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("init gorm: %w", err)
	}
	log.Info("database connected")

	if schemaFile != "" {
		if err := ApplySchema(sqlDB, schemaFile, log); err != nil {
			log.Warn("schema not applied", zap.Error(err))
		}
	}
	return db, nil
}

// ApplySchema executes every statement of the DDL file. Statements that fail
// (for example an index that already exists) are logged and skipped.
func ApplySchema(db *sql.DB, schemaFile string, log *zap.Logger) error {
	b, err := os.ReadFile(schemaFile)
	if err != nil {
		return fmt.Errorf("read schema file %s: %w", schemaFile, err)
	}
	applied := 0
	for _, stmt := range SplitStatements(string(b)) {
		if _, err := db.Exec(stmt); err != nil {
			log.Warn("schema statement failed", zap.Error(err), zap.String("sql", stmt))
			continue
		}
		applied++
	}
	log.Info("schema applied", zap.String("file", schemaFile), zap.Int("statements", applied))
	return nil
}

// SplitStatements splits a DDL script on ";" and drops empty statements and
// "--" comment lines.
func SplitStatements(script string) []string {
	var out []string
	for _, raw := range strings.Split(script, ";") {
		var lines []string
		for _, line := range strings.Split(raw, "\n") {
			if strings.HasPrefix(strings.TrimSpace(line), "--") {
				continue
			}
			lines = append(lines, line)
		}
		stmt := strings.TrimSpace(strings.Join(lines, "\n"))
		if stmt != "" {
			out = append(out, stmt)
		}
	}
	return out
}
