package gtfsmerge

import (
	"archive/zip"
	"encoding/csv"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"crawshaw.io/sqlite"
	"crawshaw.io/sqlite/sqlitex"
)

func sqlitexNoop(stmt *sqlite.Stmt) error { return nil }

// SaveGTFS writes the merged graph to a GTFS zip. Each table uses its
// canonical column order and rows come out in insertion order, so two
// runs on identical input produce identical archives.
func SaveGTFS(graph *OutputGraph, outputPath string) error {
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Writing merged GTFS to %s", outputPath))

	outputF, err := os.Create(outputPath)
	if err != nil {
		return err
	}
	outputZip := zip.NewWriter(outputF)
	defer func() {
		_ = outputZip.Close()
		_ = outputF.Close()
	}()

	for _, kind := range kindOrder {
		if graph.Records.Len(kind) == 0 {
			continue
		}
		if err := saveTableIn(graph, outputZip, kind); err != nil {
			return err
		}
	}

	if err := outputZip.Close(); err != nil {
		return err
	}
	if err := outputF.Close(); err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}

func saveTableIn(graph *OutputGraph, outputZip *zip.Writer, kind string) error {
	outputName := kind + ".txt"
	outputF, err := outputZip.Create(outputName)
	if err != nil {
		return err
	}
	outputCSV := csv.NewWriter(outputF)

	cols := mergeSchema[kind].Columns
	if err := outputCSV.Write(cols); err != nil {
		return err
	}

	rowCount := 1
	err = graph.Records.Each(kind, func(rec *Record) error {
		row := make([]string, len(cols))
		for i, col := range cols {
			row[i] = rec.Get(col)
		}
		rowCount++
		return outputCSV.Write(row)
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Wrote %d rows to %s", rowCount, outputName))

	outputCSV.Flush()
	return outputCSV.Error()
}

var exportPragmas = map[string]string{
	"synchronous": "OFF",
}

// ExportSQLite writes the merged graph into a sqlite database, one
// TEXT-columned table per kind, for downstream querying.
func ExportSQLite(graph *OutputGraph, outputPath string) error {
	if outputPath == "" {
		panic("Missing outputPath")
	}

	slog.Info(fmt.Sprintf("Exporting merged GTFS to %s", outputPath))

	err := os.Remove(outputPath)
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}

	db, err := sqlite.OpenConn(outputPath, 0)
	if err != nil {
		return err
	}
	defer func() {
		if db != nil {
			_ = db.Close()
		}
	}()

	for pragma, value := range exportPragmas {
		if err := sqlitex.Exec(db, "PRAGMA "+pragma+" = "+value, sqlitexNoop); err != nil {
			return err
		}
	}

	for _, kind := range kindOrder {
		if err := exportTableIn(graph, db, kind); err != nil {
			return err
		}
	}

	err = db.Close()
	db = nil
	if err != nil {
		return err
	}

	slog.Info(fmt.Sprintf("Wrote %s", outputPath))
	return nil
}

func exportTableIn(graph *OutputGraph, db *sqlite.Conn, kind string) error {
	cols := mergeSchema[kind].Columns

	var columnFragments []string
	for _, col := range cols {
		columnFragments = append(columnFragments, col+" TEXT")
	}
	query := fmt.Sprintf("CREATE TABLE %s (%s)", kind, strings.Join(columnFragments, ", "))
	if err := sqlitex.ExecTransient(db, query, sqlitexNoop); err != nil {
		return err
	}

	var argFragments []string
	for i := range cols {
		argFragments = append(argFragments, fmt.Sprintf("?%d", i+1))
	}
	insertStmt, err := db.Prepare(fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		kind, strings.Join(cols, ", "), strings.Join(argFragments, ", ")))
	if err != nil {
		return err
	}

	rowCount := 0
	err = graph.Records.Each(kind, func(rec *Record) error {
		if err := insertStmt.Reset(); err != nil {
			return err
		}
		if err := insertStmt.ClearBindings(); err != nil {
			return err
		}
		for i, col := range cols {
			param := i + 1
			if v := rec.Get(col); v == "" {
				insertStmt.BindNull(param)
			} else {
				insertStmt.BindText(param, v)
			}
		}
		for {
			rowReturned, err := insertStmt.Step()
			if err != nil {
				return err
			}
			if !rowReturned {
				break
			}
		}
		rowCount++
		return nil
	})
	if err != nil {
		return err
	}
	slog.Info(fmt.Sprintf("Wrote %d rows to table %s", rowCount, kind))
	return nil
}
