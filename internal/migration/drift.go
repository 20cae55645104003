package migration

import (
	"fmt"

	"gorm.io/gorm"

	"github.com/beesaferoot/tenantly/internal/model"
)

type DriftKind string

const (
	DriftMissingTable  DriftKind = "missing_table"
	DriftMissingColumn DriftKind = "missing_column"
	DriftExtraColumn   DriftKind = "extra_column"

	// DriftUnmanagedModel is a registered model no migration creates.
	DriftUnmanagedModel DriftKind = "unmanaged_model"
)

// Drift is one difference between a model and the live table backing it.
// Column is empty for DriftMissingTable.
type Drift struct {
	Table  string
	Column string
	Kind   DriftKind
}

func (d Drift) String() string {
	if d.Column == "" {
		return fmt.Sprintf("%s: %s", d.Kind, d.Table)
	}
	return fmt.Sprintf("%s: %s.%s", d.Kind, d.Table, d.Column)
}

// Check compares the models of every applied migration with the database
// and reports tables or columns that do not line up. Registered models that
// no migration owns are reported too.
func (m *Migrator) Check() ([]Drift, error) {
	applied, err := m.GetAppliedVersions()
	if err != nil {
		return nil, err
	}

	drifts := make([]Drift, 0)
	owned := make(map[string]bool)
	for _, migration := range m.migrations {
		for _, value := range migration.Models {
			stmt := &gorm.Statement{DB: m.db}
			if err := stmt.Parse(value); err != nil {
				return nil, fmt.Errorf("migration %s: failed to parse model %T: %w", migration.Version, value, err)
			}
			owned[stmt.Schema.Table] = true
			if !applied[migration.Version] {
				continue
			}
			d, err := compareTable(m.db, stmt)
			if err != nil {
				return nil, fmt.Errorf("migration %s: %w", migration.Version, err)
			}
			drifts = append(drifts, d...)
		}
	}

	tables, err := model.Tables()
	if err != nil {
		return nil, fmt.Errorf("failed to parse registered models: %w", err)
	}
	for _, t := range tables {
		if !owned[t.Name] {
			drifts = append(drifts, Drift{Table: t.Name, Kind: DriftUnmanagedModel})
		}
	}
	return drifts, nil
}

func compareTable(db *gorm.DB, stmt *gorm.Statement) ([]Drift, error) {
	table := stmt.Schema.Table

	migrator := db.Migrator()
	if !migrator.HasTable(table) {
		return []Drift{{Table: table, Kind: DriftMissingTable}}, nil
	}

	columnTypes, err := migrator.ColumnTypes(table)
	if err != nil {
		return nil, fmt.Errorf("failed to read columns of %s: %w", table, err)
	}
	live := make(map[string]bool, len(columnTypes))
	for _, ct := range columnTypes {
		live[ct.Name()] = true
	}

	var drifts []Drift
	want := make(map[string]bool, len(stmt.Schema.Fields))
	for _, field := range stmt.Schema.Fields {
		if field.DBName == "" || field.IgnoreMigration || want[field.DBName] {
			continue
		}
		want[field.DBName] = true
		if !live[field.DBName] {
			drifts = append(drifts, Drift{Table: table, Column: field.DBName, Kind: DriftMissingColumn})
		}
	}
	for _, ct := range columnTypes {
		if !want[ct.Name()] {
			drifts = append(drifts, Drift{Table: table, Column: ct.Name(), Kind: DriftExtraColumn})
		}
	}
	return drifts, nil
}
