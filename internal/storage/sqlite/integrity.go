package sqlite

import "fmt"

// ForeignKeyViolation is one row reported by PRAGMA foreign_key_check.
type ForeignKeyViolation struct {
	Table   string
	RowID   int64
	Parent  string
	FKIndex int64
}

// IntegrityReport is the result of running the store's health probes.
type IntegrityReport struct {
	QuickCheckOK         bool
	QuickCheckMessage    string
	ForeignKeyViolations []ForeignKeyViolation
	SchemaStatus         SchemaStatus
}

// IntegrityCheck runs PRAGMA quick_check, PRAGMA foreign_key_check, and a
// schema status probe, and reports the combined result. A clean database
// has QuickCheckOK true and no foreign key violations.
func (s *Store) IntegrityCheck() (IntegrityReport, error) {
	var quickCheckMessage string
	if err := s.db.QueryRow("PRAGMA quick_check").Scan(&quickCheckMessage); err != nil {
		return IntegrityReport{}, fmt.Errorf("failed to run PRAGMA quick_check: %w", err)
	}

	rows, err := s.db.Query("PRAGMA foreign_key_check")
	if err != nil {
		return IntegrityReport{}, fmt.Errorf("failed to prepare PRAGMA foreign_key_check: %w", err)
	}
	defer rows.Close()

	var violations []ForeignKeyViolation
	for rows.Next() {
		var v ForeignKeyViolation
		if err := rows.Scan(&v.Table, &v.RowID, &v.Parent, &v.FKIndex); err != nil {
			return IntegrityReport{}, fmt.Errorf("failed to scan foreign_key_check row: %w", err)
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return IntegrityReport{}, err
	}

	status, err := s.SchemaStatus()
	if err != nil {
		return IntegrityReport{}, err
	}

	return IntegrityReport{
		QuickCheckOK:         quickCheckMessage == "ok",
		QuickCheckMessage:    quickCheckMessage,
		ForeignKeyViolations: violations,
		SchemaStatus:         status,
	}, nil
}
