package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"powderlab/internal/textutil"
)

// CreateProgress inserts a fresh progress row. The (powder, lot) pair
// must not already be tracked.
func (t *Tx) CreateProgress(progress *InspectionProgress) error {
	result, err := t.exec(
		`INSERT INTO inspection_progress
         (powder_name, lot_number, inspection_type, inspector, start_time, completed_items, total_items, progress, category)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		textutil.NormalizeKey(progress.PowderName),
		textutil.NormalizeKey(progress.LotNumber),
		string(progress.InspectionType),
		progress.Inspector,
		formatTime(progress.StartTime),
		encodeStrings(progress.CompletedItems),
		encodeStrings(progress.TotalItems),
		progress.Progress,
		string(progress.Category),
	)
	if err != nil {
		return fmt.Errorf("insert inspection progress: %w", err)
	}
	progress.ID, _ = result.LastInsertId()
	return nil
}

// GetProgress loads progress for one (powder, lot), or ErrNotFound.
func (t *Tx) GetProgress(powderName, lotNumber string) (*InspectionProgress, error) {
	row := t.queryRow(
		`SELECT id, powder_name, lot_number, inspection_type, inspector, start_time,
                completed_items, total_items, progress, category
         FROM inspection_progress WHERE powder_name = ? AND lot_number = ?`,
		textutil.NormalizeKey(powderName), textutil.NormalizeKey(lotNumber),
	)
	progress, err := scanProgress(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inspection progress %s/%s: %w", powderName, lotNumber, ErrNotFound)
		}
		return nil, err
	}
	return progress, nil
}

// UpdateProgressItems persists the completed-items list and the
// rendered progress string for an existing row.
func (t *Tx) UpdateProgressItems(progress *InspectionProgress) error {
	result, err := t.exec(
		"UPDATE inspection_progress SET completed_items = ?, progress = ? WHERE id = ?",
		encodeStrings(progress.CompletedItems), progress.Progress, progress.ID,
	)
	if err != nil {
		return fmt.Errorf("update inspection progress: %w", err)
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return fmt.Errorf("inspection progress id %d: %w", progress.ID, ErrNotFound)
	}
	return nil
}

// DeleteProgress removes a progress row once an inspection retires.
// Deleting an absent row is not an error.
func (t *Tx) DeleteProgress(powderName, lotNumber string) error {
	_, err := t.exec(
		"DELETE FROM inspection_progress WHERE powder_name = ? AND lot_number = ?",
		textutil.NormalizeKey(powderName), textutil.NormalizeKey(lotNumber),
	)
	if err != nil {
		return fmt.Errorf("delete inspection progress: %w", err)
	}
	return nil
}

// ListIncompleteProgress returns every in-flight inspection, newest first.
func (t *Tx) ListIncompleteProgress() ([]*InspectionProgress, error) {
	rows, err := t.query(
		`SELECT id, powder_name, lot_number, inspection_type, inspector, start_time,
                completed_items, total_items, progress, category
         FROM inspection_progress ORDER BY start_time DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("query incomplete inspections: %w", err)
	}
	defer rows.Close()

	var list []*InspectionProgress
	for rows.Next() {
		progress, err := scanProgress(rows.Scan)
		if err != nil {
			return nil, err
		}
		list = append(list, progress)
	}
	return list, rows.Err()
}

func scanProgress(scan func(...any) error) (*InspectionProgress, error) {
	var progress InspectionProgress
	var inspectionType, startTime, completed, total string
	var category string
	err := scan(
		&progress.ID, &progress.PowderName, &progress.LotNumber, &inspectionType,
		&progress.Inspector, &startTime, &completed, &total, &progress.Progress, &category,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan inspection progress: %w", err)
	}
	progress.InspectionType = InspectionType(inspectionType)
	progress.CompletedItems = decodeStrings(completed)
	progress.TotalItems = decodeStrings(total)
	progress.Category = ParseCategory(category)
	if progress.StartTime, err = parseTimeString(startTime); err != nil {
		return nil, fmt.Errorf("inspection progress start time: %w", err)
	}
	return &progress, nil
}

// CreateResult inserts the base result row with identity fields only.
// Scalar and particle data arrive later through the update methods.
func (t *Tx) CreateResult(result *InspectionResult) error {
	res, err := t.exec(
		`INSERT INTO inspection_result
         (powder_name, lot_number, inspector, inspection_time, inspection_type, category)
         VALUES (?, ?, ?, ?, ?, ?)`,
		textutil.NormalizeKey(result.PowderName),
		textutil.NormalizeKey(result.LotNumber),
		result.Inspector,
		formatTime(result.InspectionTime),
		string(result.InspectionType),
		string(result.Category),
	)
	if err != nil {
		return fmt.Errorf("insert inspection result: %w", err)
	}
	result.ID, _ = res.LastInsertId()
	return nil
}

// UpdateScalar writes one analyte's raw values, average and verdict
// onto the result row identified by id.
func (t *Tx) UpdateScalar(resultID int64, analyte Analyte, measurement Measurement) error {
	info, ok := AnalyteInfoFor(analyte)
	if !ok {
		return fmt.Errorf("unknown analyte %q", analyte)
	}

	columns := scalarColumns(info)
	args := make([]any, 0, len(columns)+1)
	switch info.Kind {
	case KindWeightPair:
		for i := 0; i < 3; i++ {
			args = append(args,
				nullableFloat(measurement.RawPairs[i][0]),
				nullableFloat(measurement.RawPairs[i][1]),
				nullableFloat(measurement.Raw[i]),
			)
		}
	default:
		for i := 0; i < 3; i++ {
			args = append(args, nullableFloat(measurement.Raw[i]))
		}
	}
	args = append(args, nullableFloat(measurement.Average), nullableVerdict(measurement.Verdict), resultID)

	assignments := make([]string, len(columns))
	for i, column := range columns {
		assignments[i] = column + " = ?"
	}
	res, err := t.exec(
		"UPDATE inspection_result SET "+strings.Join(assignments, ", ")+" WHERE id = ?",
		args...,
	)
	if err != nil {
		return fmt.Errorf("update %s measurement: %w", analyte, err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("inspection result id %d: %w", resultID, ErrNotFound)
	}
	return nil
}

// ReplaceParticleResults rewrites the per-bucket rows for a result and
// records the composite verdict on the parent row.
func (t *Tx) ReplaceParticleResults(resultID int64, results []ParticleResult, verdict Verdict) error {
	if _, err := t.exec("DELETE FROM particle_size_result WHERE result_id = ?", resultID); err != nil {
		return fmt.Errorf("clear particle results: %w", err)
	}
	for _, bucket := range results {
		_, err := t.exec(
			`INSERT INTO particle_size_result (result_id, mesh_size, value_1, value_2, avg_value, result)
             VALUES (?, ?, ?, ?, ?, ?)`,
			resultID, bucket.MeshSize,
			nullableFloat(bucket.Value1), nullableFloat(bucket.Value2),
			nullableFloat(bucket.Average), string(bucket.Verdict),
		)
		if err != nil {
			return fmt.Errorf("insert particle result %s: %w", bucket.MeshSize, err)
		}
	}
	res, err := t.exec(
		"UPDATE inspection_result SET particle_size_result = ? WHERE id = ?",
		nullableVerdict(verdict), resultID,
	)
	if err != nil {
		return fmt.Errorf("update particle verdict: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("inspection result id %d: %w", resultID, ErrNotFound)
	}
	return nil
}

// FinalizeResult stamps the aggregate verdict and the finalization
// time. A result may only be finalized once.
func (t *Tx) FinalizeResult(resultID int64, finalResult Verdict, finalizedAt time.Time) error {
	res, err := t.exec(
		"UPDATE inspection_result SET final_result = ?, finalized_at = ? WHERE id = ? AND finalized_at IS NULL",
		string(finalResult), formatTime(finalizedAt), resultID,
	)
	if err != nil {
		return fmt.Errorf("finalize inspection result: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("inspection result id %d already finalized or missing: %w", resultID, ErrNotFound)
	}
	return nil
}

// GetResult loads the full result record for one (powder, lot),
// including particle buckets, or ErrNotFound.
func (t *Tx) GetResult(powderName, lotNumber string) (*InspectionResult, error) {
	return t.getResult(
		"WHERE powder_name = ? AND lot_number = ?",
		textutil.NormalizeKey(powderName), textutil.NormalizeKey(lotNumber),
	)
}

// GetResultByID loads the full result record by row id, or ErrNotFound.
func (t *Tx) GetResultByID(id int64) (*InspectionResult, error) {
	return t.getResult("WHERE id = ?", id)
}

func (t *Tx) getResult(where string, args ...any) (*InspectionResult, error) {
	row := t.queryRow(
		"SELECT "+strings.Join(resultColumns(), ", ")+" FROM inspection_result "+where,
		args...,
	)
	result, err := scanResult(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("inspection result: %w", ErrNotFound)
		}
		return nil, err
	}
	if err := t.loadParticleResults(result); err != nil {
		return nil, err
	}
	return result, nil
}

// ResultFilter narrows SearchResults. Zero fields match everything.
type ResultFilter struct {
	PowderName string
	LotNumber  string
	Since      *time.Time
	Until      *time.Time
	Category   Category
	Finalized  bool
}

// SearchResults returns matching results newest first, with particle
// buckets loaded.
func (t *Tx) SearchResults(filter ResultFilter) ([]*InspectionResult, error) {
	var conditions []string
	var args []any
	if filter.PowderName != "" {
		conditions = append(conditions, "powder_name = ?")
		args = append(args, textutil.NormalizeKey(filter.PowderName))
	}
	if filter.LotNumber != "" {
		conditions = append(conditions, "lot_number LIKE ?")
		args = append(args, "%"+textutil.NormalizeKey(filter.LotNumber)+"%")
	}
	if filter.Since != nil {
		conditions = append(conditions, "inspection_time >= ?")
		args = append(args, formatTime(*filter.Since))
	}
	if filter.Until != nil {
		conditions = append(conditions, "inspection_time < ?")
		args = append(args, formatTime(*filter.Until))
	}
	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Finalized {
		conditions = append(conditions, "finalized_at IS NOT NULL")
	}

	query := "SELECT " + strings.Join(resultColumns(), ", ") + " FROM inspection_result"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY inspection_time DESC"

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inspection results: %w", err)
	}
	defer rows.Close()

	var results []*InspectionResult
	for rows.Next() {
		result, err := scanResult(rows.Scan)
		if err != nil {
			return nil, err
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, result := range results {
		if err := t.loadParticleResults(result); err != nil {
			return nil, err
		}
	}
	return results, nil
}

// PowdersForLot lists the powder names that hold a finalized result
// for the given lot number. Lot numbers are only unique per powder, so
// more than one name can come back.
func (t *Tx) PowdersForLot(lotNumber string) ([]string, error) {
	rows, err := t.query(
		"SELECT powder_name FROM inspection_result WHERE lot_number = ? AND finalized_at IS NOT NULL ORDER BY powder_name",
		textutil.NormalizeKey(lotNumber),
	)
	if err != nil {
		return nil, fmt.Errorf("query powders for lot: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan powder for lot: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// DeleteResult removes a result record and its particle rows. Returns
// ErrNotFound when no row matched.
func (t *Tx) DeleteResult(powderName, lotNumber string) error {
	res, err := t.exec(
		"DELETE FROM inspection_result WHERE powder_name = ? AND lot_number = ?",
		textutil.NormalizeKey(powderName), textutil.NormalizeKey(lotNumber),
	)
	if err != nil {
		return fmt.Errorf("delete inspection result: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("inspection result %s/%s: %w", powderName, lotNumber, ErrNotFound)
	}
	return nil
}

func (t *Tx) loadParticleResults(result *InspectionResult) error {
	rows, err := t.query(
		"SELECT mesh_size, value_1, value_2, avg_value, result FROM particle_size_result WHERE result_id = ? ORDER BY id",
		result.ID,
	)
	if err != nil {
		return fmt.Errorf("query particle results: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var bucket ParticleResult
		var v1, v2, avg sql.NullFloat64
		var verdict string
		if err := rows.Scan(&bucket.MeshSize, &v1, &v2, &avg, &verdict); err != nil {
			return fmt.Errorf("scan particle result: %w", err)
		}
		bucket.Value1 = floatPtr(v1)
		bucket.Value2 = floatPtr(v2)
		bucket.Average = floatPtr(avg)
		bucket.Verdict = Verdict(verdict)
		result.ParticleResults = append(result.ParticleResults, bucket)
	}
	return rows.Err()
}

func resultColumns() []string {
	columns := []string{"id", "powder_name", "lot_number", "inspector", "inspection_time", "inspection_type", "category"}
	for _, info := range Analytes {
		columns = append(columns, scalarColumns(info)...)
	}
	return append(columns, "particle_size_result", "final_result", "finalized_at")
}

func scanResult(scan func(...any) error) (*InspectionResult, error) {
	result := &InspectionResult{Scalars: make(map[Analyte]Measurement, len(Analytes))}

	var inspectionTime, inspectionType, category string
	dests := []any{&result.ID, &result.PowderName, &result.LotNumber, &result.Inspector, &inspectionTime, &inspectionType, &category}

	type scalarSlot struct {
		info  AnalyteInfo
		raw   [3]sql.NullFloat64
		pairs [3][2]sql.NullFloat64
		avg   sql.NullFloat64
		res   sql.NullString
	}
	slots := make([]scalarSlot, len(Analytes))
	for i, info := range Analytes {
		slots[i].info = info
		switch info.Kind {
		case KindWeightPair:
			for j := 0; j < 3; j++ {
				dests = append(dests, &slots[i].pairs[j][0], &slots[i].pairs[j][1], &slots[i].raw[j])
			}
		default:
			for j := 0; j < 3; j++ {
				dests = append(dests, &slots[i].raw[j])
			}
		}
		dests = append(dests, &slots[i].avg, &slots[i].res)
	}

	var particleVerdict, finalResult, finalizedAt sql.NullString
	dests = append(dests, &particleVerdict, &finalResult, &finalizedAt)

	if err := scan(dests...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan inspection result: %w", err)
	}

	result.InspectionType = InspectionType(inspectionType)
	result.Category = ParseCategory(category)
	var err error
	if result.InspectionTime, err = parseTimeString(inspectionTime); err != nil {
		return nil, fmt.Errorf("inspection result time: %w", err)
	}

	for _, slot := range slots {
		measurement := Measurement{
			Average: floatPtr(slot.avg),
			Verdict: verdictOf(slot.res),
		}
		hasData := measurement.Average != nil || measurement.Verdict != ""
		for j := 0; j < 3; j++ {
			measurement.Raw[j] = floatPtr(slot.raw[j])
			measurement.RawPairs[j][0] = floatPtr(slot.pairs[j][0])
			measurement.RawPairs[j][1] = floatPtr(slot.pairs[j][1])
			if measurement.Raw[j] != nil {
				hasData = true
			}
		}
		if hasData {
			result.Scalars[slot.info.Analyte] = measurement
		}
	}

	result.ParticleVerdict = verdictOf(particleVerdict)
	result.FinalResult = verdictOf(finalResult)
	if finalizedAt.Valid && finalizedAt.String != "" {
		parsed, err := parseTimeString(finalizedAt.String)
		if err != nil {
			return nil, fmt.Errorf("inspection result finalized time: %w", err)
		}
		result.FinalizedAt = &parsed
	}
	return result, nil
}
