package store

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"powderlab/internal/textutil"
)

// CreateRecipe inserts one ingredient line for a product.
func (t *Tx) CreateRecipe(recipe *Recipe) error {
	res, err := t.exec(
		`INSERT INTO recipe
         (product_name, product_code, powder_name, ratio, target_weight, tolerance_percent, is_main, is_active, created_at, created_by)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		textutil.NormalizeKey(recipe.ProductName),
		nullableString(recipe.ProductCode),
		textutil.NormalizeKey(recipe.PowderName),
		recipe.Ratio,
		nullableFloat(recipe.TargetWeight),
		recipe.TolerancePercent,
		boolInt(recipe.IsMain),
		boolInt(recipe.IsActive),
		formatTime(time.Now()),
		nullableString(recipe.CreatedBy),
	)
	if err != nil {
		return fmt.Errorf("insert recipe: %w", err)
	}
	recipe.ID, _ = res.LastInsertId()
	return nil
}

// ActiveRecipes lists the active ingredient lines for a product,
// main ingredients first.
func (t *Tx) ActiveRecipes(productName string) ([]*Recipe, error) {
	rows, err := t.query(
		`SELECT id, product_name, product_code, powder_name, ratio, target_weight, tolerance_percent, is_main, is_active, created_by
         FROM recipe WHERE product_name = ? AND is_active = 1
         ORDER BY is_main DESC, powder_name`,
		textutil.NormalizeKey(productName),
	)
	if err != nil {
		return nil, fmt.Errorf("query recipes: %w", err)
	}
	defer rows.Close()

	var recipes []*Recipe
	for rows.Next() {
		var recipe Recipe
		var productCode, createdBy sql.NullString
		var targetWeight sql.NullFloat64
		var isMain, isActive int
		err := rows.Scan(
			&recipe.ID, &recipe.ProductName, &productCode, &recipe.PowderName,
			&recipe.Ratio, &targetWeight, &recipe.TolerancePercent, &isMain, &isActive, &createdBy,
		)
		if err != nil {
			return nil, fmt.Errorf("scan recipe: %w", err)
		}
		recipe.ProductCode = productCode.String
		recipe.CreatedBy = createdBy.String
		recipe.TargetWeight = floatPtr(targetWeight)
		recipe.IsMain = isMain != 0
		recipe.IsActive = isActive != 0
		recipes = append(recipes, &recipe)
	}
	return recipes, rows.Err()
}

// NextBatchLotSequence counts how many blending works already carry a
// batch lot with the given prefix, for generating the next suffix.
func (t *Tx) NextBatchLotSequence(prefix string) (int, error) {
	var count int
	err := t.queryRow(
		"SELECT COUNT(*) FROM blending_work WHERE batch_lot LIKE ?",
		prefix+"%",
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count batch lots: %w", err)
	}
	return count + 1, nil
}

// CreateBlendingWork inserts a new in-progress batch.
func (t *Tx) CreateBlendingWork(work *BlendingWork) error {
	res, err := t.exec(
		`INSERT INTO blending_work
         (work_order, product_name, product_code, batch_lot, target_total_weight, actual_total_weight,
          operator, status, start_time, main_powder_weights)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		work.WorkOrder,
		textutil.NormalizeKey(work.ProductName),
		nullableString(work.ProductCode),
		textutil.NormalizeKey(work.BatchLot),
		work.TargetTotalWeight,
		work.ActualTotalWeight,
		nullableString(work.Operator),
		string(work.Status),
		formatTime(work.StartTime),
		encodeWeights(work.MainPowderWeights),
	)
	if err != nil {
		return fmt.Errorf("insert blending work: %w", err)
	}
	work.ID, _ = res.LastInsertId()
	return nil
}

const blendingWorkColumns = `id, work_order, product_name, product_code, batch_lot,
       target_total_weight, actual_total_weight, operator, status, start_time, end_time, main_powder_weights`

// GetBlendingWork loads a batch by row id, or ErrNotFound.
func (t *Tx) GetBlendingWork(id int64) (*BlendingWork, error) {
	return t.getBlendingWork("WHERE id = ?", id)
}

// GetBlendingWorkByBatchLot loads a batch by its lot identifier.
func (t *Tx) GetBlendingWorkByBatchLot(batchLot string) (*BlendingWork, error) {
	return t.getBlendingWork("WHERE batch_lot = ?", textutil.NormalizeKey(batchLot))
}

func (t *Tx) getBlendingWork(where string, args ...any) (*BlendingWork, error) {
	row := t.queryRow("SELECT "+blendingWorkColumns+" FROM blending_work "+where, args...)
	work, err := scanBlendingWork(row.Scan)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("blending work: %w", ErrNotFound)
		}
		return nil, err
	}
	return work, nil
}

// ListBlendingWorks returns batches in the given status, newest first.
// An empty status matches all batches.
func (t *Tx) ListBlendingWorks(status WorkStatus) ([]*BlendingWork, error) {
	query := "SELECT " + blendingWorkColumns + " FROM blending_work"
	var args []any
	if status != "" {
		query += " WHERE status = ?"
		args = append(args, string(status))
	}
	query += " ORDER BY start_time DESC"

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query blending works: %w", err)
	}
	defer rows.Close()

	var works []*BlendingWork
	for rows.Next() {
		work, err := scanBlendingWork(rows.Scan)
		if err != nil {
			return nil, err
		}
		works = append(works, work)
	}
	return works, rows.Err()
}

func scanBlendingWork(scan func(...any) error) (*BlendingWork, error) {
	var work BlendingWork
	var productCode, operator, endTime, weights sql.NullString
	var status, startTime string
	err := scan(
		&work.ID, &work.WorkOrder, &work.ProductName, &productCode, &work.BatchLot,
		&work.TargetTotalWeight, &work.ActualTotalWeight, &operator, &status, &startTime, &endTime, &weights,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan blending work: %w", err)
	}
	work.ProductCode = productCode.String
	work.Operator = operator.String
	work.Status = WorkStatus(status)
	work.MainPowderWeights = decodeWeights(weights)
	if work.StartTime, err = parseTimeString(startTime); err != nil {
		return nil, fmt.Errorf("blending work start time: %w", err)
	}
	if endTime.Valid && endTime.String != "" {
		parsed, err := parseTimeString(endTime.String)
		if err != nil {
			return nil, fmt.Errorf("blending work end time: %w", err)
		}
		work.EndTime = &parsed
	}
	return &work, nil
}

// SetActualTotalWeight records the recomputed sum of valid inputs.
func (t *Tx) SetActualTotalWeight(workID int64, total float64) error {
	res, err := t.exec(
		"UPDATE blending_work SET actual_total_weight = ? WHERE id = ?",
		total, workID,
	)
	if err != nil {
		return fmt.Errorf("update actual total weight: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("blending work id %d: %w", workID, ErrNotFound)
	}
	return nil
}

// CompleteBlendingWork transitions an in-progress batch to completed.
func (t *Tx) CompleteBlendingWork(workID int64, endTime time.Time) error {
	res, err := t.exec(
		"UPDATE blending_work SET status = ?, end_time = ? WHERE id = ? AND status = ?",
		string(WorkCompleted), formatTime(endTime), workID, string(WorkInProgress),
	)
	if err != nil {
		return fmt.Errorf("complete blending work: %w", err)
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		return fmt.Errorf("blending work id %d not in progress: %w", workID, ErrNotFound)
	}
	return nil
}

// CreateMaterialInput persists one validated consumption event along
// with a join row per consumed sub-lot for forward traceability.
func (t *Tx) CreateMaterialInput(input *MaterialInput) error {
	res, err := t.exec(
		`INSERT INTO material_input
         (blending_work_id, powder_name, material_lots, target_weight, actual_weight, weight_deviation, is_valid, input_time, input_by)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		input.BlendingWorkID,
		textutil.NormalizeKey(input.PowderName),
		encodeStrings(input.MaterialLots),
		input.TargetWeight,
		input.ActualWeight,
		input.WeightDeviation,
		boolInt(input.IsValid),
		formatTime(input.InputTime),
		nullableString(input.InputBy),
	)
	if err != nil {
		return fmt.Errorf("insert material input: %w", err)
	}
	input.ID, _ = res.LastInsertId()

	for _, lot := range input.MaterialLots {
		_, err := t.exec(
			"INSERT INTO material_input_lot (material_input_id, powder_name, lot_number) VALUES (?, ?, ?)",
			input.ID, textutil.NormalizeKey(input.PowderName), textutil.NormalizeKey(lot),
		)
		if err != nil {
			return fmt.Errorf("insert material input lot: %w", err)
		}
	}
	return nil
}

// ListMaterialInputs returns the consumption events of a batch in
// input order.
func (t *Tx) ListMaterialInputs(workID int64) ([]*MaterialInput, error) {
	rows, err := t.query(
		`SELECT id, blending_work_id, powder_name, material_lots, target_weight, actual_weight,
                weight_deviation, is_valid, input_time, input_by
         FROM material_input WHERE blending_work_id = ? ORDER BY id`,
		workID,
	)
	if err != nil {
		return nil, fmt.Errorf("query material inputs: %w", err)
	}
	defer rows.Close()

	var inputs []*MaterialInput
	for rows.Next() {
		input, err := scanMaterialInput(rows.Scan)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, rows.Err()
}

// SumValidInputWeights totals the actual weight of valid inputs for a batch.
func (t *Tx) SumValidInputWeights(workID int64) (float64, error) {
	var total sql.NullFloat64
	err := t.queryRow(
		"SELECT SUM(actual_weight) FROM material_input WHERE blending_work_id = ? AND is_valid = 1",
		workID,
	).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("sum input weights: %w", err)
	}
	return total.Float64, nil
}

// InputPowderNames lists the distinct powders already recorded for a batch.
func (t *Tx) InputPowderNames(workID int64) ([]string, error) {
	rows, err := t.query(
		"SELECT DISTINCT powder_name FROM material_input WHERE blending_work_id = ? AND is_valid = 1",
		workID,
	)
	if err != nil {
		return nil, fmt.Errorf("query input powders: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan input powder: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

func scanMaterialInput(scan func(...any) error) (*MaterialInput, error) {
	var input MaterialInput
	var lots, inputTime string
	var inputBy sql.NullString
	var isValid int
	err := scan(
		&input.ID, &input.BlendingWorkID, &input.PowderName, &lots,
		&input.TargetWeight, &input.ActualWeight, &input.WeightDeviation, &isValid, &inputTime, &inputBy,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("scan material input: %w", err)
	}
	input.MaterialLots = decodeStrings(lots)
	input.IsValid = isValid != 0
	input.InputBy = inputBy.String
	if input.InputTime, err = parseTimeString(inputTime); err != nil {
		return nil, fmt.Errorf("material input time: %w", err)
	}
	return &input, nil
}

// FindInputsByMaterialLot locates every consumption event that used
// the given raw-material lot, optionally narrowed to one powder.
// Matching goes through the per-sub-lot join table.
func (t *Tx) FindInputsByMaterialLot(powderName, lotNumber string) ([]*MaterialInput, error) {
	query := `SELECT mi.id, mi.blending_work_id, mi.powder_name, mi.material_lots, mi.target_weight,
                     mi.actual_weight, mi.weight_deviation, mi.is_valid, mi.input_time, mi.input_by
              FROM material_input mi
              JOIN material_input_lot mil ON mil.material_input_id = mi.id
              WHERE mil.lot_number = ?`
	args := []any{textutil.NormalizeKey(lotNumber)}
	if powderName != "" {
		query += " AND mil.powder_name = ?"
		args = append(args, textutil.NormalizeKey(powderName))
	}
	query += " ORDER BY mi.id"

	rows, err := t.query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("query inputs by lot: %w", err)
	}
	defer rows.Close()

	var inputs []*MaterialInput
	for rows.Next() {
		input, err := scanMaterialInput(rows.Scan)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, input)
	}
	return inputs, rows.Err()
}

func boolInt(value bool) int {
	if value {
		return 1
	}
	return 0
}
