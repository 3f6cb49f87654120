package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"powderlab/internal/textutil"
)

// specColumns yields the min/max/type column triples in Analytes order.
func specColumns() []string {
	columns := make([]string, 0, len(Analytes)*3)
	for _, info := range Analytes {
		prefix := string(info.Analyte)
		columns = append(columns, prefix+"_min", prefix+"_max", prefix+"_type")
	}
	return columns
}

// GetPowderSpec loads the specification for a powder, or ErrNotFound.
func (t *Tx) GetPowderSpec(powderName string) (*PowderSpec, error) {
	powderName = textutil.NormalizeKey(powderName)
	columns := append([]string{"id", "powder_name"}, specColumns()...)
	columns = append(columns, "particle_size_type", "category")

	row := t.queryRow(
		"SELECT "+strings.Join(columns, ", ")+" FROM powder_spec WHERE powder_name = ?",
		powderName,
	)

	spec := &PowderSpec{Bounds: make(map[Analyte]Bound, len(Analytes))}
	dests := make([]any, 0, len(columns))
	dests = append(dests, &spec.ID, &spec.PowderName)

	mins := make([]sql.NullFloat64, len(Analytes))
	maxs := make([]sql.NullFloat64, len(Analytes))
	types := make([]sql.NullString, len(Analytes))
	for i := range Analytes {
		dests = append(dests, &mins[i], &maxs[i], &types[i])
	}
	var particleType sql.NullString
	var category string
	dests = append(dests, &particleType, &category)

	if err := row.Scan(dests...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("powder spec %q: %w", powderName, ErrNotFound)
		}
		return nil, fmt.Errorf("scan powder spec: %w", err)
	}

	for i, info := range Analytes {
		spec.Bounds[info.Analyte] = Bound{
			Min:  floatPtr(mins[i]),
			Max:  floatPtr(maxs[i]),
			Type: SpecType(types[i].String),
		}
	}
	spec.ParticleSizeType = SpecType(particleType.String)
	spec.Category = ParseCategory(category)
	return spec, nil
}

// UpsertPowderSpec inserts or replaces a powder specification. Used by
// seeders and the admin collaborator, never by the inspection core.
func (t *Tx) UpsertPowderSpec(spec *PowderSpec) error {
	name := textutil.NormalizeKey(spec.PowderName)
	if name == "" {
		return errors.New("powder spec requires a powder name")
	}

	columns := append([]string{"powder_name"}, specColumns()...)
	columns = append(columns, "particle_size_type", "category")
	args := make([]any, 0, len(columns))
	args = append(args, name)
	for _, info := range Analytes {
		bound := spec.Bounds[info.Analyte]
		specType := bound.Type
		if specType == "" {
			specType = SpecInactive
		}
		args = append(args, nullableFloat(bound.Min), nullableFloat(bound.Max), string(specType))
	}
	particleType := spec.ParticleSizeType
	if particleType == "" {
		particleType = SpecInactive
	}
	category := spec.Category
	if category == "" {
		category = CategoryIncoming
	}
	args = append(args, string(particleType), string(category))

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(columns)), ", ")
	_, err := t.exec(
		"INSERT OR REPLACE INTO powder_spec ("+strings.Join(columns, ", ")+") VALUES ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("upsert powder spec: %w", err)
	}
	return nil
}

// ListParticleBuckets returns every mesh bucket defined for a powder,
// ordered by mesh size for stable item lists.
func (t *Tx) ListParticleBuckets(powderName string) ([]ParticleSizeBucket, error) {
	powderName = textutil.NormalizeKey(powderName)
	rows, err := t.query(
		"SELECT id, powder_name, mesh_size, min_value, max_value FROM particle_size_spec WHERE powder_name = ? ORDER BY id",
		powderName,
	)
	if err != nil {
		return nil, fmt.Errorf("query particle buckets: %w", err)
	}
	defer rows.Close()

	var buckets []ParticleSizeBucket
	for rows.Next() {
		var bucket ParticleSizeBucket
		if err := rows.Scan(&bucket.ID, &bucket.PowderName, &bucket.MeshSize, &bucket.Min, &bucket.Max); err != nil {
			return nil, fmt.Errorf("scan particle bucket: %w", err)
		}
		buckets = append(buckets, bucket)
	}
	return buckets, rows.Err()
}

// PutParticleBucket inserts or replaces one mesh bucket specification.
func (t *Tx) PutParticleBucket(bucket ParticleSizeBucket) error {
	_, err := t.exec(
		`INSERT INTO particle_size_spec (powder_name, mesh_size, min_value, max_value)
         VALUES (?, ?, ?, ?)
         ON CONFLICT(powder_name, mesh_size) DO UPDATE SET min_value = excluded.min_value, max_value = excluded.max_value`,
		textutil.NormalizeKey(bucket.PowderName), strings.TrimSpace(bucket.MeshSize), bucket.Min, bucket.Max,
	)
	if err != nil {
		return fmt.Errorf("put particle bucket: %w", err)
	}
	return nil
}

// PowderNames lists powders in a category, ordered by name.
func (t *Tx) PowderNames(category Category) ([]string, error) {
	rows, err := t.query(
		"SELECT powder_name FROM powder_spec WHERE category = ? ORDER BY powder_name",
		string(category),
	)
	if err != nil {
		return nil, fmt.Errorf("query powder names: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan powder name: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
