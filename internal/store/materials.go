package store

import (
	"context"
	"database/sql"
	"fmt"

	"archflow/internal/profile"
	"archflow/internal/services"
)

const materialColumns = `m.id, m.job_id, m.profile_name, m.type, m.label, m.state, m.note, m.created, m.modified, m.version,
	f.path, d.pid, pd.barcode, pd.field001, pd.signature, pd.catalog, pd.record_id, pd.metadata`

const materialFrom = ` FROM material m
	LEFT JOIN folder f ON f.material_id = m.id
	LEFT JOIN digital_object d ON d.material_id = m.id
	LEFT JOIN physical_document pd ON pd.material_id = m.id`

func scanMaterial(row scanner, extra ...any) (*Material, error) {
	var (
		m                  Material
		typ                string
		createdRaw, modRaw string
		path, pid          sql.NullString
		barcode, field001  sql.NullString
		signature, catalog sql.NullString
		recordID, metadata sql.NullString
	)
	dest := []any{
		&m.ID, &m.JobID, &m.ProfileName, &typ, &m.Label, &m.State, &m.Note, &createdRaw, &modRaw, &m.Version,
		&path, &pid, &barcode, &field001, &signature, &catalog, &recordID, &metadata,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	m.Type = profile.MaterialType(typ)
	m.Created = parseTime(createdRaw)
	m.Modified = parseTime(modRaw)
	m.Path = path.String
	m.PID = pid.String
	m.Barcode = barcode.String
	m.Field001 = field001.String
	m.Signature = signature.String
	m.Catalog = catalog.String
	m.RecordID = recordID.String
	m.Metadata = metadata.String
	return &m, nil
}

// InsertMaterial stores a material and its type-specific row.
func (t *Tx) InsertMaterial(ctx context.Context, m *Material) error {
	if !m.Type.Valid() {
		return services.Wrap(services.ErrValidation, "store", "insert material", fmt.Sprintf("unknown material type %q", m.Type), nil)
	}
	now := t.now()
	id, err := t.insert(ctx,
		`INSERT INTO material (job_id, profile_name, type, label, state, note, created, modified, version)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1)`,
		m.JobID, m.ProfileName, string(m.Type), m.Label, m.State, m.Note, formatTime(now), formatTime(now))
	if err != nil {
		return fmt.Errorf("insert material %s for job %d: %w", m.ProfileName, m.JobID, err)
	}
	m.ID = id
	m.Created = now
	m.Modified = now
	m.Version = 1

	switch m.Type {
	case profile.MaterialFolder:
		_, err = t.exec(ctx, "INSERT INTO folder (material_id, path) VALUES (?, ?)", id, m.Path)
	case profile.MaterialDigitalObject:
		_, err = t.exec(ctx, "INSERT INTO digital_object (material_id, pid) VALUES (?, ?)", id, m.PID)
	case profile.MaterialPhysicalDocument:
		_, err = t.exec(ctx,
			`INSERT INTO physical_document (material_id, barcode, field001, signature, catalog, record_id, metadata)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			id, m.Barcode, m.Field001, m.Signature, m.Catalog, m.RecordID, m.Metadata)
	}
	if err != nil {
		return fmt.Errorf("insert %s detail for material %d: %w", m.Type, id, err)
	}
	return nil
}

// GetMaterial loads a material by id.
func (t *Tx) GetMaterial(ctx context.Context, id int64) (*Material, error) {
	m, err := scanMaterial(t.queryRow(ctx, "SELECT "+materialColumns+materialFrom+" WHERE m.id = ?", id))
	if err != nil {
		return nil, wrapNoRows(err, "material", id)
	}
	return m, nil
}

// MaterialsForJob returns the job's materials ordered by id.
func (t *Tx) MaterialsForJob(ctx context.Context, jobID int64) ([]*Material, error) {
	rows, err := t.query(ctx, "SELECT "+materialColumns+materialFrom+" WHERE m.job_id = ? ORDER BY m.id", jobID)
	if err != nil {
		return nil, fmt.Errorf("query materials of job %d: %w", jobID, err)
	}
	defer rows.Close()
	var out []*Material
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	return out, nil
}

// UpdateMaterial writes the material and its type-specific row guarded by m.Version.
func (t *Tx) UpdateMaterial(ctx context.Context, m *Material) error {
	now := t.now()
	res, err := t.exec(ctx,
		`UPDATE material SET label = ?, state = ?, note = ?, modified = ?, version = version + 1
		WHERE id = ? AND version = ?`,
		m.Label, m.State, m.Note, formatTime(now), m.ID, m.Version)
	if err != nil {
		return fmt.Errorf("update material %d: %w", m.ID, err)
	}
	if err := t.checkVersioned(ctx, res, "material", m.ID, m.Version); err != nil {
		return err
	}
	switch m.Type {
	case profile.MaterialFolder:
		_, err = t.exec(ctx, "UPDATE folder SET path = ? WHERE material_id = ?", m.Path, m.ID)
	case profile.MaterialDigitalObject:
		_, err = t.exec(ctx, "UPDATE digital_object SET pid = ? WHERE material_id = ?", m.PID, m.ID)
	case profile.MaterialPhysicalDocument:
		_, err = t.exec(ctx,
			`UPDATE physical_document SET barcode = ?, field001 = ?, signature = ?, catalog = ?, record_id = ?, metadata = ?
			WHERE material_id = ?`,
			m.Barcode, m.Field001, m.Signature, m.Catalog, m.RecordID, m.Metadata, m.ID)
	}
	if err != nil {
		return fmt.Errorf("update %s detail for material %d: %w", m.Type, m.ID, err)
	}
	m.Version++
	m.Modified = now
	return nil
}

// LinkMaterial records that task uses material with the given way. Both must
// belong to the same job.
func (t *Tx) LinkMaterial(ctx context.Context, materialID, taskID int64, way profile.Way) error {
	var sameJob int
	if err := t.queryRow(ctx,
		"SELECT COUNT(1) FROM material m JOIN task t ON t.job_id = m.job_id WHERE m.id = ? AND t.id = ?",
		materialID, taskID).Scan(&sameJob); err != nil {
		return fmt.Errorf("check material %d and task %d: %w", materialID, taskID, err)
	}
	if sameJob == 0 {
		return services.Wrap(services.ErrValidation, "store", "link material",
			fmt.Sprintf("material %d and task %d do not belong to the same job", materialID, taskID), nil)
	}
	if _, err := t.exec(ctx,
		"INSERT INTO material_in_task (material_id, task_id, way) VALUES (?, ?, ?)",
		materialID, taskID, string(way)); err != nil {
		return fmt.Errorf("link material %d to task %d: %w", materialID, taskID, err)
	}
	return nil
}

// CountLinks returns how many material-in-task links the job has.
func (t *Tx) CountLinks(ctx context.Context, jobID int64) (int, error) {
	var n int
	err := t.queryRow(ctx,
		"SELECT COUNT(1) FROM material_in_task mit JOIN task t ON t.id = mit.task_id WHERE t.job_id = ?", jobID).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count links of job %d: %w", jobID, err)
	}
	return n, nil
}

// FindMaterials lists materials. With TaskID set only linked materials are
// returned, one row per link way.
func (t *Tx) FindMaterials(ctx context.Context, filter MaterialFilter) ([]MaterialView, error) {
	w := &where{}
	w.in("m.id", filter.IDs, len(filter.IDs))
	w.in("m.job_id", filter.JobIDs, len(filter.JobIDs))
	w.in("m.type", toStrings(filter.Types), len(filter.Types))
	w.in("m.profile_name", filter.ProfileNames, len(filter.ProfileNames))
	w.contains("m.label", filter.Label)
	if filter.Barcode != "" {
		w.add("pd.barcode = ?", filter.Barcode)
	}
	if w.err != nil {
		return nil, w.err
	}
	tieBreak := []string{"m.id"}
	columns := materialColumns + ", NULL, NULL"
	from := materialFrom
	args := w.args
	if filter.TaskID > 0 {
		columns = materialColumns + ", mit.task_id, mit.way"
		from += " JOIN material_in_task mit ON mit.material_id = m.id AND mit.task_id = ?"
		args = append([]any{filter.TaskID}, args...)
		tieBreak = append(tieBreak, "mit.way")
	}
	order, err := orderBy(filter.Sort, "id", materialSortKeys, tieBreak...)
	if err != nil {
		return nil, err
	}
	limit, offset := t.store.limits(filter.Page)

	query := "SELECT " + columns + from + w.String() + order + " LIMIT ? OFFSET ?"
	rows, err := t.query(ctx, query, append(args, limit, offset)...)
	if err != nil {
		return nil, fmt.Errorf("query materials: %w", err)
	}
	defer rows.Close()

	var views []MaterialView
	for rows.Next() {
		var (
			view   MaterialView
			taskID sql.NullInt64
			way    sql.NullString
		)
		m, err := scanMaterial(rows, &taskID, &way)
		if err != nil {
			return nil, fmt.Errorf("scan material: %w", err)
		}
		view.Material = *m
		view.TaskID = taskID.Int64
		view.Way = profile.Way(way.String)
		views = append(views, view)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate materials: %w", err)
	}
	return views, nil
}
