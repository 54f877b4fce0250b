package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/your-org/rollcall/internal/attendance"
	"github.com/your-org/rollcall/internal/config"
	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/recognition"
)

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(cfg config.DatabaseConfig) (*PostgresStore, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("parse dsn: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxConns)

	pool, err := pgxpool.NewWithConfig(context.Background(), poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to postgres: %w", err)
	}

	if err := pool.Ping(context.Background()); err != nil {
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() {
	s.pool.Close()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// --- Groups ---

func (s *PostgresStore) CreateGroup(ctx context.Context, name, description string) (*models.Group, error) {
	g := &models.Group{
		ID:          uuid.New(),
		Name:        name,
		Description: description,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO groups (id, name, description) VALUES ($1, $2, $3) RETURNING created_at, updated_at`,
		g.ID, g.Name, g.Description,
	).Scan(&g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create group: %w", err)
	}
	return g, nil
}

func (s *PostgresStore) ListGroups(ctx context.Context) ([]models.Group, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	var groups []models.Group
	for rows.Next() {
		var g models.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, g)
	}
	return groups, nil
}

func (s *PostgresStore) GetGroup(ctx context.Context, id uuid.UUID) (*models.Group, error) {
	g := &models.Group{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, name, description, created_at, updated_at FROM groups WHERE id = $1`, id,
	).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt, &g.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

// --- Students ---

func (s *PostgresStore) CreateStudent(ctx context.Context, groupID uuid.UUID, name string, metadata json.RawMessage) (*models.Student, error) {
	if metadata == nil {
		metadata = json.RawMessage("{}")
	}
	st := &models.Student{
		ID:       uuid.New(),
		GroupID:  groupID,
		Name:     name,
		Metadata: metadata,
	}
	err := s.pool.QueryRow(ctx,
		`INSERT INTO students (id, group_id, name, metadata) VALUES ($1, $2, $3, $4) RETURNING created_at, updated_at`,
		st.ID, st.GroupID, st.Name, st.Metadata,
	).Scan(&st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("create student: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) GetStudent(ctx context.Context, id uuid.UUID) (*models.Student, error) {
	st := &models.Student{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, group_id, name, metadata, created_at, updated_at FROM students WHERE id = $1`, id,
	).Scan(&st.ID, &st.GroupID, &st.Name, &st.Metadata, &st.CreatedAt, &st.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get student: %w", err)
	}
	return st, nil
}

func (s *PostgresStore) ListStudents(ctx context.Context, groupID *uuid.UUID) ([]models.Student, error) {
	query := `SELECT id, group_id, name, metadata, created_at, updated_at FROM students ORDER BY name`
	args := []interface{}{}
	if groupID != nil {
		query = `SELECT id, group_id, name, metadata, created_at, updated_at FROM students WHERE group_id = $1 ORDER BY name`
		args = append(args, *groupID)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list students: %w", err)
	}
	defer rows.Close()

	var students []models.Student
	for rows.Next() {
		var st models.Student
		if err := rows.Scan(&st.ID, &st.GroupID, &st.Name, &st.Metadata, &st.CreatedAt, &st.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, st)
	}
	return students, nil
}

// DeleteStudent deregisters a student; descriptors cascade at the schema
// level, so the next gallery refresh drops them from matching.
func (s *PostgresStore) DeleteStudent(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM students WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("student not found")
	}
	return nil
}

func (s *PostgresStore) CountDescriptors(ctx context.Context, studentID uuid.UUID) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM face_descriptors WHERE student_id = $1`, studentID,
	).Scan(&count)
	return count, err
}

// --- Face Descriptors ---

func (s *PostgresStore) AddDescriptor(ctx context.Context, studentID uuid.UUID, embedding []float32, quality float32, sourceKey string) (*models.FaceDescriptor, error) {
	fd := &models.FaceDescriptor{
		ID:        uuid.New(),
		StudentID: studentID,
		Embedding: embedding,
		Quality:   quality,
		SourceKey: sourceKey,
	}
	vec := pgvector.NewVector(embedding)
	err := s.pool.QueryRow(ctx,
		`INSERT INTO face_descriptors (id, student_id, embedding, quality, source_key) VALUES ($1, $2, $3, $4, $5) RETURNING created_at`,
		fd.ID, fd.StudentID, vec, fd.Quality, fd.SourceKey,
	).Scan(&fd.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("add descriptor: %w", err)
	}
	return fd, nil
}

func (s *PostgresStore) DeleteDescriptor(ctx context.Context, studentID, descriptorID uuid.UUID) error {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM face_descriptors WHERE id = $1 AND student_id = $2`, descriptorID, studentID)
	if err != nil {
		return fmt.Errorf("delete descriptor: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("descriptor not found")
	}
	return nil
}

func (s *PostgresStore) ListDescriptors(ctx context.Context, studentID uuid.UUID) ([]models.FaceDescriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, student_id, quality, source_key, created_at FROM face_descriptors WHERE student_id = $1 ORDER BY created_at DESC`,
		studentID)
	if err != nil {
		return nil, fmt.Errorf("list descriptors: %w", err)
	}
	defer rows.Close()

	var descriptors []models.FaceDescriptor
	for rows.Next() {
		var fd models.FaceDescriptor
		if err := rows.Scan(&fd.ID, &fd.StudentID, &fd.Quality, &fd.SourceKey, &fd.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		descriptors = append(descriptors, fd)
	}
	return descriptors, nil
}

// ListAllDescriptors loads the full gallery in enrollment order, the form
// the in-memory similarity index consumes.
func (s *PostgresStore) ListAllDescriptors(ctx context.Context) ([]recognition.Descriptor, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT student_id, embedding FROM face_descriptors ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list all descriptors: %w", err)
	}
	defer rows.Close()

	var descriptors []recognition.Descriptor
	for rows.Next() {
		var d recognition.Descriptor
		var vec pgvector.Vector
		if err := rows.Scan(&d.StudentID, &vec); err != nil {
			return nil, fmt.Errorf("scan descriptor: %w", err)
		}
		d.Vector = vec.Slice()
		descriptors = append(descriptors, d)
	}
	return descriptors, nil
}

// SearchDescriptors finds the closest enrolled students for an embedding,
// scored by cosine similarity. Used by the verify endpoint; the live
// pipeline matches against the in-memory index instead.
func (s *PostgresStore) SearchDescriptors(ctx context.Context, embedding []float32, groupID *uuid.UUID, threshold float64, limit int) ([]SearchMatch, error) {
	if limit <= 0 {
		limit = 5
	}
	vec := pgvector.NewVector(embedding)

	var query string
	var args []interface{}

	if groupID != nil {
		query = `
			SELECT fd.student_id, st.name, 1 - (fd.embedding <=> $1) AS score
			FROM face_descriptors fd
			JOIN students st ON st.id = fd.student_id
			WHERE st.group_id = $2
			  AND 1 - (fd.embedding <=> $1) >= $3
			ORDER BY fd.embedding <=> $1
			LIMIT $4`
		args = []interface{}{vec, *groupID, threshold, limit}
	} else {
		query = `
			SELECT fd.student_id, st.name, 1 - (fd.embedding <=> $1) AS score
			FROM face_descriptors fd
			JOIN students st ON st.id = fd.student_id
			WHERE 1 - (fd.embedding <=> $1) >= $2
			ORDER BY fd.embedding <=> $1
			LIMIT $3`
		args = []interface{}{vec, threshold, limit}
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search descriptors: %w", err)
	}
	defer rows.Close()

	var matches []SearchMatch
	for rows.Next() {
		var m SearchMatch
		if err := rows.Scan(&m.StudentID, &m.Name, &m.Score); err != nil {
			return nil, fmt.Errorf("scan search match: %w", err)
		}
		matches = append(matches, m)
	}
	return matches, nil
}

type SearchMatch struct {
	StudentID uuid.UUID `json:"student_id"`
	Name      string    `json:"name"`
	Score     float32   `json:"score"`
}

// --- Sessions ---

func (s *PostgresStore) CreateSession(ctx context.Context, sess *models.Session) error {
	sess.ID = uuid.New()
	sess.Status = models.SessionStatusStopped
	if sess.Config == nil {
		sess.Config = json.RawMessage("{}")
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO sessions (id, url, source_type, mode, fps, status, group_id, config)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8) RETURNING created_at, updated_at`,
		sess.ID, sess.URL, sess.SourceType, sess.Mode, sess.FPS, sess.Status, sess.GroupID, sess.Config,
	).Scan(&sess.CreatedAt, &sess.UpdatedAt)
}

func (s *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*models.Session, error) {
	sess := &models.Session{}
	err := s.pool.QueryRow(ctx,
		`SELECT id, url, source_type, mode, fps, status, group_id, config, error_message, created_at, updated_at
		 FROM sessions WHERE id = $1`, id,
	).Scan(&sess.ID, &sess.URL, &sess.SourceType, &sess.Mode, &sess.FPS, &sess.Status,
		&sess.GroupID, &sess.Config, &sess.ErrorMessage, &sess.CreatedAt, &sess.UpdatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context) ([]models.Session, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, url, source_type, mode, fps, status, group_id, config, error_message, created_at, updated_at
		 FROM sessions ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []models.Session
	for rows.Next() {
		var sess models.Session
		if err := rows.Scan(&sess.ID, &sess.URL, &sess.SourceType, &sess.Mode, &sess.FPS, &sess.Status,
			&sess.GroupID, &sess.Config, &sess.ErrorMessage, &sess.CreatedAt, &sess.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		sessions = append(sessions, sess)
	}
	return sessions, nil
}

func (s *PostgresStore) UpdateSessionStatus(ctx context.Context, id uuid.UUID, status models.SessionStatus, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE sessions SET status = $1, error_message = $2 WHERE id = $3`,
		status, errMsg, id)
	return err
}

func (s *PostgresStore) DeleteSession(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session not found")
	}
	return nil
}

// --- Attendance Events ---

// InsertArrival persists one attendance event. The partial unique index on
// (student_id, day) makes recognized arrivals write-once per calendar day
// across all processes; inserted=false means the day's arrival already
// existed and nothing was written. Unrecognized events (NULL student_id)
// are exempt from the constraint and always insert.
func (s *PostgresStore) InsertArrival(ctx context.Context, ev *models.AttendanceEvent) (bool, error) {
	if ev.CreatedAt.IsZero() {
		ev.CreatedAt = time.Now()
	}
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_events (id, student_id, session_id, status, confidence, day, timestamp, snapshot_key, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (student_id, day) WHERE student_id IS NOT NULL DO NOTHING`,
		ev.ID, ev.StudentID, ev.SessionID, ev.Status, ev.Confidence,
		ev.Day, ev.Timestamp, ev.SnapshotKey, ev.CreatedAt)
	if err != nil {
		return false, fmt.Errorf("insert arrival: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// MarkAbsentees inserts an absent event for every student with no
// attendance record on the given day. Returns the number marked.
func (s *PostgresStore) MarkAbsentees(ctx context.Context, day time.Time) (int, error) {
	// Local midnight, not Truncate: the day column must bucket by the
	// school's calendar day, matching the decider's arrival writes.
	day = time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	tag, err := s.pool.Exec(ctx,
		`INSERT INTO attendance_events (id, student_id, session_id, status, confidence, day, timestamp, created_at)
		 SELECT gen_random_uuid(), st.id, '00000000-0000-0000-0000-000000000000', $1, 0, $2, now(), now()
		 FROM students st
		 WHERE NOT EXISTS (
		     SELECT 1 FROM attendance_events ae
		     WHERE ae.student_id = st.id AND ae.day = $2
		 )
		 ON CONFLICT (student_id, day) WHERE student_id IS NOT NULL DO NOTHING`,
		models.StatusAbsent, day)
	if err != nil {
		return 0, fmt.Errorf("mark absentees: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) QueryAttendance(ctx context.Context, day *time.Time, sessionID, studentID *uuid.UUID, status *models.AttendanceStatus, limit, offset int) ([]models.AttendanceEvent, int, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}

	baseWhere := "WHERE 1=1"
	args := []interface{}{}
	argIdx := 1

	if day != nil {
		baseWhere += fmt.Sprintf(" AND day = $%d", argIdx)
		args = append(args, day.Truncate(24*time.Hour))
		argIdx++
	}
	if sessionID != nil {
		baseWhere += fmt.Sprintf(" AND session_id = $%d", argIdx)
		args = append(args, *sessionID)
		argIdx++
	}
	if studentID != nil {
		baseWhere += fmt.Sprintf(" AND student_id = $%d", argIdx)
		args = append(args, *studentID)
		argIdx++
	}
	if status != nil {
		baseWhere += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, *status)
		argIdx++
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM attendance_events " + baseWhere
	if err := s.pool.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count attendance: %w", err)
	}

	query := fmt.Sprintf(
		`SELECT id, student_id, session_id, status, confidence, day, timestamp, snapshot_key, created_at
		 FROM attendance_events %s ORDER BY timestamp DESC LIMIT $%d OFFSET $%d`,
		baseWhere, argIdx, argIdx+1)
	args = append(args, limit, offset)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("query attendance: %w", err)
	}
	defer rows.Close()

	var events []models.AttendanceEvent
	for rows.Next() {
		var ev models.AttendanceEvent
		if err := rows.Scan(&ev.ID, &ev.StudentID, &ev.SessionID, &ev.Status, &ev.Confidence,
			&ev.Day, &ev.Timestamp, &ev.SnapshotKey, &ev.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan attendance event: %w", err)
		}
		events = append(events, ev)
	}
	return events, total, nil
}

// GetAttendanceEvent returns a single event by ID, or nil when unknown.
func (s *PostgresStore) GetAttendanceEvent(ctx context.Context, id uuid.UUID) (*models.AttendanceEvent, error) {
	var ev models.AttendanceEvent
	err := s.pool.QueryRow(ctx,
		`SELECT id, student_id, session_id, status, confidence, day, timestamp, snapshot_key, created_at
		 FROM attendance_events WHERE id = $1`, id).
		Scan(&ev.ID, &ev.StudentID, &ev.SessionID, &ev.Status, &ev.Confidence,
			&ev.Day, &ev.Timestamp, &ev.SnapshotKey, &ev.CreatedAt)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get attendance event: %w", err)
	}
	return &ev, nil
}

// DailySummary counts the day's events per status.
func (s *PostgresStore) DailySummary(ctx context.Context, day time.Time) (map[models.AttendanceStatus]int, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT status, COUNT(*) FROM attendance_events WHERE day = $1 GROUP BY status`,
		day.Truncate(24*time.Hour))
	if err != nil {
		return nil, fmt.Errorf("daily summary: %w", err)
	}
	defer rows.Close()

	summary := make(map[models.AttendanceStatus]int)
	for rows.Next() {
		var status models.AttendanceStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("scan summary: %w", err)
		}
		summary[status] = count
	}
	return summary, nil
}

// --- Alert Rules ---

func (s *PostgresStore) CreateRule(ctx context.Context, rule *models.AlertRule) error {
	rule.ID = uuid.New()
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	return s.pool.QueryRow(ctx,
		`INSERT INTO alert_rules (id, name, enabled, priority, conditions, actions)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING created_at, updated_at`,
		rule.ID, rule.Name, rule.Enabled, rule.Priority, conditions, actions,
	).Scan(&rule.CreatedAt, &rule.UpdatedAt)
}

func (s *PostgresStore) ListRules(ctx context.Context) ([]models.AlertRule, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, name, enabled, priority, conditions, actions, created_at, updated_at
		 FROM alert_rules ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list rules: %w", err)
	}
	defer rows.Close()

	var rules []models.AlertRule
	for rows.Next() {
		var rule models.AlertRule
		var conditions, actions []byte
		if err := rows.Scan(&rule.ID, &rule.Name, &rule.Enabled, &rule.Priority,
			&conditions, &actions, &rule.CreatedAt, &rule.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan rule: %w", err)
		}
		if err := json.Unmarshal(conditions, &rule.Conditions); err != nil {
			return nil, fmt.Errorf("unmarshal conditions: %w", err)
		}
		if err := json.Unmarshal(actions, &rule.Actions); err != nil {
			return nil, fmt.Errorf("unmarshal actions: %w", err)
		}
		rules = append(rules, rule)
	}
	return rules, nil
}

func (s *PostgresStore) UpdateRule(ctx context.Context, rule *models.AlertRule) error {
	conditions, err := json.Marshal(rule.Conditions)
	if err != nil {
		return fmt.Errorf("marshal conditions: %w", err)
	}
	actions, err := json.Marshal(rule.Actions)
	if err != nil {
		return fmt.Errorf("marshal actions: %w", err)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET name = $1, enabled = $2, priority = $3, conditions = $4, actions = $5, updated_at = now()
		 WHERE id = $6`,
		rule.Name, rule.Enabled, rule.Priority, conditions, actions, rule.ID)
	if err != nil {
		return fmt.Errorf("update rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (s *PostgresStore) DeleteRule(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM alert_rules WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete rule: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

func (s *PostgresStore) SetRuleEnabled(ctx context.Context, id uuid.UUID, enabled bool) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE alert_rules SET enabled = $1, updated_at = now() WHERE id = $2`, enabled, id)
	if err != nil {
		return fmt.Errorf("set rule enabled: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("rule not found")
	}
	return nil
}

// --- Settings ---

// GetCutoff reads the configured lateness cutoff from the settings table.
// Falls back to the default when no row exists.
func (s *PostgresStore) GetCutoff(ctx context.Context) (attendance.Cutoff, error) {
	var value []byte
	err := s.pool.QueryRow(ctx,
		`SELECT value FROM settings WHERE key = 'cutoff'`).Scan(&value)
	if err != nil {
		if err == pgx.ErrNoRows {
			return attendance.DefaultCutoff, nil
		}
		return attendance.DefaultCutoff, fmt.Errorf("get cutoff: %w", err)
	}

	var c attendance.Cutoff
	if err := json.Unmarshal(value, &c); err != nil {
		return attendance.DefaultCutoff, fmt.Errorf("decode cutoff: %w", err)
	}
	return c, nil
}

func (s *PostgresStore) SetCutoff(ctx context.Context, c attendance.Cutoff) error {
	value, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode cutoff: %w", err)
	}
	_, err = s.pool.Exec(ctx,
		`INSERT INTO settings (key, value) VALUES ('cutoff', $1)
		 ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()`,
		value)
	if err != nil {
		return fmt.Errorf("set cutoff: %w", err)
	}
	return nil
}
