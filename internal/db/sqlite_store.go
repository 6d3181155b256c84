package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"

	"github.com/gmoorevt/socialstyles/internal/models"
	"github.com/gmoorevt/socialstyles/internal/services"
)

// timeLayout is fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// Open opens (creating if needed) the SQLite database at path. Foreign keys
// and the busy timeout are set in the DSN so every pooled connection gets them.
func Open(path string) (*sql.DB, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}
	dsn := "file:" + path + "?_foreign_keys=on&_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

type SQLiteStore struct {
	db  *sql.DB
	log *slog.Logger
}

func NewSQLiteStore(db *sql.DB, log *slog.Logger) (*SQLiteStore, error) {
	if db == nil {
		return nil, errors.New("nil db")
	}
	if log == nil {
		log = slog.Default()
	}
	var fk int
	if err := db.QueryRow(`PRAGMA foreign_keys`).Scan(&fk); err != nil {
		return nil, fmt.Errorf("read foreign_keys pragma: %w", err)
	}
	if fk != 1 {
		return nil, errors.New("sqlite foreign keys are disabled; open the database with db.Open")
	}
	return &SQLiteStore{db: db, log: log.With("component", "sqlite_store")}, nil
}

func (s *SQLiteStore) logErr(prefix string, err error) {
	if err != nil {
		s.log.Error("sqlite store: "+prefix, "err", err)
	}
}

// withTx commits when fn returns nil and rolls back otherwise.
func (s *SQLiteStore) withTx(ctx context.Context, name string, fn func(tx *sql.Tx) error) (err error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin: %w", name, err)
	}
	defer func() {
		if err != nil {
			s.logErr(name+" rollback", ignoreDone(tx.Rollback()))
			return
		}
		if err = tx.Commit(); err != nil {
			err = fmt.Errorf("%s: commit: %w", name, err)
		}
	}()
	return fn(tx)
}

func ignoreDone(err error) error {
	if errors.Is(err, sql.ErrTxDone) {
		return nil
	}
	return err
}

type scanner interface {
	Scan(dest ...any) error
}

// queryAll runs a query and scans every row with scan.
func queryAll[T any](ctx context.Context, s *SQLiteStore, name string, scan func(scanner) (T, error), query string, args ...any) ([]T, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: query: %w", name, err)
	}
	defer func() {
		s.logErr(name+": rows.Close", rows.Close())
	}()
	out := []T{}
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: scan: %w", name, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: rows: %w", name, err)
	}
	return out, nil
}

// queryOne returns nil, nil when no row matches.
func queryOne[T any](ctx context.Context, s *SQLiteStore, name string, scan func(scanner) (T, error), query string, args ...any) (*T, error) {
	v, err := scan(s.db.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return &v, nil
}

func formatTime(t time.Time) string { return t.UTC().Format(timeLayout) }

func parseTime(v string) (time.Time, error) {
	t, err := time.Parse(timeLayout, v)
	if err != nil {
		// rows written by hand or older tools
		return time.Parse(time.RFC3339Nano, v)
	}
	return t, nil
}

func boolToInt64(v bool) int64 {
	if v {
		return 1
	}
	return 0
}

func int64ToBool(v int64) bool { return v != 0 }

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
}

// --- Users ---

const userColumns = `id, email, name, pass_hash, is_admin, is_guest, created_at, last_login`

func scanUser(row scanner) (models.User, error) {
	var u models.User
	var admin, guest int64
	var created string
	var lastLogin sql.NullString
	if err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PassHash, &admin, &guest, &created, &lastLogin); err != nil {
		return u, err
	}
	u.IsAdmin, u.IsGuest = int64ToBool(admin), int64ToBool(guest)
	var err error
	if u.CreatedAt, err = parseTime(created); err != nil {
		return u, err
	}
	if lastLogin.Valid {
		t, err := parseTime(lastLogin.String)
		if err != nil {
			return u, err
		}
		u.LastLogin = &t
	}
	return u, nil
}

func (s *SQLiteStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	return queryOne(ctx, s, "GetUser", scanUser, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (s *SQLiteStore) FindUserByEmail(ctx context.Context, email string) (*models.User, error) {
	return queryOne(ctx, s, "FindUserByEmail", scanUser, `SELECT `+userColumns+` FROM users WHERE email = ?`, email)
}

func (s *SQLiteStore) AddUser(ctx context.Context, u *models.User) error {
	if u == nil || strings.TrimSpace(u.ID) == "" {
		return errors.New("invalid user")
	}
	var lastLogin sql.NullString
	if u.LastLogin != nil {
		lastLogin = sql.NullString{String: formatTime(*u.LastLogin), Valid: true}
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		u.ID, u.Email, u.Name, u.PassHash, boolToInt64(u.IsAdmin), boolToInt64(u.IsGuest), formatTime(u.CreatedAt), lastLogin)
	if isUniqueViolation(err) {
		return services.NewConflictError("email already registered")
	}
	if err != nil {
		return fmt.Errorf("AddUser: %w", err)
	}
	return nil
}

func (s *SQLiteStore) TouchLastLogin(ctx context.Context, userID string, at time.Time) error {
	_, err := s.db.ExecContext(ctx, `UPDATE users SET last_login = ? WHERE id = ?`, formatTime(at), userID)
	if err != nil {
		return fmt.Errorf("TouchLastLogin: %w", err)
	}
	return nil
}

func (s *SQLiteStore) ListUsers(ctx context.Context) ([]models.User, error) {
	return queryAll(ctx, s, "ListUsers", scanUser, `SELECT `+userColumns+` FROM users ORDER BY created_at ASC, rowid ASC`)
}

func (s *SQLiteStore) SetAdmin(ctx context.Context, userID string, admin bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE users SET is_admin = ? WHERE id = ?`, boolToInt64(admin), userID)
	if err != nil {
		return fmt.Errorf("SetAdmin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.ErrUserNotFound
	}
	return nil
}

// DeleteUserCascade removes results first, then owned teams with their
// invites and memberships, then the user's other memberships and the user.
func (s *SQLiteStore) DeleteUserCascade(ctx context.Context, userID string) error {
	return s.withTx(ctx, "DeleteUserCascade", func(tx *sql.Tx) error {
		stmts := []string{
			`DELETE FROM results WHERE user_id = ?`,
			`DELETE FROM invites WHERE team_id IN (SELECT id FROM teams WHERE owner_id = ?)`,
			`DELETE FROM memberships WHERE team_id IN (SELECT id FROM teams WHERE owner_id = ?)`,
			`DELETE FROM teams WHERE owner_id = ?`,
			`DELETE FROM memberships WHERE user_id = ?`,
			`DELETE FROM users WHERE id = ?`,
		}
		for _, q := range stmts {
			if _, err := tx.ExecContext(ctx, q, userID); err != nil {
				return fmt.Errorf("DeleteUserCascade: %w", err)
			}
		}
		return nil
	})
}

// --- Teams and memberships ---

const teamColumns = `t.id, t.name, t.description, t.owner_id, t.created_at`

func scanTeam(row scanner) (models.Team, error) {
	var t models.Team
	var created string
	if err := row.Scan(&t.ID, &t.Name, &t.Description, &t.OwnerID, &created); err != nil {
		return t, err
	}
	var err error
	t.CreatedAt, err = parseTime(created)
	return t, err
}

func (s *SQLiteStore) GetTeam(ctx context.Context, id string) (*models.Team, error) {
	return queryOne(ctx, s, "GetTeam", scanTeam, `SELECT `+teamColumns+` FROM teams t WHERE t.id = ?`, id)
}

func (s *SQLiteStore) CreateTeam(ctx context.Context, t *models.Team, owner *models.Membership) error {
	if t == nil || owner == nil {
		return errors.New("invalid team")
	}
	return s.withTx(ctx, "CreateTeam", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO teams (id, name, description, owner_id, created_at) VALUES (?, ?, ?, ?, ?)`,
			t.ID, t.Name, t.Description, t.OwnerID, formatTime(t.CreatedAt)); err != nil {
			return fmt.Errorf("CreateTeam: insert team: %w", err)
		}
		if _, err := insertMembership(ctx, tx, owner); err != nil {
			return fmt.Errorf("CreateTeam: insert owner: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) DeleteTeam(ctx context.Context, id string) error {
	return s.withTx(ctx, "DeleteTeam", func(tx *sql.Tx) error {
		for _, q := range []string{
			`DELETE FROM invites WHERE team_id = ?`,
			`DELETE FROM memberships WHERE team_id = ?`,
			`DELETE FROM teams WHERE id = ?`,
		} {
			if _, err := tx.ExecContext(ctx, q, id); err != nil {
				return fmt.Errorf("DeleteTeam: %w", err)
			}
		}
		return nil
	})
}

// ListTeamsForUser returns teams in the order the user joined them.
func (s *SQLiteStore) ListTeamsForUser(ctx context.Context, userID string) ([]models.Team, error) {
	return queryAll(ctx, s, "ListTeamsForUser", scanTeam,
		`SELECT `+teamColumns+` FROM teams t JOIN memberships m ON m.team_id = t.id
      WHERE m.user_id = ? ORDER BY m.joined_at ASC, m.rowid ASC`, userID)
}

func scanMembership(row scanner) (models.Membership, error) {
	var m models.Membership
	var role, joined string
	if err := row.Scan(&m.TeamID, &m.UserID, &role, &joined); err != nil {
		return m, err
	}
	m.Role = models.Role(role)
	var err error
	m.JoinedAt, err = parseTime(joined)
	return m, err
}

func (s *SQLiteStore) GetMembership(ctx context.Context, teamID, userID string) (*models.Membership, error) {
	return queryOne(ctx, s, "GetMembership", scanMembership,
		`SELECT team_id, user_id, role, joined_at FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
}

func (s *SQLiteStore) ListMemberships(ctx context.Context, teamID string) ([]models.Membership, error) {
	return queryAll(ctx, s, "ListMemberships", scanMembership,
		`SELECT team_id, user_id, role, joined_at FROM memberships WHERE team_id = ? ORDER BY joined_at ASC, rowid ASC`, teamID)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// insertMembership reports false when the (team, user) pair already exists.
func insertMembership(ctx context.Context, ex execer, m *models.Membership) (bool, error) {
	res, err := ex.ExecContext(ctx, `INSERT INTO memberships (team_id, user_id, role, joined_at) VALUES (?, ?, ?, ?)
      ON CONFLICT(team_id, user_id) DO NOTHING`, m.TeamID, m.UserID, string(m.Role), formatTime(m.JoinedAt))
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

func (s *SQLiteStore) AddMembership(ctx context.Context, m *models.Membership) (bool, error) {
	if m == nil {
		return false, errors.New("invalid membership")
	}
	added, err := insertMembership(ctx, s.db, m)
	if err != nil {
		return false, fmt.Errorf("AddMembership: %w", err)
	}
	return added, nil
}

func (s *SQLiteStore) RemoveMembership(ctx context.Context, teamID, userID string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM memberships WHERE team_id = ? AND user_id = ?`, teamID, userID)
	if err != nil {
		return false, fmt.Errorf("RemoveMembership: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("RemoveMembership: %w", err)
	}
	return n > 0, nil
}

// --- Invites ---

const inviteColumns = `token, team_id, email, status, created_at, expires_at`

func scanInvite(row scanner) (models.Invite, error) {
	var inv models.Invite
	var status, created, expires string
	if err := row.Scan(&inv.Token, &inv.TeamID, &inv.Email, &status, &created, &expires); err != nil {
		return inv, err
	}
	inv.Status = models.InviteStatus(status)
	var err error
	if inv.CreatedAt, err = parseTime(created); err != nil {
		return inv, err
	}
	inv.ExpiresAt, err = parseTime(expires)
	return inv, err
}

func (s *SQLiteStore) AddInvite(ctx context.Context, inv *models.Invite) error {
	if inv == nil || strings.TrimSpace(inv.Token) == "" {
		return errors.New("invalid invite")
	}
	_, err := s.db.ExecContext(ctx, `INSERT INTO invites (`+inviteColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		inv.Token, inv.TeamID, inv.Email, string(inv.Status), formatTime(inv.CreatedAt), formatTime(inv.ExpiresAt))
	if isUniqueViolation(err) {
		return services.NewConflictError("invite token already exists")
	}
	if err != nil {
		return fmt.Errorf("AddInvite: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetInvite(ctx context.Context, token string) (*models.Invite, error) {
	return queryOne(ctx, s, "GetInvite", scanInvite, `SELECT `+inviteColumns+` FROM invites WHERE token = ?`, token)
}

func (s *SQLiteStore) ListInvites(ctx context.Context, teamID string, status models.InviteStatus) ([]models.Invite, error) {
	return queryAll(ctx, s, "ListInvites", scanInvite,
		`SELECT `+inviteColumns+` FROM invites WHERE team_id = ? AND (? = '' OR status = ?)
      ORDER BY created_at ASC, rowid ASC`, teamID, string(status), string(status))
}

func (s *SQLiteStore) ListInvitesByEmail(ctx context.Context, email string, status models.InviteStatus) ([]models.Invite, error) {
	return queryAll(ctx, s, "ListInvitesByEmail", scanInvite,
		`SELECT `+inviteColumns+` FROM invites WHERE email = ? AND (? = '' OR status = ?)
      ORDER BY created_at ASC, rowid ASC`, email, string(status), string(status))
}

// CompleteInvite only moves invites that are still pending, so two racing
// accepts cannot both succeed.
func (s *SQLiteStore) CompleteInvite(ctx context.Context, token string, status models.InviteStatus, m *models.Membership) (bool, error) {
	var done bool
	err := s.withTx(ctx, "CompleteInvite", func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `UPDATE invites SET status = ? WHERE token = ? AND status = ?`,
			string(status), token, string(models.InvitePending))
		if err != nil {
			return err
		}
		n, err := res.RowsAffected()
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if m != nil {
			if _, err := insertMembership(ctx, tx, m); err != nil {
				return err
			}
		}
		done = true
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("CompleteInvite: %w", err)
	}
	return done, nil
}

// --- Assessments ---

const assessmentColumns = `id, name, description, questions, scale_max, active, created_at`

func scanAssessment(row scanner) (models.Assessment, error) {
	var a models.Assessment
	var questions, created string
	var active int64
	if err := row.Scan(&a.ID, &a.Name, &a.Description, &questions, &a.ScaleMax, &active, &created); err != nil {
		return a, err
	}
	a.Active = int64ToBool(active)
	if err := json.Unmarshal([]byte(questions), &a.Questions); err != nil {
		return a, fmt.Errorf("decode questions: %w", err)
	}
	var err error
	a.CreatedAt, err = parseTime(created)
	return a, err
}

func (s *SQLiteStore) GetAssessment(ctx context.Context, id string) (*models.Assessment, error) {
	return queryOne(ctx, s, "GetAssessment", scanAssessment, `SELECT `+assessmentColumns+` FROM assessments WHERE id = ?`, id)
}

func (s *SQLiteStore) ActiveAssessment(ctx context.Context) (*models.Assessment, error) {
	return queryOne(ctx, s, "ActiveAssessment", scanAssessment,
		`SELECT `+assessmentColumns+` FROM assessments WHERE active = 1 ORDER BY created_at DESC, rowid DESC LIMIT 1`)
}

func (s *SQLiteStore) ListAssessments(ctx context.Context) ([]models.Assessment, error) {
	return queryAll(ctx, s, "ListAssessments", scanAssessment,
		`SELECT `+assessmentColumns+` FROM assessments ORDER BY created_at ASC, rowid ASC`)
}

// ActivateAssessment deactivates every other assessment and inserts a as active.
func (s *SQLiteStore) ActivateAssessment(ctx context.Context, a *models.Assessment) error {
	if a == nil {
		return errors.New("invalid assessment")
	}
	questions, err := json.Marshal(a.Questions)
	if err != nil {
		return fmt.Errorf("ActivateAssessment: encode questions: %w", err)
	}
	return s.withTx(ctx, "ActivateAssessment", func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `UPDATE assessments SET active = 0 WHERE active = 1`); err != nil {
			return fmt.Errorf("ActivateAssessment: deactivate: %w", err)
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO assessments (`+assessmentColumns+`) VALUES (?, ?, ?, ?, ?, 1, ?)`,
			a.ID, a.Name, a.Description, string(questions), a.ScaleMax, formatTime(a.CreatedAt))
		if isUniqueViolation(err) {
			return services.NewConflictError("assessment id already exists")
		}
		if err != nil {
			return fmt.Errorf("ActivateAssessment: insert: %w", err)
		}
		return nil
	})
}

func (s *SQLiteStore) SetAssessmentActive(ctx context.Context, id string, active bool) error {
	res, err := s.db.ExecContext(ctx, `UPDATE assessments SET active = ? WHERE id = ?`, boolToInt64(active), id)
	if err != nil {
		return fmt.Errorf("SetAssessmentActive: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return services.ErrAssessmentNotFound
	}
	return nil
}

// --- Results ---

const resultColumns = `id, user_id, assessment_id, responses, assertiveness_score, responsiveness_score, social_style, created_at`

func scanResult(row scanner) (models.Result, error) {
	var r models.Result
	var responses, style, created string
	if err := row.Scan(&r.ID, &r.UserID, &r.AssessmentID, &responses, &r.AssertivenessScore, &r.ResponsivenessScore, &style, &created); err != nil {
		return r, err
	}
	r.SocialStyle = models.SocialStyle(style)
	var err error
	if r.Responses, err = models.DecodeResponseSet(responses); err != nil {
		return r, err
	}
	r.CreatedAt, err = parseTime(created)
	return r, err
}

func (s *SQLiteStore) AddResult(ctx context.Context, r *models.Result) error {
	if r == nil {
		return errors.New("invalid result")
	}
	responses, err := models.EncodeResponseSet(r.Responses)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO results (`+resultColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.UserID, r.AssessmentID, responses, r.AssertivenessScore, r.ResponsivenessScore, string(r.SocialStyle), formatTime(r.CreatedAt))
	if err != nil {
		return fmt.Errorf("AddResult: %w", err)
	}
	return nil
}

func (s *SQLiteStore) GetResult(ctx context.Context, id string) (*models.Result, error) {
	return queryOne(ctx, s, "GetResult", scanResult, `SELECT `+resultColumns+` FROM results WHERE id = ?`, id)
}

func (s *SQLiteStore) ListResultsForUser(ctx context.Context, userID string) ([]models.Result, error) {
	return queryAll(ctx, s, "ListResultsForUser", scanResult,
		`SELECT `+resultColumns+` FROM results WHERE user_id = ? ORDER BY created_at DESC, rowid DESC`, userID)
}

// LatestResultForUser breaks created_at ties by insertion order.
func (s *SQLiteStore) LatestResultForUser(ctx context.Context, userID string) (*models.Result, error) {
	return queryOne(ctx, s, "LatestResultForUser", scanResult,
		`SELECT `+resultColumns+` FROM results WHERE user_id = ? ORDER BY created_at DESC, rowid DESC LIMIT 1`, userID)
}

func (s *SQLiteStore) ListAllResults(ctx context.Context) ([]models.Result, error) {
	return queryAll(ctx, s, "ListAllResults", scanResult,
		`SELECT `+resultColumns+` FROM results ORDER BY created_at ASC, rowid ASC`)
}
