package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pkg/errors"

	"github.com/you/hrq/internal/backup"
	"github.com/you/hrq/internal/domain"
)

type Store struct{ db *pgxpool.Pool }

func New(db *pgxpool.Pool) *Store { return &Store{db} }

// ---- jobs (source of truth; queue only carries ids) ----

type InsertJobParams struct {
	Type           domain.JobType
	Payload        []byte
	CompanyID      int
	MaxAttempts    int
	TimeoutSeconds int
	BackoffPolicy  string
}

func (s *Store) InsertJob(ctx context.Context, p *InsertJobParams) (string, error) {
	id := uuid.NewString()
	_, err := s.db.Exec(ctx, `insert into jobs(
id, type, payload, company_id, attempt, max_attempts, timeout_sec, backoff_policy, status, enqueued_at, updated_at
) values ($1,$2,$3,$4,0,$5,$6,$7,'pending',now(),now())`,
		id, p.Type, p.Payload, p.CompanyID, p.MaxAttempts, p.TimeoutSeconds, p.BackoffPolicy,
	)
	return id, err
}

func (s *Store) GetJob(ctx context.Context, id string) (*domain.JobDescriptor, error) {
	var j domain.JobDescriptor
	var payload []byte
	err := s.db.QueryRow(ctx, `select id, type, payload, company_id, attempt, max_attempts,
timeout_sec, backoff_policy, status, last_error, enqueued_at, updated_at
from jobs where id = $1`, id).Scan(
		&j.ID, &j.Type, &payload, &j.CompanyID, &j.Attempt, &j.MaxAttempts,
		&j.TimeoutSeconds, &j.BackoffPolicy, &j.Status, &j.LastError, &j.EnqueuedAt, &j.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Errorf("job %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	j.Payload = json.RawMessage(payload)
	return &j, nil
}

func (s *Store) MarkRunning(ctx context.Context, id string, attempt int) error {
	_, err := s.db.Exec(ctx,
		`update jobs set status='running', attempt=$2, updated_at=now() where id=$1`, id, attempt)
	return err
}

func (s *Store) MarkSucceeded(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`update jobs set status='succeeded', last_error=null, updated_at=now() where id=$1`, id)
	return err
}

func (s *Store) MarkRetry(ctx context.Context, id string, attempt int, lastErr string) error {
	_, err := s.db.Exec(ctx,
		`update jobs set status='failed_retryable', attempt=$2, last_error=$3, updated_at=now() where id=$1`,
		id, attempt, lastErr)
	return err
}

func (s *Store) MarkFailed(ctx context.Context, id string, lastErr string) error {
	_, err := s.db.Exec(ctx,
		`update jobs set status='failed_permanent', last_error=$2, updated_at=now() where id=$1`, id, lastErr)
	return err
}

// JobRef locates one job for queue maintenance.
type JobRef struct {
	ID        string
	CompanyID int
}

// StrandedJobs returns deliverable jobs (pending or awaiting retry) whose
// last status write predates cutoff. The scheduler uses it to find rows the
// queue may have lost.
func (s *Store) StrandedJobs(ctx context.Context, cutoff time.Time, limit int) ([]JobRef, error) {
	rows, err := s.db.Query(ctx, `select id, company_id from jobs
where status in ('pending','failed_retryable') and updated_at < $1
order by updated_at limit $2`, cutoff, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []JobRef
	for rows.Next() {
		var ref JobRef
		if err := rows.Scan(&ref.ID, &ref.CompanyID); err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	return out, rows.Err()
}

func (s *Store) TouchJob(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `update jobs set updated_at=now() where id=$1`, id)
	return err
}

func (s *Store) CompanyIDs(ctx context.Context) ([]int, error) {
	rows, err := s.db.Query(ctx, `select id from companies order by id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		out = append(out, id)
	}
	return out, rows.Err()
}

// ---- payroll periods ----

func (s *Store) GetPeriod(ctx context.Context, id string) (*domain.PayrollPeriod, error) {
	var p domain.PayrollPeriod
	err := s.db.QueryRow(ctx, `select id, company_id, name, status, error_message,
total_gross, total_deductions, total_net, created_at, updated_at
from payroll_periods where id = $1`, id).Scan(
		&p.ID, &p.CompanyID, &p.Name, &p.Status, &p.ErrorMessage,
		&p.TotalGross, &p.TotalDeductions, &p.TotalNet, &p.CreatedAt, &p.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, errors.Errorf("payroll period %s not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (s *Store) SetPeriodProcessing(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx,
		`update payroll_periods set status='processing', updated_at=now() where id=$1`, id)
	return err
}

func (s *Store) SetPeriodProcessed(ctx context.Context, id string, gross, deductions, net float64) error {
	_, err := s.db.Exec(ctx, `update payroll_periods set status='processed', error_message=null,
total_gross=$2, total_deductions=$3, total_net=$4, updated_at=now() where id=$1`,
		id, gross, deductions, net)
	return err
}

func (s *Store) SetPeriodFailed(ctx context.Context, id string, msg string) error {
	_, err := s.db.Exec(ctx,
		`update payroll_periods set status='failed', error_message=$2, updated_at=now() where id=$1`, id, msg)
	return err
}

// ReplacePayrollRows rewrites the computed rows for a period. Reprocessing a
// period overwrites its previous rows; there is no dedup guard.
func (s *Store) ReplacePayrollRows(ctx context.Context, periodID string, rows []domain.PayrollRow) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)
	if _, err := tx.Exec(ctx, `delete from payroll_rows where period_id=$1`, periodID); err != nil {
		return err
	}
	for _, r := range rows {
		if _, err := tx.Exec(ctx, `insert into payroll_rows(id, period_id, employee_id, gross, deductions, net)
values ($1,$2,$3,$4,$5,$6)`, uuid.NewString(), periodID, r.EmployeeID, r.Gross, r.Deductions, r.Net); err != nil {
			return err
		}
	}
	return tx.Commit(ctx)
}

// ---- employees and users ----

const employeeCols = `id, company_id, user_id, first_name, last_name, full_name,
email, status, hire_date, salary, manager_id, years_of_service`

func (s *Store) scanEmployees(rows pgx.Rows) ([]domain.Employee, error) {
	defer rows.Close()
	var out []domain.Employee
	for rows.Next() {
		var e domain.Employee
		if err := rows.Scan(&e.ID, &e.CompanyID, &e.UserID, &e.FirstName, &e.LastName, &e.FullName,
			&e.Email, &e.Status, &e.HireDate, &e.Salary, &e.ManagerID, &e.YearsOfService); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func (s *Store) ActiveEmployees(ctx context.Context, companyID int) ([]domain.Employee, error) {
	rows, err := s.db.Query(ctx,
		`select `+employeeCols+` from employees where company_id=$1 and status='active' order by id`, companyID)
	if err != nil {
		return nil, err
	}
	return s.scanEmployees(rows)
}

func (s *Store) EmployeesInCompany(ctx context.Context, companyID int) ([]domain.Employee, error) {
	rows, err := s.db.Query(ctx,
		`select `+employeeCols+` from employees where company_id=$1 order by id`, companyID)
	if err != nil {
		return nil, err
	}
	return s.scanEmployees(rows)
}

// EmployeesAbsentOn returns active employees with no attendance record dated
// the given day.
func (s *Store) EmployeesAbsentOn(ctx context.Context, companyID int, day time.Time) ([]domain.Employee, error) {
	rows, err := s.db.Query(ctx, `select `+employeeCols+` from employees e
where e.company_id=$1 and e.status='active'
  and not exists (select 1 from attendance_records a where a.employee_id=e.id and a.date=$2)
order by e.id`, companyID, day.Format("2006-01-02"))
	if err != nil {
		return nil, err
	}
	return s.scanEmployees(rows)
}

type CreateEmployeeParams struct {
	CompanyID int
	FirstName string
	LastName  string
	Email     string
	Position  string
	HireDate  string
	Salary    float64
}

func (s *Store) CreateEmployee(ctx context.Context, p *CreateEmployeeParams) error {
	hire := p.HireDate
	if hire == "" {
		hire = time.Now().UTC().Format("2006-01-02")
	}
	_, err := s.db.Exec(ctx, `insert into employees(
company_id, first_name, last_name, full_name, email, status, position, hire_date, salary)
values ($1,$2,$3,$4,$5,'active',$6,$7,$8)`,
		p.CompanyID, p.FirstName, p.LastName, p.FirstName+" "+p.LastName, p.Email, p.Position, hire, p.Salary)
	return errors.Wrap(err, "create employee")
}

func (s *Store) SetUserActive(ctx context.Context, userID int, active bool) error {
	_, err := s.db.Exec(ctx, `update users set active=$2 where id=$1`, userID, active)
	return err
}

func (s *Store) UpdateEmployeeDerived(ctx context.Context, employeeID int, fullName string, years int) error {
	_, err := s.db.Exec(ctx,
		`update employees set full_name=$2, years_of_service=$3 where id=$1`, employeeID, fullName, years)
	return err
}

func (s *Store) UserByID(ctx context.Context, id int) (*domain.User, error) {
	var u domain.User
	err := s.db.QueryRow(ctx,
		`select id, email, name, role, active from users where id=$1`, id).Scan(
		&u.ID, &u.Email, &u.Name, &u.Role, &u.Active)
	if err == pgx.ErrNoRows {
		return nil, errors.Errorf("user %d not found", id)
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (s *Store) UsersByRole(ctx context.Context, companyID int, roles domain.Audience) ([]domain.User, error) {
	rs := make([]string, len(roles))
	for i, r := range roles {
		rs[i] = string(r)
	}
	rows, err := s.db.Query(ctx,
		`select id, email, name, role, active from users where company_id=$1 and role=any($2) and active order by id`,
		companyID, rs)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.User
	for rows.Next() {
		var u domain.User
		if err := rows.Scan(&u.ID, &u.Email, &u.Name, &u.Role, &u.Active); err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// ---- attendance ----

// AttendanceInRange is company-scoped; employeeID narrows to one employee when
// non-nil.
func (s *Store) AttendanceInRange(ctx context.Context, companyID int, employeeID *int, start, end time.Time) ([]domain.AttendanceRecord, error) {
	q := `select a.employee_id, a.date, a.status, a.hours_worked
from attendance_records a join employees e on e.id = a.employee_id
where e.company_id=$1 and a.date >= $2 and a.date <= $3`
	args := []any{companyID, start.Format("2006-01-02"), end.Format("2006-01-02")}
	if employeeID != nil {
		q += ` and a.employee_id = $4`
		args = append(args, *employeeID)
	}
	rows, err := s.db.Query(ctx, q+` order by a.date`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.AttendanceRecord
	for rows.Next() {
		var r domain.AttendanceRecord
		if err := rows.Scan(&r.EmployeeID, &r.Date, &r.Status, &r.HoursWorked); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- notifications ----

func (s *Store) InsertNotification(ctx context.Context, n *domain.Notification) (string, error) {
	id := uuid.NewString()
	payload, err := json.Marshal(n.Payload)
	if err != nil {
		return "", errors.Wrap(err, "marshal notification payload")
	}
	_, err = s.db.Exec(ctx, `insert into notifications(
id, recipient_user_id, title, message, severity, payload, read, created_at)
values ($1,$2,$3,$4,$5,$6,false,now())`,
		id, n.RecipientUserID, n.Title, n.Message, n.Severity, payload)
	return id, err
}

func (s *Store) MarkNotificationRead(ctx context.Context, id string) error {
	_, err := s.db.Exec(ctx, `update notifications set read=true where id=$1`, id)
	return err
}

// ---- report data ----

type LeaveRequest struct {
	EmployeeID int
	Type       string
	StartDate  time.Time
	EndDate    time.Time
	Status     string
}

func (s *Store) LeaveRequests(ctx context.Context, companyID int) ([]LeaveRequest, error) {
	rows, err := s.db.Query(ctx, `select l.employee_id, l.type, l.start_date, l.end_date, l.status
from leave_requests l join employees e on e.id = l.employee_id
where e.company_id=$1 order by l.start_date`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []LeaveRequest
	for rows.Next() {
		var l LeaveRequest
		if err := rows.Scan(&l.EmployeeID, &l.Type, &l.StartDate, &l.EndDate, &l.Status); err != nil {
			return nil, err
		}
		out = append(out, l)
	}
	return out, rows.Err()
}

func (s *Store) PayrollRowsForCompany(ctx context.Context, companyID int) ([]domain.PayrollRow, error) {
	rows, err := s.db.Query(ctx, `select r.employee_id, r.gross, r.deductions, r.net
from payroll_rows r join payroll_periods p on p.id = r.period_id
where p.company_id=$1 order by r.employee_id`, companyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []domain.PayrollRow
	for rows.Next() {
		var r domain.PayrollRow
		if err := rows.Scan(&r.EmployeeID, &r.Gross, &r.Deductions, &r.Net); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ---- backup ----

func (s *Store) TableColumns(ctx context.Context, table string) ([]backup.Column, error) {
	rows, err := s.db.Query(ctx, `select column_name, data_type from information_schema.columns
where table_schema='public' and table_name=$1 order by ordinal_position`, table)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []backup.Column
	for rows.Next() {
		var c backup.Column
		if err := rows.Scan(&c.Name, &c.DataType); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// TableRows reads every row of a table, filtered by company_id when
// companyID is non-nil. Table and column names come from the fixed backup
// table list or information_schema, never from user input.
func (s *Store) TableRows(ctx context.Context, table string, companyID *int) ([][]any, error) {
	q := fmt.Sprintf(`select * from %s`, table)
	var args []any
	if companyID != nil {
		q += ` where company_id=$1`
		args = append(args, *companyID)
	}
	rows, err := s.db.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out [][]any
	for rows.Next() {
		vals, err := rows.Values()
		if err != nil {
			return nil, err
		}
		out = append(out, vals)
	}
	return out, rows.Err()
}
