/*
Package sqlite provides a SQLite-backed implementation of quota.Store.

PURPOSE:
  Holds the roster, target documents, payments, customers with their
  purchase lines, and the commission policy in one SQLite file. The engine
  reads through the quota source interfaces; the admin API writes through
  the Store methods.

INTERFACES IMPLEMENTED:
  quota.Store: TargetSource, Roster, PaymentSource, PurchaseSource,
               CommissionSource and the administrative writes

KEY TABLES:
  users:               Agents, managers, executives
  targets:             Target documents (doc_json via the factory codec)
  target_members:      (target, agent) pairs for membership lookups
  payments:            Cash transactions (amount kept as decimal text)
  customers:           Customers with their root agent
  purchases:           Purchase lines (agent and quantity nullable)
  commission_policies: GLOBAL row plus per-agent overrides

IDENTITY:
  Ids are written as 24-char hex. Rows imported from a document-store
  export may instead carry the extended JSON form {"$oid":"<hex>"}. Every
  id filter matches both: agent_id IN (hex, '{"$oid":"hex"}'), and ids read
  back are normalized by parseStoredID.

DATES:
  Record dates are compared on their first ten characters, so plain dates
  and full timestamps both fall into the right calendar day.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety, as the in-memory store does.
  An in-memory database is pinned to one connection so every query sees
  the same schema.

USAGE:
  store, err := sqlite.New("./data/targets.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

  agg := quota.NewAggregator(store, logger)

SEE ALSO:
  - quota/store.go: Interface definitions
  - factory/target.go: Target document codec
  - quota/store/memory.go: In-memory implementation for testing
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/warp/target-engine/factory"
	"github.com/warp/target-engine/quota"
)

// timeLayout is fixed-width so stored timestamps sort as strings.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

const globalScope = "GLOBAL"

// Store implements quota.Store using SQLite.
type Store struct {
	db      *sql.DB
	mu      sync.RWMutex
	targets *factory.TargetFactory
	now     func() time.Time
}

var _ quota.Store = (*Store)(nil)

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	store := &Store{db: db, targets: factory.NewTargetFactory(), now: time.Now}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		role TEXT NOT NULL,
		manager_id TEXT,
		branch TEXT NOT NULL DEFAULT '',
		image_url TEXT NOT NULL DEFAULT '',
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_users_manager_role
		ON users(manager_id, role);

	-- Target documents
	CREATE TABLE IF NOT EXISTS targets (
		id TEXT PRIMARY KEY,
		manager_id TEXT NOT NULL,
		created_at TEXT NOT NULL,
		doc_json TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_targets_manager_created
		ON targets(manager_id, created_at DESC);

	-- One row per agent appearing in either allocation list
	CREATE TABLE IF NOT EXISTS target_members (
		target_id TEXT NOT NULL REFERENCES targets(id) ON DELETE CASCADE,
		agent_id TEXT NOT NULL,
		PRIMARY KEY (target_id, agent_id)
	);

	CREATE INDEX IF NOT EXISTS idx_target_members_agent
		ON target_members(agent_id);

	-- Cash transactions
	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		agent_id TEXT NOT NULL,
		manager_id TEXT,
		customer_id TEXT,
		method TEXT NOT NULL DEFAULT '',
		amount TEXT NOT NULL,
		payment_type TEXT NOT NULL DEFAULT '',
		date TEXT NOT NULL,
		created_at TEXT NOT NULL
	);

	-- Hot path: cash achievement per agent and window
	CREATE INDEX IF NOT EXISTS idx_payments_agent_date
		ON payments(agent_id, date);

	CREATE TABLE IF NOT EXISTS customers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL DEFAULT '',
		agent_id TEXT NOT NULL,
		manager_id TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_customers_agent
		ON customers(agent_id);

	CREATE TABLE IF NOT EXISTS purchases (
		id TEXT PRIMARY KEY,
		customer_id TEXT NOT NULL,
		agent_id TEXT,
		product_name TEXT NOT NULL DEFAULT '',
		quantity INTEGER,
		purchase_date TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_purchases_customer_date
		ON purchases(customer_id, purchase_date);

	CREATE TABLE IF NOT EXISTS commission_policies (
		scope TEXT NOT NULL,
		agent_id TEXT NOT NULL DEFAULT '',
		pct TEXT NOT NULL,
		updated_at TEXT NOT NULL,
		PRIMARY KEY (scope, agent_id)
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// ROSTER (quota.Roster interface)
// =============================================================================

// SaveUser inserts or replaces a user.
func (s *Store) SaveUser(ctx context.Context, u quota.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (id, name, role, manager_id, branch, image_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, role = excluded.role, manager_id = excluded.manager_id,
			branch = excluded.branch, image_url = excluded.image_url
	`,
		u.ID.Hex(), u.Name, string(u.Role), nullID(u.ManagerID), u.Branch, u.ImageURL,
		s.now().UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// User returns a user or quota.ErrAgentNotFound.
func (s *Store) User(ctx context.Context, id quota.ID) (quota.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users, err := s.queryUsers(ctx, `
		SELECT u.id, u.name, u.role, u.manager_id, u.branch, u.image_url
		FROM users u WHERE u.id IN (?, ?)
	`, idForms(id)...)
	if err != nil {
		return quota.User{}, err
	}
	if len(users) == 0 {
		return quota.User{}, quota.ErrAgentNotFound
	}
	return users[0], nil
}

// AgentsOf returns a manager's agents ordered by name.
func (s *Store) AgentsOf(ctx context.Context, manager quota.ID) ([]quota.User, error) {
	return s.Users(ctx, quota.UserFilter{Role: quota.RoleAgent, ManagerID: manager})
}

// Users lists users matching the filter ordered by name.
func (s *Store) Users(ctx context.Context, f quota.UserFilter) ([]quota.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT u.id, u.name, u.role, u.manager_id, u.branch, u.image_url
		FROM users u
		LEFT JOIN users m ON u.manager_id IN (m.id, '{"$oid":"' || m.id || '"}')
		WHERE 1 = 1`
	var args []any

	if f.Role != "" {
		query += ` AND u.role = ?`
		args = append(args, string(f.Role))
	}
	if !f.ManagerID.IsZero() {
		query += ` AND u.manager_id IN (?, ?)`
		args = append(args, idForms(f.ManagerID)...)
	}
	if f.Branch != "" {
		query += ` AND u.branch = ? COLLATE NOCASE`
		args = append(args, f.Branch)
	}
	if f.ManagerNameLike != "" {
		query += ` AND LOWER(m.name) LIKE ?`
		args = append(args, "%"+strings.ToLower(f.ManagerNameLike)+"%")
	}
	query += ` ORDER BY u.name ASC, u.id ASC`

	return s.queryUsers(ctx, query, args...)
}

func (s *Store) queryUsers(ctx context.Context, query string, args ...any) ([]quota.User, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query users: %w", err)
	}
	defer rows.Close()

	var users []quota.User
	for rows.Next() {
		var (
			u         quota.User
			id, role  string
			managerID sql.NullString
		)
		if err := rows.Scan(&id, &u.Name, &role, &managerID, &u.Branch, &u.ImageURL); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		if u.ID, err = parseStoredID(id); err != nil {
			return nil, err
		}
		if u.ManagerID, err = parseStoredID(managerID.String); err != nil {
			return nil, err
		}
		u.Role = quota.Role(role)
		users = append(users, u)
	}
	return users, rows.Err()
}

// =============================================================================
// TARGETS (quota.TargetSource interface)
// =============================================================================

// SaveTarget inserts or replaces a target document and its membership rows.
func (s *Store) SaveTarget(ctx context.Context, t quota.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := s.saveTargetTx(ctx, sqlTx, t); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) saveTargetTx(ctx context.Context, tx *sql.Tx, t quota.Target) error {
	doc, err := s.targets.MarshalTarget(t)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO targets (id, manager_id, created_at, doc_json)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			manager_id = excluded.manager_id, created_at = excluded.created_at, doc_json = excluded.doc_json
	`, t.ID.Hex(), t.ManagerID.Hex(), t.CreatedAt.UTC().Format(timeLayout), string(doc))
	if err != nil {
		return fmt.Errorf("failed to save target: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM target_members WHERE target_id = ?`, t.ID.Hex()); err != nil {
		return fmt.Errorf("failed to clear target members: %w", err)
	}
	for _, a := range t.Allocations {
		_, err := tx.ExecContext(ctx,
			`INSERT OR IGNORE INTO target_members (target_id, agent_id) VALUES (?, ?)`,
			t.ID.Hex(), a.Agent().Hex())
		if err != nil {
			return fmt.Errorf("failed to save target member: %w", err)
		}
	}
	return nil
}

// Target returns a target or quota.ErrTargetNotFound.
func (s *Store) Target(ctx context.Context, id quota.ID) (quota.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets, err := s.queryTargets(ctx, `SELECT doc_json FROM targets WHERE id IN (?, ?)`, idForms(id)...)
	if err != nil {
		return quota.Target{}, err
	}
	if len(targets) == 0 {
		return quota.Target{}, quota.ErrTargetNotFound
	}
	return targets[0], nil
}

// TargetsForAgent returns targets with the agent in either allocation list,
// newest first.
func (s *Store) TargetsForAgent(ctx context.Context, agent quota.ID) ([]quota.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTargets(ctx, `
		SELECT t.doc_json
		FROM targets t
		WHERE t.id IN (SELECT target_id FROM target_members WHERE agent_id IN (?, ?))
		ORDER BY t.created_at DESC, t.id DESC
	`, idForms(agent)...)
}

// TargetsForManager returns targets owned by the manager, newest first.
func (s *Store) TargetsForManager(ctx context.Context, manager quota.ID) ([]quota.Target, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.queryTargets(ctx, `
		SELECT doc_json FROM targets
		WHERE manager_id IN (?, ?)
		ORDER BY created_at DESC, id DESC
	`, idForms(manager)...)
}

// SetAllocations replaces the percentage allocations of a target and
// stamps alloc_updated_at. Last write wins.
func (s *Store) SetAllocations(ctx context.Context, target quota.ID, allocs []quota.PercentageAllocation) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	var doc string
	err = sqlTx.QueryRowContext(ctx, `SELECT doc_json FROM targets WHERE id IN (?, ?)`, idForms(target)...).Scan(&doc)
	if errors.Is(err, sql.ErrNoRows) {
		return quota.ErrTargetNotFound
	}
	if err != nil {
		return fmt.Errorf("failed to load target: %w", err)
	}

	t, err := s.targets.ParseTarget([]byte(doc))
	if err != nil {
		return err
	}
	t = t.WithPercentages(allocs)
	now := s.now().UTC()
	t.AllocUpdatedAt = &now

	if err := s.saveTargetTx(ctx, sqlTx, t); err != nil {
		return err
	}
	return sqlTx.Commit()
}

func (s *Store) queryTargets(ctx context.Context, query string, args ...any) ([]quota.Target, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query targets: %w", err)
	}
	defer rows.Close()

	var targets []quota.Target
	for rows.Next() {
		var doc string
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		t, err := s.targets.ParseTarget([]byte(doc))
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// =============================================================================
// RECORDS (quota.PaymentSource, quota.PurchaseSource interfaces)
// =============================================================================

// RecordPayment stores a cash transaction. An empty ID gets a UUID.
func (s *Store) RecordPayment(ctx context.Context, p quota.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = s.now()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, agent_id, manager_id, customer_id, method, amount, payment_type, date, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		p.ID, p.AgentID.Hex(), nullID(p.ManagerID), nullID(p.CustomerID), p.Method,
		p.Amount.String(), string(p.Type), p.Date, createdAt.UTC().Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("failed to record payment: %w", err)
	}
	return nil
}

// Payments returns the agents' cash transactions dated inside w. Excluded
// payment types are filtered in SQL.
func (s *Store) Payments(ctx context.Context, agents []quota.ID, w quota.Period) ([]quota.Payment, error) {
	if len(agents) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := idSet(agents)
	excluded := make([]string, len(quota.ExcludedPaymentTypes))
	for i, t := range quota.ExcludedPaymentTypes {
		excluded[i] = "'" + string(t) + "'"
	}

	query := `
		SELECT id, agent_id, manager_id, customer_id, method, amount, payment_type, date, created_at
		FROM payments
		WHERE agent_id IN (` + in + `)
		  AND substr(date, 1, 10) BETWEEN ? AND ?
		  AND UPPER(payment_type) NOT IN (` + strings.Join(excluded, ", ") + `)
		ORDER BY date ASC, created_at ASC`
	args = append(args, w.Start.String(), w.End.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query payments: %w", err)
	}
	defer rows.Close()

	var payments []quota.Payment
	for rows.Next() {
		var (
			p                                 quota.Payment
			agentID, amount, ptype, createdAt string
			managerID, customerID             sql.NullString
		)
		if err := rows.Scan(&p.ID, &agentID, &managerID, &customerID, &p.Method, &amount, &ptype, &p.Date, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan payment: %w", err)
		}
		if p.AgentID, err = parseStoredID(agentID); err != nil {
			return nil, err
		}
		p.ManagerID, _ = parseStoredID(managerID.String)
		p.CustomerID, _ = parseStoredID(customerID.String)
		p.Amount = parseDecimal(amount)
		p.Type = quota.PaymentType(ptype)
		p.CreatedAt, _ = time.Parse(timeLayout, createdAt)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// SaveCustomer inserts or replaces a customer.
func (s *Store) SaveCustomer(ctx context.Context, c quota.Customer) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, agent_id, manager_id, created_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name, agent_id = excluded.agent_id, manager_id = excluded.manager_id
	`, c.ID.Hex(), c.Name, c.AgentID.Hex(), nullID(c.ManagerID), s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save customer: %w", err)
	}
	return nil
}

// AddPurchase appends a purchase line to a customer.
func (s *Store) AddPurchase(ctx context.Context, customer quota.ID, line quota.PurchaseLine) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers WHERE id IN (?, ?)`, idForms(customer)...).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check customer: %w", err)
	}
	if exists == 0 {
		return quota.ErrCustomerNotFound
	}

	var lineAgent sql.NullString
	if line.AgentID != nil {
		lineAgent = sql.NullString{String: line.AgentID.Hex(), Valid: true}
	}
	var quantity sql.NullInt64
	if line.Quantity != nil {
		quantity = sql.NullInt64{Int64: *line.Quantity, Valid: true}
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO purchases (id, customer_id, agent_id, product_name, quantity, purchase_date)
		VALUES (?, ?, ?, ?, ?, ?)
	`, uuid.NewString(), customer.Hex(), lineAgent, line.ProductName, quantity, line.PurchaseDate)
	if err != nil {
		return fmt.Errorf("failed to add purchase: %w", err)
	}
	return nil
}

// PurchaseLines returns purchase lines of customers rooted at any of the
// agents, dated inside w.
func (s *Store) PurchaseLines(ctx context.Context, agents []quota.ID, w quota.Period) ([]quota.PurchaseRecord, error) {
	if len(agents) == 0 {
		return nil, nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	in, args := idSet(agents)
	query := `
		SELECT c.id, c.agent_id, p.agent_id, p.product_name, p.quantity, p.purchase_date
		FROM purchases p
		JOIN customers c ON p.customer_id IN (c.id, '{"$oid":"' || c.id || '"}')
		WHERE c.agent_id IN (` + in + `)
		  AND substr(p.purchase_date, 1, 10) BETWEEN ? AND ?
		ORDER BY p.purchase_date ASC`
	args = append(args, w.Start.String(), w.End.String())

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query purchases: %w", err)
	}
	defer rows.Close()

	var records []quota.PurchaseRecord
	for rows.Next() {
		var (
			r                  quota.PurchaseRecord
			customerID, rootID string
			lineAgent          sql.NullString
			quantity           sql.NullInt64
		)
		if err := rows.Scan(&customerID, &rootID, &lineAgent, &r.Line.ProductName, &quantity, &r.Line.PurchaseDate); err != nil {
			return nil, fmt.Errorf("failed to scan purchase: %w", err)
		}
		if r.CustomerID, err = parseStoredID(customerID); err != nil {
			return nil, err
		}
		if r.CustomerAgentID, err = parseStoredID(rootID); err != nil {
			return nil, err
		}
		if lineAgent.Valid && lineAgent.String != "" {
			id, err := parseStoredID(lineAgent.String)
			if err != nil {
				return nil, err
			}
			r.Line.AgentID = &id
		}
		if quantity.Valid {
			q := quantity.Int64
			r.Line.Quantity = &q
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// =============================================================================
// COMMISSION POLICY (quota.CommissionSource interface)
// =============================================================================

// CommissionPolicy reads the global row and all overrides.
func (s *Store) CommissionPolicy(ctx context.Context) (quota.CommissionPolicy, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT scope, agent_id, pct FROM commission_policies`)
	if err != nil {
		return quota.CommissionPolicy{}, fmt.Errorf("failed to query commission policy: %w", err)
	}
	defer rows.Close()

	policy := quota.CommissionPolicy{Overrides: make(map[quota.ID]decimal.Decimal)}
	for rows.Next() {
		var scope, agentID, pct string
		if err := rows.Scan(&scope, &agentID, &pct); err != nil {
			return quota.CommissionPolicy{}, fmt.Errorf("failed to scan commission policy: %w", err)
		}
		rate := parseDecimal(pct)
		if scope == globalScope {
			policy.Global = &rate
			continue
		}
		id, err := parseStoredID(agentID)
		if err != nil {
			return quota.CommissionPolicy{}, err
		}
		policy.Overrides[id] = rate
	}
	return policy, rows.Err()
}

// SetGlobalCommission upserts the global percentage.
func (s *Store) SetGlobalCommission(ctx context.Context, pct decimal.Decimal) error {
	return s.upsertCommission(ctx, globalScope, "", pct)
}

// SetAgentCommission upserts an agent override.
func (s *Store) SetAgentCommission(ctx context.Context, agent quota.ID, pct decimal.Decimal) error {
	return s.upsertCommission(ctx, "AGENT", agent.Hex(), pct)
}

func (s *Store) upsertCommission(ctx context.Context, scope, agentID string, pct decimal.Decimal) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO commission_policies (scope, agent_id, pct, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(scope, agent_id) DO UPDATE SET pct = excluded.pct, updated_at = excluded.updated_at
	`, scope, agentID, pct.String(), s.now().UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("failed to save commission policy: %w", err)
	}
	return nil
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{"target_members", "targets", "purchases", "customers", "payments", "commission_policies", "users"}
	for _, table := range tables {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

// idForms returns both stored representations of an id.
func idForms(id quota.ID) []any {
	return []any{id.Hex(), oidJSON(id)}
}

// idSet builds an IN list covering both representations of every id.
func idSet(ids []quota.ID) (string, []any) {
	placeholders := make([]string, 0, 2*len(ids))
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		placeholders = append(placeholders, "?", "?")
		args = append(args, idForms(id)...)
	}
	return strings.Join(placeholders, ", "), args
}

func oidJSON(id quota.ID) string {
	return `{"$oid":"` + id.Hex() + `"}`
}

// parseStoredID reads either representation. Empty is the nil id.
func parseStoredID(s string) (quota.ID, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return quota.NilID, nil
	}
	if strings.HasPrefix(s, `{"$oid":"`) && strings.HasSuffix(s, `"}`) {
		s = strings.TrimSuffix(strings.TrimPrefix(s, `{"$oid":"`), `"}`)
	}
	return quota.ParseID(s)
}

func nullID(id quota.ID) sql.NullString {
	if id.IsZero() {
		return sql.NullString{}
	}
	return sql.NullString{String: id.Hex(), Valid: true}
}

func parseDecimal(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
