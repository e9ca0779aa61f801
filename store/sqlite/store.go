package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/sqlitedriver"
	_ "github.com/xraph/grove/drivers/sqlitedriver/sqlitemigrate"
	"github.com/xraph/grove/migrate"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	streamsstore "github.com/xraph/streams/store"
)

// compile-time interface check
var _ streamsstore.Store = (*Store)(nil)

// Store implements store.Store using SQLite via Grove ORM.
//
// Registry totals are not kept as counters: Totals aggregates the registry
// table in one statement, so it always agrees with the records it reads.
type Store struct {
	db  *grove.DB
	sdb *sqlitedriver.SqliteDB
}

// New creates a new SQLite store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		sdb: sqlitedriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.sdb)
	if err != nil {
		return fmt.Errorf("streams/sqlite: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("streams/sqlite: migration failed: %w", err)
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// ==================== Route Store ====================

func (s *Store) CreateRoute(ctx context.Context, r *route.Route) error {
	res, err := s.sdb.NewInsert(toRouteModel(r)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: create route: %w", err)
	}
	return insertedOrExists(res)
}

func (s *Store) GetRoute(ctx context.Context, routeID id.RouteID) (*route.Route, error) {
	m := new(routeModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", routeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, streams.ErrRouteNotFound
		}
		return nil, fmt.Errorf("streams/sqlite: get route: %w", err)
	}
	return fromRouteModel(m)
}

func (s *Store) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	var models []routeModel
	q := s.sdb.NewSelect(&models)

	if opts.Network != "" {
		q = q.Where("network = ?", opts.Network)
	}
	if opts.Depositor != "" {
		q = q.Where("depositor = ?", string(opts.Depositor))
	}
	if opts.Beneficiary != "" {
		q = q.Where("beneficiary = ?", string(opts.Beneficiary))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/sqlite: list routes: %w", err)
	}

	result := make([]*route.Route, len(models))
	for i := range models {
		r, err := fromRouteModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) UpdateRouteClaimed(ctx context.Context, routeID id.RouteID, prev, next uint64) error {
	res, err := s.sdb.NewUpdate((*routeModel)(nil)).
		Set("claimed_amount = ?", int64(next)).
		Set("updated_at = ?", now()).
		Where("id = ?", routeID.String()).
		Where("claimed_amount = ?", int64(prev)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: update route claimed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	cur, err := s.GetRoute(ctx, routeID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: route %s claimed %d, expected %d", streams.ErrConflict, routeID, cur.ClaimedAmount, prev)
}

func (s *Store) DeleteRoute(ctx context.Context, routeID id.RouteID) error {
	res, err := s.sdb.NewDelete((*routeModel)(nil)).
		Where("id = ?", routeID.String()).
		Where("NOT EXISTS (SELECT 1 FROM streams_registry WHERE route_id = ?)", routeID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: delete route: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	if _, err := s.GetRoute(ctx, routeID); err != nil {
		return err
	}
	return fmt.Errorf("%w: route %s is registered", streams.ErrInvalidState, routeID)
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	res, err := s.sdb.NewInsert(toInvoiceModel(inv)).
		OnConflict("(id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: create invoice: %w", err)
	}
	return insertedOrExists(res)
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	m := new(invoiceModel)
	err := s.sdb.NewSelect(m).
		Where("id = ?", invID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, streams.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("streams/sqlite: get invoice: %w", err)
	}
	return fromInvoiceModel(m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel
	q := s.sdb.NewSelect(&models)

	filter := func(col, val string) {
		if val == "" {
			return
		}
		q = q.Where(col+" = ?", val)
	}
	filter("network", opts.Network)
	filter("status", string(opts.Status))
	filter("requester", string(opts.Requester))
	filter("beneficiary", string(opts.Beneficiary))
	filter("payer", string(opts.Payer))

	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/sqlite: list invoices: %w", err)
	}

	result := make([]*invoice.Invoice, len(models))
	for i := range models {
		inv, err := fromInvoiceModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = inv
	}
	return result, nil
}

func (s *Store) MarkInvoiceFunded(ctx context.Context, inv *invoice.Invoice) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusFunded)).
		Set("schedule_start = ?", inv.Schedule.Start).
		Set("fee_amount = ?", int64(inv.FeeAmount)).
		Set("deposit_amount = ?", int64(inv.DepositAmount)).
		Set("funded_at = ?", inv.FundedAt).
		Set("updated_at = ?", inv.UpdatedAt).
		Where("id = ?", inv.ID.String()).
		Where("status = ?", string(invoice.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: mark invoice funded: %w", err)
	}
	return s.transitioned(ctx, res, inv.ID)
}

func (s *Store) RevertInvoiceFunding(ctx context.Context, invID id.InvoiceID) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusPending)).
		Set("schedule_start = 0").
		Set("fee_amount = 0").
		Set("deposit_amount = 0").
		Set("funded_at = NULL").
		Where("id = ?", invID.String()).
		Where("status = ?", string(invoice.StatusFunded)).
		Where("claimed_amount = 0").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: revert invoice funding: %w", err)
	}
	return s.transitioned(ctx, res, invID)
}

func (s *Store) MarkInvoiceDeclined(ctx context.Context, invID id.InvoiceID, declinedAt time.Time) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("status = ?", string(invoice.StatusDeclined)).
		Set("declined_at = ?", declinedAt).
		Set("updated_at = ?", declinedAt).
		Where("id = ?", invID.String()).
		Where("status = ?", string(invoice.StatusPending)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: mark invoice declined: %w", err)
	}
	return s.transitioned(ctx, res, invID)
}

func (s *Store) UpdateInvoiceClaimed(ctx context.Context, invID id.InvoiceID, prev, next uint64) error {
	res, err := s.sdb.NewUpdate((*invoiceModel)(nil)).
		Set("claimed_amount = ?", int64(next)).
		Set("updated_at = ?", now()).
		Where("id = ?", invID.String()).
		Where("status = ?", string(invoice.StatusFunded)).
		Where("claimed_amount = ?", int64(prev)).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: update invoice claimed: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}

	cur, err := s.GetInvoice(ctx, invID)
	if err != nil {
		return err
	}
	if cur.Status != invoice.StatusFunded {
		return fmt.Errorf("%w: invoice %s is %s", streams.ErrInvalidState, invID, cur.Status)
	}
	return fmt.Errorf("%w: invoice %s claimed %d, expected %d", streams.ErrConflict, invID, cur.ClaimedAmount, prev)
}

// transitioned turns a conditional status update that touched no row into
// ErrInvoiceNotFound or ErrInvalidState.
func (s *Store) transitioned(ctx context.Context, res rowsAffecter, invID id.InvoiceID) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 1 {
		return nil
	}
	cur, err := s.GetInvoice(ctx, invID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: invoice %s is %s", streams.ErrInvalidState, invID, cur.Status)
}

// ==================== Registry Store ====================

func (s *Store) Register(ctx context.Context, rec *registry.Record) error {
	if rec.ClaimedAmount > rec.DepositAmount {
		return fmt.Errorf("%w: claimed %d exceeds deposit %d", streams.ErrInvalidDelta, rec.ClaimedAmount, rec.DepositAmount)
	}
	res, err := s.sdb.NewInsert(toRecordModel(rec)).
		OnConflict("(route_id) DO NOTHING").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/sqlite: register: %w", err)
	}
	return insertedOrExists(res)
}

func (s *Store) RecordClaimDelta(ctx context.Context, routeID id.AnyID, newClaimed uint64) (uint64, error) {
	cur, err := s.GetRecord(ctx, routeID)
	if err != nil {
		return 0, err
	}
	if newClaimed < cur.ClaimedAmount || newClaimed > cur.DepositAmount {
		return 0, fmt.Errorf("%w: route %s claimed %d of %d, got %d",
			streams.ErrInvalidDelta, routeID, cur.ClaimedAmount, cur.DepositAmount, newClaimed)
	}

	res, err := s.sdb.NewUpdate((*recordModel)(nil)).
		Set("claimed_amount = ?", int64(newClaimed)).
		Where("route_id = ?", routeID.String()).
		Where("claimed_amount = ?", int64(cur.ClaimedAmount)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("streams/sqlite: record claim delta: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	if rows == 0 {
		return 0, fmt.Errorf("%w: registry record %s changed concurrently", streams.ErrConflict, routeID)
	}
	return newClaimed - cur.ClaimedAmount, nil
}

func (s *Store) GetRecord(ctx context.Context, routeID id.AnyID) (*registry.Record, error) {
	m := new(recordModel)
	err := s.sdb.NewSelect(m).
		Where("route_id = ?", routeID.String()).
		Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, streams.ErrRecordNotFound
		}
		return nil, fmt.Errorf("streams/sqlite: get record: %w", err)
	}
	return fromRecordModel(m)
}

func (s *Store) ListRecords(ctx context.Context, opts registry.ListOpts) ([]*registry.Record, error) {
	var models []recordModel
	q := s.sdb.NewSelect(&models)

	if opts.Network != "" {
		q = q.Where("network = ?", opts.Network)
	}
	if opts.Kind != "" {
		q = q.Where("kind = ?", string(opts.Kind))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("route_id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/sqlite: list records: %w", err)
	}

	result := make([]*registry.Record, len(models))
	for i := range models {
		r, err := fromRecordModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = r
	}
	return result, nil
}

func (s *Store) Totals(ctx context.Context, network string) (*registry.Totals, error) {
	var count, routed, active int64
	err := s.sdb.NewRaw(`
		SELECT COUNT(*),
		       COALESCE(SUM(deposit_amount), 0),
		       COALESCE(SUM(deposit_amount - claimed_amount), 0)
		FROM streams_registry
		WHERE network = ?
	`, network).Scan(ctx, &count, &routed, &active)
	if err != nil {
		return nil, fmt.Errorf("streams/sqlite: totals: %w", err)
	}
	return &registry.Totals{
		Network:            network,
		NumRoutes:          uint64(count),
		TotalRouted:        uint64(routed),
		CurrentActiveTotal: uint64(active),
	}, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// insertedOrExists maps an ON CONFLICT DO NOTHING insert that wrote no row
// to ErrAlreadyExists.
func insertedOrExists(res rowsAffecter) error {
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return streams.ErrAlreadyExists
	}
	return nil
}

// rowsAffecter is the part of an exec result the store inspects.
type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
