package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/streams"
	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	streamsstore "github.com/xraph/streams/store"
)

// Collection name constants.
const (
	colRoutes   = "streams_routes"
	colInvoices = "streams_invoices"
	colRegistry = "streams_registry"
)

// compile-time interface check
var _ streamsstore.Store = (*Store)(nil)

// Store implements store.Store using MongoDB via Grove ORM. Transitions are
// single-document updates filtered on the expected prior state.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	return &Store{
		db:  db,
		mdb: mongodriver.Unwrap(db),
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all streams collections.
func (s *Store) Migrate(ctx context.Context) error {
	indexes := migrationIndexes()

	for col, models := range indexes {
		if len(models) == 0 {
			continue
		}
		_, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models)
		if err != nil {
			return fmt.Errorf("streams/mongo: migrate %s indexes: %w", col, err)
		}
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
	_, err := s.mdb.NewInsert(toRouteModel(r)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return streams.ErrAlreadyExists
		}
		return fmt.Errorf("streams/mongo: create route: %w", err)
	}
	return nil
}

func (s *Store) GetRoute(ctx context.Context, routeID id.RouteID) (*route.Route, error) {
	var m routeModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": routeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, streams.ErrRouteNotFound
		}
		return nil, fmt.Errorf("streams/mongo: get route: %w", err)
	}
	return fromRouteModel(&m)
}

func (s *Store) ListRoutes(ctx context.Context, opts route.ListOpts) ([]*route.Route, error) {
	var models []routeModel

	filter := bson.M{}
	if opts.Network != "" {
		filter["network"] = opts.Network
	}
	if opts.Depositor != "" {
		filter["depositor"] = string(opts.Depositor)
	}
	if opts.Beneficiary != "" {
		filter["beneficiary"] = string(opts.Beneficiary)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/mongo: list routes: %w", err)
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
	res, err := s.mdb.NewUpdate((*routeModel)(nil)).
		Filter(bson.M{"_id": routeID.String(), "claimed_amount": int64(prev)}).
		Set("claimed_amount", int64(next)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: update route claimed: %w", err)
	}
	if res.MatchedCount() == 1 {
		return nil
	}

	cur, err := s.GetRoute(ctx, routeID)
	if err != nil {
		return err
	}
	return fmt.Errorf("%w: route %s claimed %d, expected %d", streams.ErrConflict, routeID, cur.ClaimedAmount, prev)
}

func (s *Store) DeleteRoute(ctx context.Context, routeID id.RouteID) error {
	if _, err := s.GetRecord(ctx, routeID); err == nil {
		return fmt.Errorf("%w: route %s is registered", streams.ErrInvalidState, routeID)
	} else if !errors.Is(err, streams.ErrRecordNotFound) {
		return err
	}

	res, err := s.mdb.NewDelete((*routeModel)(nil)).
		Filter(bson.M{"_id": routeID.String()}).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: delete route: %w", err)
	}
	if res.DeletedCount() == 0 {
		return streams.ErrRouteNotFound
	}
	return nil
}

// ==================== Invoice Store ====================

func (s *Store) CreateInvoice(ctx context.Context, inv *invoice.Invoice) error {
	_, err := s.mdb.NewInsert(toInvoiceModel(inv)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return streams.ErrAlreadyExists
		}
		return fmt.Errorf("streams/mongo: create invoice: %w", err)
	}
	return nil
}

func (s *Store) GetInvoice(ctx context.Context, invID id.InvoiceID) (*invoice.Invoice, error) {
	var m invoiceModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": invID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, streams.ErrInvoiceNotFound
		}
		return nil, fmt.Errorf("streams/mongo: get invoice: %w", err)
	}
	return fromInvoiceModel(&m)
}

func (s *Store) ListInvoices(ctx context.Context, opts invoice.ListOpts) ([]*invoice.Invoice, error) {
	var models []invoiceModel

	filter := bson.M{}
	for key, val := range map[string]string{
		"network":     opts.Network,
		"status":      string(opts.Status),
		"requester":   string(opts.Requester),
		"beneficiary": string(opts.Beneficiary),
		"payer":       string(opts.Payer),
	} {
		if val != "" {
			filter[key] = val
		}
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/mongo: list invoices: %w", err)
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
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": inv.ID.String(), "status": string(invoice.StatusPending)}).
		Set("status", string(invoice.StatusFunded)).
		Set("schedule.start", inv.Schedule.Start).
		Set("fee_amount", int64(inv.FeeAmount)).
		Set("deposit_amount", int64(inv.DepositAmount)).
		Set("funded_at", inv.FundedAt).
		Set("updated_at", inv.UpdatedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: mark invoice funded: %w", err)
	}
	return s.transitioned(ctx, res.MatchedCount(), inv.ID)
}

func (s *Store) RevertInvoiceFunding(ctx context.Context, invID id.InvoiceID) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{
			"_id":            invID.String(),
			"status":         string(invoice.StatusFunded),
			"claimed_amount": int64(0),
		}).
		Set("status", string(invoice.StatusPending)).
		Set("schedule.start", int64(0)).
		Set("fee_amount", int64(0)).
		Set("deposit_amount", int64(0)).
		Set("funded_at", nil).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: revert invoice funding: %w", err)
	}
	return s.transitioned(ctx, res.MatchedCount(), invID)
}

func (s *Store) MarkInvoiceDeclined(ctx context.Context, invID id.InvoiceID, declinedAt time.Time) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{"_id": invID.String(), "status": string(invoice.StatusPending)}).
		Set("status", string(invoice.StatusDeclined)).
		Set("declined_at", declinedAt).
		Set("updated_at", declinedAt).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: mark invoice declined: %w", err)
	}
	return s.transitioned(ctx, res.MatchedCount(), invID)
}

func (s *Store) UpdateInvoiceClaimed(ctx context.Context, invID id.InvoiceID, prev, next uint64) error {
	res, err := s.mdb.NewUpdate((*invoiceModel)(nil)).
		Filter(bson.M{
			"_id":            invID.String(),
			"status":         string(invoice.StatusFunded),
			"claimed_amount": int64(prev),
		}).
		Set("claimed_amount", int64(next)).
		Set("updated_at", now()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("streams/mongo: update invoice claimed: %w", err)
	}
	if res.MatchedCount() == 1 {
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

// transitioned explains why a filtered status update matched nothing.
func (s *Store) transitioned(ctx context.Context, matched int64, invID id.InvoiceID) error {
	if matched == 1 {
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
	_, err := s.mdb.NewInsert(toRecordModel(rec)).Exec(ctx)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: route %s already registered", streams.ErrAlreadyExists, rec.RouteID)
		}
		return fmt.Errorf("streams/mongo: register: %w", err)
	}
	return nil
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

	res, err := s.mdb.NewUpdate((*recordModel)(nil)).
		Filter(bson.M{"_id": routeID.String(), "claimed_amount": int64(cur.ClaimedAmount)}).
		Set("claimed_amount", int64(newClaimed)).
		Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("streams/mongo: record claim delta: %w", err)
	}
	if res.MatchedCount() == 0 {
		return 0, fmt.Errorf("%w: registry record %s changed concurrently", streams.ErrConflict, routeID)
	}
	return newClaimed - cur.ClaimedAmount, nil
}

func (s *Store) GetRecord(ctx context.Context, routeID id.AnyID) (*registry.Record, error) {
	var m recordModel
	err := s.mdb.NewFind(&m).
		Filter(bson.M{"_id": routeID.String()}).
		Scan(ctx)
	if err != nil {
		if isNoDocuments(err) {
			return nil, streams.ErrRecordNotFound
		}
		return nil, fmt.Errorf("streams/mongo: get record: %w", err)
	}
	return fromRecordModel(&m)
}

func (s *Store) ListRecords(ctx context.Context, opts registry.ListOpts) ([]*registry.Record, error) {
	var models []recordModel

	filter := bson.M{}
	if opts.Network != "" {
		filter["network"] = opts.Network
	}
	if opts.Kind != "" {
		filter["kind"] = string(opts.Kind)
	}

	q := s.mdb.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})

	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("streams/mongo: list records: %w", err)
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
	pipeline := bson.A{
		bson.M{"$match": bson.M{"network": network}},
		bson.M{
			"$group": bson.M{
				"_id":    nil,
				"count":  bson.M{"$sum": 1},
				"routed": bson.M{"$sum": "$deposit_amount"},
				"active": bson.M{"$sum": bson.M{"$subtract": bson.A{"$deposit_amount", "$claimed_amount"}}},
			},
		},
	}

	cursor, err := s.mdb.Collection(colRegistry).Aggregate(ctx, pipeline)
	if err != nil {
		return nil, fmt.Errorf("streams/mongo: totals: %w", err)
	}
	defer cursor.Close(ctx)

	var results []struct {
		Count  int64 `bson:"count"`
		Routed int64 `bson:"routed"`
		Active int64 `bson:"active"`
	}
	if err := cursor.All(ctx, &results); err != nil {
		return nil, fmt.Errorf("streams/mongo: totals decode: %w", err)
	}

	t := &registry.Totals{Network: network}
	if len(results) > 0 {
		t.NumRoutes = uint64(results[0].Count)
		t.TotalRouted = uint64(results[0].Routed)
		t.CurrentActiveTotal = uint64(results[0].Active)
	}
	return t, nil
}

// ==================== Helpers ====================

// now returns the current UTC time.
func now() time.Time {
	return time.Now().UTC()
}

// isNoDocuments checks if an error wraps mongo.ErrNoDocuments.
func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}

// migrationIndexes returns the index definitions for all streams collections.
func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colRoutes: {
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "depositor", Value: 1}}},
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "beneficiary", Value: 1}}},
		},
		colInvoices: {
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "payer", Value: 1}}},
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "beneficiary", Value: 1}}},
		},
		colRegistry: {
			{Keys: bson.D{{Key: "network", Value: 1}, {Key: "kind", Value: 1}}},
		},
	}
}
