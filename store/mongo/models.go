package mongo

import (
	"time"

	"github.com/xraph/grove"

	"github.com/xraph/streams/id"
	"github.com/xraph/streams/invoice"
	"github.com/xraph/streams/registry"
	"github.com/xraph/streams/route"
	"github.com/xraph/streams/types"
	"github.com/xraph/streams/vesting"
)

// BSON has no unsigned 64-bit type. Amounts fit int64; schedule terms are
// stored as their int64 bit pattern.
type scheduleModel struct {
	Start           int64 `bson:"start"`
	PeriodSeconds   int64 `bson:"period_seconds"`
	PayoutPerPeriod int64 `bson:"payout_per_period"`
	MaxPeriods      int64 `bson:"max_periods"`
}

func toScheduleModel(s vesting.Schedule) scheduleModel {
	return scheduleModel{
		Start:           s.Start,
		PeriodSeconds:   int64(s.PeriodSeconds),
		PayoutPerPeriod: int64(s.PayoutPerPeriod),
		MaxPeriods:      int64(s.MaxPeriods),
	}
}

func (m scheduleModel) schedule() vesting.Schedule {
	return vesting.Schedule{
		Start:           m.Start,
		PeriodSeconds:   uint64(m.PeriodSeconds),
		PayoutPerPeriod: uint64(m.PayoutPerPeriod),
		MaxPeriods:      uint64(m.MaxPeriods),
	}
}

// ==================== Route models ====================

type routeModel struct {
	grove.BaseModel `grove:"table:streams_routes"`

	ID            string            `grove:"id,pk"          bson:"_id"`
	Network       string            `grove:"network"        bson:"network"`
	Asset         string            `grove:"asset"          bson:"asset"`
	Depositor     string            `grove:"depositor"      bson:"depositor"`
	Beneficiary   string            `grove:"beneficiary"    bson:"beneficiary"`
	Schedule      scheduleModel     `grove:"schedule"       bson:"schedule"`
	DepositAmount int64             `grove:"deposit_amount" bson:"deposit_amount"`
	FeeAmount     int64             `grove:"fee_amount"     bson:"fee_amount"`
	ClaimedAmount int64             `grove:"claimed_amount" bson:"claimed_amount"`
	Metadata      map[string]string `grove:"metadata"       bson:"metadata,omitempty"`
	CreatedAt     time.Time         `grove:"created_at"     bson:"created_at"`
	UpdatedAt     time.Time         `grove:"updated_at"     bson:"updated_at"`
}

func toRouteModel(r *route.Route) *routeModel {
	return &routeModel{
		ID:            r.ID.String(),
		Network:       r.Network,
		Asset:         string(r.Asset),
		Depositor:     string(r.Depositor),
		Beneficiary:   string(r.Beneficiary),
		Schedule:      toScheduleModel(r.Schedule),
		DepositAmount: int64(r.DepositAmount),
		FeeAmount:     int64(r.FeeAmount),
		ClaimedAmount: int64(r.ClaimedAmount),
		Metadata:      r.Metadata,
		CreatedAt:     r.CreatedAt,
		UpdatedAt:     r.UpdatedAt,
	}
}

func fromRouteModel(m *routeModel) (*route.Route, error) {
	routeID, err := id.ParseRouteID(m.ID)
	if err != nil {
		return nil, err
	}
	return &route.Route{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:            routeID,
		Network:       m.Network,
		Asset:         types.AssetID(m.Asset),
		Depositor:     types.Address(m.Depositor),
		Beneficiary:   types.Address(m.Beneficiary),
		Schedule:      m.Schedule.schedule(),
		DepositAmount: uint64(m.DepositAmount),
		FeeAmount:     uint64(m.FeeAmount),
		ClaimedAmount: uint64(m.ClaimedAmount),
		Metadata:      m.Metadata,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:streams_invoices"`

	ID                   string            `grove:"id,pk"                  bson:"_id"`
	Network              string            `grove:"network"                bson:"network"`
	Asset                string            `grove:"asset"                  bson:"asset"`
	Requester            string            `grove:"requester"              bson:"requester"`
	Beneficiary          string            `grove:"beneficiary"            bson:"beneficiary"`
	Payer                string            `grove:"payer"                  bson:"payer"`
	RequestedGrossAmount int64             `grove:"requested_gross_amount" bson:"requested_gross_amount"`
	Schedule             scheduleModel     `grove:"schedule"               bson:"schedule"`
	FeeAmount            int64             `grove:"fee_amount"             bson:"fee_amount"`
	DepositAmount        int64             `grove:"deposit_amount"         bson:"deposit_amount"`
	ClaimedAmount        int64             `grove:"claimed_amount"         bson:"claimed_amount"`
	Status               string            `grove:"status"                 bson:"status"`
	FundedAt             *time.Time        `grove:"funded_at"              bson:"funded_at,omitempty"`
	DeclinedAt           *time.Time        `grove:"declined_at"            bson:"declined_at,omitempty"`
	Metadata             map[string]string `grove:"metadata"               bson:"metadata,omitempty"`
	CreatedAt            time.Time         `grove:"created_at"             bson:"created_at"`
	UpdatedAt            time.Time         `grove:"updated_at"             bson:"updated_at"`
}

func toInvoiceModel(inv *invoice.Invoice) *invoiceModel {
	return &invoiceModel{
		ID:                   inv.ID.String(),
		Network:              inv.Network,
		Asset:                string(inv.Asset),
		Requester:            string(inv.Requester),
		Beneficiary:          string(inv.Beneficiary),
		Payer:                string(inv.Payer),
		RequestedGrossAmount: int64(inv.RequestedGrossAmount),
		Schedule:             toScheduleModel(inv.Schedule),
		FeeAmount:            int64(inv.FeeAmount),
		DepositAmount:        int64(inv.DepositAmount),
		ClaimedAmount:        int64(inv.ClaimedAmount),
		Status:               string(inv.Status),
		FundedAt:             inv.FundedAt,
		DeclinedAt:           inv.DeclinedAt,
		Metadata:             inv.Metadata,
		CreatedAt:            inv.CreatedAt,
		UpdatedAt:            inv.UpdatedAt,
	}
}

func fromInvoiceModel(m *invoiceModel) (*invoice.Invoice, error) {
	invID, err := id.ParseInvoiceID(m.ID)
	if err != nil {
		return nil, err
	}
	return &invoice.Invoice{
		Entity: types.Entity{
			CreatedAt: m.CreatedAt,
			UpdatedAt: m.UpdatedAt,
		},
		ID:                   invID,
		Network:              m.Network,
		Asset:                types.AssetID(m.Asset),
		Requester:            types.Address(m.Requester),
		Beneficiary:          types.Address(m.Beneficiary),
		Payer:                types.Address(m.Payer),
		RequestedGrossAmount: uint64(m.RequestedGrossAmount),
		Schedule:             m.Schedule.schedule(),
		FeeAmount:            uint64(m.FeeAmount),
		DepositAmount:        uint64(m.DepositAmount),
		ClaimedAmount:        uint64(m.ClaimedAmount),
		Status:               invoice.Status(m.Status),
		FundedAt:             m.FundedAt,
		DeclinedAt:           m.DeclinedAt,
		Metadata:             m.Metadata,
	}, nil
}

// ==================== Registry models ====================

type recordModel struct {
	grove.BaseModel `grove:"table:streams_registry"`

	RouteID       string        `grove:"route_id,pk"    bson:"_id"`
	Kind          string        `grove:"kind"           bson:"kind"`
	Network       string        `grove:"network"        bson:"network"`
	Asset         string        `grove:"asset"          bson:"asset"`
	Depositor     string        `grove:"depositor"      bson:"depositor"`
	Beneficiary   string        `grove:"beneficiary"    bson:"beneficiary"`
	Schedule      scheduleModel `grove:"schedule"       bson:"schedule"`
	DepositAmount int64         `grove:"deposit_amount" bson:"deposit_amount"`
	ClaimedAmount int64         `grove:"claimed_amount" bson:"claimed_amount"`
	RegisteredAt  time.Time     `grove:"registered_at"  bson:"registered_at"`
}

func toRecordModel(r *registry.Record) *recordModel {
	return &recordModel{
		RouteID:       r.RouteID.String(),
		Kind:          string(r.Kind),
		Network:       r.Network,
		Asset:         string(r.Asset),
		Depositor:     string(r.Depositor),
		Beneficiary:   string(r.Beneficiary),
		Schedule:      toScheduleModel(r.Schedule),
		DepositAmount: int64(r.DepositAmount),
		ClaimedAmount: int64(r.ClaimedAmount),
		RegisteredAt:  r.RegisteredAt,
	}
}

func fromRecordModel(m *recordModel) (*registry.Record, error) {
	routeID, err := id.ParseAny(m.RouteID)
	if err != nil {
		return nil, err
	}
	return &registry.Record{
		RouteID:       routeID,
		Kind:          registry.Kind(m.Kind),
		Network:       m.Network,
		Asset:         types.AssetID(m.Asset),
		Depositor:     types.Address(m.Depositor),
		Beneficiary:   types.Address(m.Beneficiary),
		Schedule:      m.Schedule.schedule(),
		DepositAmount: uint64(m.DepositAmount),
		ClaimedAmount: uint64(m.ClaimedAmount),
		RegisteredAt:  m.RegisteredAt,
	}, nil
}
