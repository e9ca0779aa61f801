package postgres

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

// Amounts never exceed types.MaxAmount and fit BIGINT. Schedule terms may
// not, but the uint64 -> int64 -> uint64 round trip keeps every bit.

// ==================== Route models ====================

type routeModel struct {
	grove.BaseModel `grove:"table:streams_routes"`

	ID              string            `grove:"id,pk"`
	Network         string            `grove:"network"`
	Asset           string            `grove:"asset"`
	Depositor       string            `grove:"depositor"`
	Beneficiary     string            `grove:"beneficiary"`
	ScheduleStart   int64             `grove:"schedule_start"`
	PeriodSeconds   int64             `grove:"period_seconds"`
	PayoutPerPeriod int64             `grove:"payout_per_period"`
	MaxPeriods      int64             `grove:"max_periods"`
	DepositAmount   int64             `grove:"deposit_amount"`
	FeeAmount       int64             `grove:"fee_amount"`
	ClaimedAmount   int64             `grove:"claimed_amount"`
	Metadata        map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt       time.Time         `grove:"created_at"`
	UpdatedAt       time.Time         `grove:"updated_at"`
}

func toRouteModel(r *route.Route) *routeModel {
	return &routeModel{
		ID:              r.ID.String(),
		Network:         r.Network,
		Asset:           string(r.Asset),
		Depositor:       string(r.Depositor),
		Beneficiary:     string(r.Beneficiary),
		ScheduleStart:   r.Schedule.Start,
		PeriodSeconds:   int64(r.Schedule.PeriodSeconds),
		PayoutPerPeriod: int64(r.Schedule.PayoutPerPeriod),
		MaxPeriods:      int64(r.Schedule.MaxPeriods),
		DepositAmount:   int64(r.DepositAmount),
		FeeAmount:       int64(r.FeeAmount),
		ClaimedAmount:   int64(r.ClaimedAmount),
		Metadata:        r.Metadata,
		CreatedAt:       r.CreatedAt,
		UpdatedAt:       r.UpdatedAt,
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
		Schedule:      toSchedule(m.ScheduleStart, m.PeriodSeconds, m.PayoutPerPeriod, m.MaxPeriods),
		DepositAmount: uint64(m.DepositAmount),
		FeeAmount:     uint64(m.FeeAmount),
		ClaimedAmount: uint64(m.ClaimedAmount),
		Metadata:      m.Metadata,
	}, nil
}

// ==================== Invoice models ====================

type invoiceModel struct {
	grove.BaseModel `grove:"table:streams_invoices"`

	ID                   string            `grove:"id,pk"`
	Network              string            `grove:"network"`
	Asset                string            `grove:"asset"`
	Requester            string            `grove:"requester"`
	Beneficiary          string            `grove:"beneficiary"`
	Payer                string            `grove:"payer"`
	RequestedGrossAmount int64             `grove:"requested_gross_amount"`
	ScheduleStart        int64             `grove:"schedule_start"`
	PeriodSeconds        int64             `grove:"period_seconds"`
	PayoutPerPeriod      int64             `grove:"payout_per_period"`
	MaxPeriods           int64             `grove:"max_periods"`
	FeeAmount            int64             `grove:"fee_amount"`
	DepositAmount        int64             `grove:"deposit_amount"`
	ClaimedAmount        int64             `grove:"claimed_amount"`
	Status               string            `grove:"status"`
	FundedAt             *time.Time        `grove:"funded_at"`
	DeclinedAt           *time.Time        `grove:"declined_at"`
	Metadata             map[string]string `grove:"metadata,type:jsonb"`
	CreatedAt            time.Time         `grove:"created_at"`
	UpdatedAt            time.Time         `grove:"updated_at"`
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
		ScheduleStart:        inv.Schedule.Start,
		PeriodSeconds:        int64(inv.Schedule.PeriodSeconds),
		PayoutPerPeriod:      int64(inv.Schedule.PayoutPerPeriod),
		MaxPeriods:           int64(inv.Schedule.MaxPeriods),
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
		Schedule:             toSchedule(m.ScheduleStart, m.PeriodSeconds, m.PayoutPerPeriod, m.MaxPeriods),
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

	RouteID         string    `grove:"route_id,pk"`
	Kind            string    `grove:"kind"`
	Network         string    `grove:"network"`
	Asset           string    `grove:"asset"`
	Depositor       string    `grove:"depositor"`
	Beneficiary     string    `grove:"beneficiary"`
	ScheduleStart   int64     `grove:"schedule_start"`
	PeriodSeconds   int64     `grove:"period_seconds"`
	PayoutPerPeriod int64     `grove:"payout_per_period"`
	MaxPeriods      int64     `grove:"max_periods"`
	DepositAmount   int64     `grove:"deposit_amount"`
	ClaimedAmount   int64     `grove:"claimed_amount"`
	RegisteredAt    time.Time `grove:"registered_at"`
}

func toRecordModel(r *registry.Record) *recordModel {
	return &recordModel{
		RouteID:         r.RouteID.String(),
		Kind:            string(r.Kind),
		Network:         r.Network,
		Asset:           string(r.Asset),
		Depositor:       string(r.Depositor),
		Beneficiary:     string(r.Beneficiary),
		ScheduleStart:   r.Schedule.Start,
		PeriodSeconds:   int64(r.Schedule.PeriodSeconds),
		PayoutPerPeriod: int64(r.Schedule.PayoutPerPeriod),
		MaxPeriods:      int64(r.Schedule.MaxPeriods),
		DepositAmount:   int64(r.DepositAmount),
		ClaimedAmount:   int64(r.ClaimedAmount),
		RegisteredAt:    r.RegisteredAt,
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
		Schedule:      toSchedule(m.ScheduleStart, m.PeriodSeconds, m.PayoutPerPeriod, m.MaxPeriods),
		DepositAmount: uint64(m.DepositAmount),
		ClaimedAmount: uint64(m.ClaimedAmount),
		RegisteredAt:  m.RegisteredAt,
	}, nil
}

func toSchedule(start, period, payout, maxPeriods int64) vesting.Schedule {
	return vesting.Schedule{
		Start:           start,
		PeriodSeconds:   uint64(period),
		PayoutPerPeriod: uint64(payout),
		MaxPeriods:      uint64(maxPeriods),
	}
}
