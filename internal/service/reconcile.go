package service

import (
	"context"

	"go.uber.org/zap"

	"github.com/iliyamo/styledecor/internal/metrics"
	"github.com/iliyamo/styledecor/internal/model"
)

// Repair rules applied by Reconciler.
const (
	RepairDetach  = "detach"
	RepairFinish  = "finish"
	RepairAttach  = "attach"
	RepairEarning = "earning"
)

// Repair is one applied fix.
type Repair struct {
	Rule        string `json:"rule"`
	BookingID   string `json:"bookingId"`
	DecoratorID string `json:"decoratorId,omitempty"`
	Error       string `json:"error,omitempty"`
}

// ReconcileReport lists what Run found and fixed.
type ReconcileReport struct {
	Checked int      `json:"checkedPairs"`
	Repairs []Repair `json:"repairs"`
}

// Reconciler brings decorator and booking assigned sets back in line after
// a two-step write stopped halfway.  Each repair is itself a single-record
// write, so Run is safe to repeat and to run alongside live traffic.
type Reconciler struct {
	Bookings   BookingStore
	Decorators DecoratorStore
	Earnings   EarningStore
	Now        Clock
}

func NewReconciler(b BookingStore, d DecoratorStore, e EarningStore) *Reconciler {
	return &Reconciler{Bookings: b, Decorators: d, Earnings: e, Now: utcNow}
}

type pair struct{ decorator, booking string }

// Run applies, in order:
//   - decorator holds a booking that does not list it: detach;
//   - decorator holds a completed booking that lists it: finish project;
//   - booking lists an assigned/planning decorator that does not hold it:
//     attach (and start the project for planning);
//   - completed, paid booking without an earning row: insert the earning.
func (r *Reconciler) Run(ctx context.Context) (*ReconcileReport, error) {
	bookings, err := r.Bookings.ListAll(ctx)
	if err != nil {
		return nil, internal("list bookings", err)
	}
	decoratorSide, err := r.Decorators.Assignments(ctx)
	if err != nil {
		return nil, internal("list decorator assignments", err)
	}
	bookingSide, err := r.Bookings.Assignments(ctx)
	if err != nil {
		return nil, internal("list booking assignments", err)
	}

	byID := make(map[string]*model.Booking, len(bookings))
	for i := range bookings {
		byID[bookings[i].ID] = &bookings[i]
	}
	held := make(map[pair]bool, len(decoratorSide))
	for _, a := range decoratorSide {
		held[pair{a.DecoratorID, a.BookingID}] = true
	}
	listed := make(map[pair]string, len(bookingSide))
	for _, a := range bookingSide {
		listed[pair{a.DecoratorID, a.BookingID}] = a.Status
	}

	rep := &ReconcileReport{Checked: len(held) + len(listed), Repairs: []Repair{}}
	now := r.Now()
	apply := func(rule, bookingID, decoratorID string, fn func() error) {
		rp := Repair{Rule: rule, BookingID: bookingID, DecoratorID: decoratorID}
		if err := fn(); err != nil {
			rp.Error = err.Error()
			zap.L().Error("reconcile: repair failed", zap.String("rule", rule),
				zap.String("booking_id", bookingID), zap.String("decorator_id", decoratorID), zap.Error(err))
		} else {
			metrics.RecordRepair(rule)
		}
		rep.Repairs = append(rep.Repairs, rp)
	}

	for p := range held {
		status, ok := listed[p]
		switch {
		case !ok:
			apply(RepairDetach, p.booking, p.decorator, func() error {
				return r.Decorators.DetachBooking(ctx, p.decorator, p.booking, now)
			})
		case status == model.BookingCompleted:
			apply(RepairFinish, p.booking, p.decorator, func() error {
				return r.Decorators.FinishProject(ctx, p.decorator, p.booking, now)
			})
		}
	}
	for p, status := range listed {
		if held[p] || (status != model.BookingAssigned && status != model.BookingPlanning) {
			continue
		}
		apply(RepairAttach, p.booking, p.decorator, func() error {
			if err := r.Decorators.AttachBooking(ctx, p.decorator, p.booking, now); err != nil {
				return err
			}
			if status == model.BookingPlanning {
				return r.Decorators.StartProject(ctx, p.decorator, p.booking, now)
			}
			return nil
		})
	}

	for _, b := range byID {
		if b.Status != model.BookingCompleted || !b.AmountPaid.Valid || len(b.AssignedDecoratorIDs) == 0 {
			continue
		}
		exists, err := r.Earnings.Exists(ctx, b.ID)
		if err != nil {
			return nil, internal("check earning", err)
		}
		if exists {
			continue
		}
		// The completing decorator is not recorded separately; the first
		// listed decorator is credited.
		decoratorID := b.AssignedDecoratorIDs[0]
		apply(RepairEarning, b.ID, decoratorID, func() error {
			_, err := r.Earnings.InsertIfAbsent(ctx, newEarning(b, decoratorID, now))
			return err
		})
	}

	zap.L().Info("reconcile finished", zap.Int("checked", rep.Checked), zap.Int("repairs", len(rep.Repairs)))
	return rep, nil
}
