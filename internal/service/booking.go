package service

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/queue"
	"github.com/iliyamo/swimming-pool-reservation/internal/storage"
)

// DefaultLockerPrice is charged when neither the request nor the
// locker_price setting provide a positive amount.
const DefaultLockerPrice = 30.0

// BookingService creates and cancels pool and locker reservations.
type BookingService struct {
	tx     database.TxRunner
	stores Stores
	blobs  storage.BlobStore
	events EventPublisher
	log    logger.ILogger
	now    func() time.Time
}

func NewBookingService(tx database.TxRunner, stores Stores, blobs storage.BlobStore, events EventPublisher, log logger.ILogger) *BookingService {
	return &BookingService{tx: tx, stores: stores, blobs: blobs, events: events, log: log, now: time.Now}
}

// PoolReservationInput is a booking request for one pool, date and time
// range.  Amount > 0 creates a pending payment alongside.
type PoolReservationInput struct {
	PoolID        uint64
	Date          string
	StartTime     string
	EndTime       string
	Notes         *string
	Amount        float64
	PaymentMethod string
	// Status is pending unless an admin books on behalf of a user.
	Status string
}

// ReservationResult carries the ids created by a booking.
type ReservationResult struct {
	ReservationID uint64
	PaymentID     *uint64
}

func (in PoolReservationInput) normalise() (PoolReservationInput, error) {
	if in.PoolID == 0 {
		return in, validationErr("pool_resource_id is required")
	}
	date, ok := parseDate(in.Date)
	if !ok {
		return in, validationErr("reservation_date must be YYYY-MM-DD")
	}
	start, st, ok := parseClock(in.StartTime)
	if !ok {
		return in, validationErr("start_time must be HH:MM")
	}
	end, et, ok := parseClock(in.EndTime)
	if !ok {
		return in, validationErr("end_time must be HH:MM")
	}
	if !et.After(st) {
		return in, validationErr("end_time must be after start_time")
	}
	if in.Amount < 0 {
		return in, validationErr("amount must not be negative")
	}
	in.Date, in.StartTime, in.EndTime = date, start, end
	switch in.Status {
	case "":
		in.Status = model.ReservationPending
	case model.ReservationPending, model.ReservationConfirmed:
	default:
		return in, ruleErr(ErrInvalidStatus, "a new reservation must be pending or confirmed")
	}
	if in.PaymentMethod == "" {
		in.PaymentMethod = model.MethodCash
	}
	switch in.PaymentMethod {
	case model.MethodCash, model.MethodBankTransfer, model.MethodSystem, model.MethodCreditCard:
	default:
		return in, ruleErr(ErrInvalidPaymentMethod, "invalid payment method %q", in.PaymentMethod)
	}
	return in, nil
}

// lowestFreeSlot returns the smallest slot in [1, capacity] not in used.
// used is sorted ascending.
func lowestFreeSlot(used []int, capacity int) (int, bool) {
	next := 1
	for _, s := range used {
		if s > next {
			break
		}
		if s == next {
			next++
		}
	}
	return next, next <= capacity
}

// CreatePoolReservation books a pool for a date.  The pool row is locked
// first so concurrent bookings for the same pool are checked one at a
// time; the unique slot index rejects anything that slips through.
func (s *BookingService) CreatePoolReservation(ctx context.Context, userID uint64, in PoolReservationInput) (ReservationResult, error) {
	in, err := in.normalise()
	if err != nil {
		return ReservationResult{}, err
	}

	var (
		out  ReservationResult
		pool model.Pool
	)
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		var err error
		pool, err = s.stores.Pools.GetForUpdateTx(ctx, tx, in.PoolID)
		if isNotFound(err) {
			return notFoundErr("pool not found")
		}
		if err != nil {
			return err
		}
		if pool.Status != model.PoolAvailable {
			return ruleErr(nil, "pool %s is not available", pool.Name)
		}

		used, err := s.stores.Reservations.ActiveSlotsTx(ctx, tx, pool.ID, in.Date)
		if err != nil {
			return err
		}
		if len(used) >= pool.Capacity {
			return capacityErr(pool, in.Date)
		}
		slot, ok := lowestFreeSlot(used, pool.Capacity)
		if !ok {
			return capacityErr(pool, in.Date)
		}

		res := model.Reservation{
			UserID: userID, PoolID: pool.ID, ReservationDate: in.Date,
			StartTime: in.StartTime, EndTime: in.EndTime,
			Status: in.Status, Notes: in.Notes, SlotNo: slot,
		}
		if err := s.stores.Reservations.CreateTx(ctx, tx, &res); err != nil {
			if isConflict(err) {
				return capacityErr(pool, in.Date)
			}
			return err
		}
		out.ReservationID = res.ID

		if in.Amount > 0 {
			p := model.Payment{
				UserID: userID, Amount: in.Amount, Status: model.PaymentPending,
				PaymentMethod: in.PaymentMethod,
				TransactionID: model.TxnPrefixReservation + "-" + strconv.FormatUint(res.ID, 10),
				ReservationID: &res.ID,
			}
			if err := s.stores.Payments.CreateTx(ctx, tx, &p); err != nil {
				return err
			}
			out.PaymentID = &p.ID
		}
		return nil
	})
	if err != nil {
		return ReservationResult{}, asServiceError(s.log, "booking", "create reservation", err)
	}

	s.log.Info("booking", "reservation created", map[string]interface{}{
		"reservation_id": out.ReservationID, "user_id": userID, "pool_id": in.PoolID, "date": in.Date,
	})
	publish(ctx, s.events, s.log, queue.ReservationCreatedQueue, queue.ReservationCreatedEvent{
		ReservationID: out.ReservationID, UserID: userID, PoolID: pool.ID, PoolName: pool.Name,
		Date: in.Date, StartTime: in.StartTime, EndTime: in.EndTime, PaymentID: out.PaymentID,
		CreatedAt: s.now().UTC().Format(time.RFC3339),
	})
	return out, nil
}

func capacityErr(pool model.Pool, date string) *Error {
	return ruleErr(ErrCapacityExceeded, "pool %s is fully booked on %s (capacity %d)", pool.Name, date, pool.Capacity)
}

// CancelPoolReservation cancels a reservation owned by userID, freeing its
// capacity slot.  A pending payment for it is marked failed.
func (s *BookingService) CancelPoolReservation(ctx context.Context, userID, reservationID uint64) error {
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := s.stores.Reservations.GetForUserTx(ctx, tx, reservationID, userID)
		if isNotFound(err) {
			return notFoundErr("reservation not found")
		}
		if err != nil {
			return err
		}
		if res.IsTerminal() {
			return ruleErr(ErrInvalidState, "reservation is already %s", res.Status)
		}
		if err := s.stores.Reservations.UpdateStatusTx(ctx, tx, res.ID, model.ReservationCancelled); err != nil {
			return err
		}
		return s.stores.Payments.FailPendingForReservationTx(ctx, tx, res.ID)
	})
	if err != nil {
		return asServiceError(s.log, "booking", "cancel reservation", err)
	}
	s.log.Info("booking", "reservation cancelled", map[string]interface{}{"reservation_id": reservationID, "user_id": userID})
	return nil
}

// reservationTransitions lists the admin status changes allowed from each
// state.  Cancelled and completed are terminal.
var reservationTransitions = map[string][]string{
	model.ReservationPending:   {model.ReservationConfirmed, model.ReservationCancelled, model.ReservationCompleted},
	model.ReservationConfirmed: {model.ReservationCancelled, model.ReservationCompleted},
}

// UpdateReservationStatus is the admin status change of a pool reservation.
func (s *BookingService) UpdateReservationStatus(ctx context.Context, reservationID uint64, status string) error {
	switch status {
	case model.ReservationPending, model.ReservationConfirmed, model.ReservationCancelled, model.ReservationCompleted:
	default:
		return ruleErr(ErrInvalidStatus, "invalid reservation status %q", status)
	}
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		res, err := s.stores.Reservations.GetByIDTx(ctx, tx, reservationID)
		if isNotFound(err) {
			return notFoundErr("reservation not found")
		}
		if err != nil {
			return err
		}
		if res.Status == status {
			return nil
		}
		for _, allowed := range reservationTransitions[res.Status] {
			if allowed != status {
				continue
			}
			if err := s.stores.Reservations.UpdateStatusTx(ctx, tx, res.ID, status); err != nil {
				return err
			}
			if status == model.ReservationCancelled {
				return s.stores.Payments.FailPendingForReservationTx(ctx, tx, res.ID)
			}
			return nil
		}
		return ruleErr(ErrInvalidState, "cannot change reservation from %s to %s", res.Status, status)
	})
	if err != nil {
		return asServiceError(s.log, "booking", "update reservation status", err)
	}
	return nil
}

// Upload is a file received from the client.
type Upload struct {
	Filename string
	Body     io.Reader
}

// LockerReservationInput books one locker for a whole day.
type LockerReservationInput struct {
	LockerID      uint64
	Date          string
	PaymentMethod string
	Amount        float64
	Slip          *Upload
}

// LockerReservationResult carries the created ids and statuses.
type LockerReservationResult struct {
	ReservationID uint64
	PaymentID     uint64
	Status        string
	PaymentStatus string
	Amount        float64
	SlipURL       *string
}

// lockerStatuses maps the payment method to the reservation and payment
// status.  The system method is settled immediately.
func lockerStatuses(method string) (string, string, bool) {
	switch method {
	case model.MethodCash, model.MethodBankTransfer:
		return model.LockerReservationPending, model.PaymentPending, true
	case model.MethodSystem:
		return model.LockerReservationConfirmed, model.PaymentCompleted, true
	}
	return "", "", false
}

func (s *BookingService) lockerPrice(ctx context.Context) float64 {
	if s.stores.Settings == nil {
		return DefaultLockerPrice
	}
	v, ok, err := s.stores.Settings.Lookup(ctx, model.SettingLockerPrice)
	if err != nil {
		s.log.Warn("booking", "locker_price lookup failed", map[string]interface{}{"error": err.Error()})
		return DefaultLockerPrice
	}
	if !ok {
		return DefaultLockerPrice
	}
	price, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil || price <= 0 {
		return DefaultLockerPrice
	}
	return price
}

// CreateLockerReservation books a locker for a day and records the
// payment.  A bank transfer slip is uploaded before the transaction starts.
func (s *BookingService) CreateLockerReservation(ctx context.Context, userID uint64, in LockerReservationInput) (LockerReservationResult, error) {
	if in.LockerID == 0 {
		return LockerReservationResult{}, validationErr("locker_id is required")
	}
	date, ok := parseDate(in.Date)
	if !ok {
		return LockerReservationResult{}, validationErr("reservation_date must be YYYY-MM-DD")
	}
	resStatus, payStatus, ok := lockerStatuses(in.PaymentMethod)
	if !ok {
		return LockerReservationResult{}, ruleErr(ErrInvalidPaymentMethod, "invalid payment method %q", in.PaymentMethod)
	}
	amount := in.Amount
	if amount <= 0 {
		amount = s.lockerPrice(ctx)
	}

	var slipURL *string
	if in.PaymentMethod == model.MethodBankTransfer && in.Slip != nil {
		url, err := s.blobs.Save(ctx, storage.SlipFolder, in.Slip.Filename, in.Slip.Body)
		if err != nil {
			s.log.Error("booking", "slip upload failed", map[string]interface{}{"user_id": userID, "error": err})
			return LockerReservationResult{}, &Error{Kind: KindUploadFailed, Message: "failed to upload payment slip", Err: err}
		}
		slipURL = &url
	}

	out := LockerReservationResult{Status: resStatus, PaymentStatus: payStatus, Amount: amount, SlipURL: slipURL}
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		locker, err := s.stores.Lockers.GetForUpdateTx(ctx, tx, in.LockerID)
		if isNotFound(err) {
			return notFoundErr("locker not found")
		}
		if err != nil {
			return err
		}
		if locker.Status != model.LockerAvailable {
			return ruleErr(nil, "locker %s is not available", locker.Code)
		}
		taken, err := s.stores.LockerReservations.HasActiveTx(ctx, tx, locker.ID, date)
		if err != nil {
			return err
		}
		if taken {
			return alreadyReservedErr(locker, date)
		}

		lr := model.LockerReservation{
			UserID: userID, LockerID: locker.ID, ReservationDate: date,
			StartTime: model.LockerDayStart, EndTime: model.LockerDayEnd, Status: resStatus,
		}
		if err := s.stores.LockerReservations.CreateTx(ctx, tx, &lr); err != nil {
			if isConflict(err) {
				return alreadyReservedErr(locker, date)
			}
			return err
		}
		out.ReservationID = lr.ID

		p := model.Payment{
			UserID: userID, Amount: amount, Status: payStatus, PaymentMethod: in.PaymentMethod,
			TransactionID:       fmt.Sprintf("%s%d_%d", model.TxnPrefixLocker, lr.ID, s.now().UnixMilli()),
			SlipURL:             slipURL,
			LockerReservationID: &lr.ID,
		}
		if err := s.stores.Payments.CreateTx(ctx, tx, &p); err != nil {
			return err
		}
		out.PaymentID = p.ID
		return nil
	})
	if err != nil {
		if slipURL != nil {
			discardBlob(ctx, s.blobs, s.log, "booking", *slipURL)
		}
		return LockerReservationResult{}, asServiceError(s.log, "booking", "create locker reservation", err)
	}
	s.log.Info("booking", "locker reserved", map[string]interface{}{
		"locker_reservation_id": out.ReservationID, "locker_id": in.LockerID, "date": date, "method": in.PaymentMethod,
	})
	return out, nil
}

func alreadyReservedErr(l model.Locker, date string) *Error {
	return ruleErr(ErrAlreadyReserved, "locker %s is already reserved on %s", l.Code, date)
}

// CancelLockerReservation cancels a live locker reservation of userID.
func (s *BookingService) CancelLockerReservation(ctx context.Context, userID, id uint64) error {
	err := s.stores.LockerReservations.CancelForUser(ctx, id, userID)
	if isNotFound(err) {
		return notFoundErr("locker reservation not found or already cancelled")
	}
	if err != nil {
		return asServiceError(s.log, "booking", "cancel locker reservation", err)
	}
	return nil
}

// ReviewLockerReservation is the admin decision on a pending locker
// reservation: confirmed or cancelled.
func (s *BookingService) ReviewLockerReservation(ctx context.Context, id uint64, status string) error {
	if status != model.LockerReservationConfirmed && status != model.LockerReservationCancelled {
		return ruleErr(ErrInvalidStatus, "status must be confirmed or cancelled")
	}
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		lr, err := s.stores.LockerReservations.GetByIDTx(ctx, tx, id)
		if isNotFound(err) {
			return notFoundErr("locker reservation not found")
		}
		if err != nil {
			return err
		}
		if lr.Status != model.LockerReservationPending {
			return ruleErr(ErrInvalidState, "locker reservation is already %s", lr.Status)
		}
		if err := s.stores.LockerReservations.UpdateStatusTx(ctx, tx, lr.ID, status); err != nil {
			return err
		}
		if status == model.LockerReservationCancelled {
			return s.stores.Payments.FailPendingForLockerReservationTx(ctx, tx, lr.ID)
		}
		return nil
	})
	if err != nil {
		return asServiceError(s.log, "booking", "review locker reservation", err)
	}
	return nil
}
