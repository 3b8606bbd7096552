package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/queue"
	"github.com/iliyamo/swimming-pool-reservation/internal/storage"
)

// Confirmation outcomes reported to the admin and in events.
const (
	OutcomeMembershipActivated = "membership activated"
	OutcomeMembershipExtended  = "membership extended"
	OutcomeMembershipReverted  = "membership refunded"
	OutcomeReservationUpdated  = "reservation updated"
	OutcomeLockerUpdated       = "locker reservation updated"
	OutcomeNonMembership       = "non-membership payment"
	OutcomePaymentFailed       = "payment failed"
)

// PaymentService moves payments through pending -> completed|failed and
// completed -> refunded, applying the effect on the linked membership or
// reservation in the same transaction.
type PaymentService struct {
	tx     database.TxRunner
	stores Stores
	types  MembershipTypes
	blobs  storage.BlobStore
	events EventPublisher
	log    logger.ILogger
	now    func() time.Time
}

func NewPaymentService(tx database.TxRunner, stores Stores, types MembershipTypes, blobs storage.BlobStore, events EventPublisher, log logger.ILogger) *PaymentService {
	return &PaymentService{tx: tx, stores: stores, types: types, blobs: blobs, events: events, log: log, now: time.Now}
}

// ConfirmResult describes what a confirmation did.
type ConfirmResult struct {
	PaymentID    uint64     `json:"payment_id"`
	Status       string     `json:"status"`
	Outcome      string     `json:"outcome"`
	MembershipID *uint64    `json:"membership_id,omitempty"`
	ExpiresAt    *time.Time `json:"expires_at,omitempty"`
}

// requiredPrior is the only state each target status may be reached from.
var requiredPrior = map[string]string{
	model.PaymentCompleted: model.PaymentPending,
	model.PaymentFailed:    model.PaymentPending,
	model.PaymentRefunded:  model.PaymentCompleted,
}

// ConfirmPayment applies an admin decision to one payment.  Repeating a
// decision is rejected with ErrInvalidState and changes nothing.
func (s *PaymentService) ConfirmPayment(ctx context.Context, paymentID uint64, status string) (ConfirmResult, error) {
	if _, ok := requiredPrior[status]; !ok {
		return ConfirmResult{}, ruleErr(ErrInvalidStatus, "status must be completed, failed or refunded")
	}
	var (
		out     ConfirmResult
		payment model.Payment
	)
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := s.stores.Payments.GetForUpdateTx(ctx, tx, paymentID)
		if isNotFound(err) {
			return notFoundErr("payment not found")
		}
		if err != nil {
			return err
		}
		if p.Status != requiredPrior[status] {
			return ruleErr(ErrInvalidState, "payment is %s and cannot become %s", p.Status, status)
		}
		payment = p
		out, err = s.transitionTx(ctx, tx, p, status)
		return err
	})
	if err != nil {
		return ConfirmResult{}, asServiceError(s.log, "payment", "confirm payment", err)
	}
	s.afterConfirm(ctx, payment, out)
	return out, nil
}

// BulkResult lists the payments a bulk confirmation changed and skipped.
type BulkResult struct {
	Updated []uint64 `json:"updated"`
	Skipped []uint64 `json:"skipped"`
}

// BulkConfirmPayments runs the pending -> completed|failed transition for
// every listed payment that is still pending, in one transaction.  Missing
// and non-pending payments are skipped, as are completions of payments
// whose reservation was cancelled.
func (s *PaymentService) BulkConfirmPayments(ctx context.Context, ids []uint64, status string) (BulkResult, error) {
	if len(ids) == 0 {
		return BulkResult{}, validationErr("payment_ids must not be empty")
	}
	if status != model.PaymentCompleted && status != model.PaymentFailed {
		return BulkResult{}, ruleErr(ErrInvalidStatus, "status must be completed or failed")
	}

	type done struct {
		payment model.Payment
		result  ConfirmResult
	}
	var (
		out       BulkResult
		confirmed []done
	)
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		out, confirmed = BulkResult{Updated: []uint64{}, Skipped: []uint64{}}, nil
		seen := make(map[uint64]bool, len(ids))
		for _, id := range ids {
			if seen[id] {
				continue
			}
			seen[id] = true
			p, err := s.stores.Payments.GetForUpdateTx(ctx, tx, id)
			if isNotFound(err) || (err == nil && p.Status != model.PaymentPending) {
				out.Skipped = append(out.Skipped, id)
				continue
			}
			if err != nil {
				return err
			}
			if status == model.PaymentCompleted {
				err := s.checkLinkedLiveTx(ctx, tx, p)
				if errors.Is(err, ErrInvalidState) {
					out.Skipped = append(out.Skipped, id)
					continue
				}
				if err != nil {
					return err
				}
			}
			res, err := s.transitionTx(ctx, tx, p, status)
			if err != nil {
				return err
			}
			out.Updated = append(out.Updated, id)
			confirmed = append(confirmed, done{payment: p, result: res})
		}
		return nil
	})
	if err != nil {
		return BulkResult{}, asServiceError(s.log, "payment", "bulk confirm payments", err)
	}
	for _, d := range confirmed {
		s.afterConfirm(ctx, d.payment, d.result)
	}
	return out, nil
}

func (s *PaymentService) afterConfirm(ctx context.Context, p model.Payment, res ConfirmResult) {
	s.log.Info("payment", "payment status changed", map[string]interface{}{
		"payment_id": p.ID, "user_id": p.UserID, "from": p.Status, "to": res.Status, "outcome": res.Outcome,
	})
	publish(ctx, s.events, s.log, queue.PaymentConfirmedQueue, queue.PaymentConfirmedEvent{
		PaymentID: p.ID, UserID: p.UserID, TransactionID: p.TransactionID, Amount: p.Amount,
		Status: res.Status, Outcome: res.Outcome, ConfirmedAt: s.now().UTC().Format(time.RFC3339),
	})
}

// transitionTx writes the new status and its side effects.  The caller has
// locked p and checked the prior state.
func (s *PaymentService) transitionTx(ctx context.Context, tx *sql.Tx, p model.Payment, status string) (ConfirmResult, error) {
	out := ConfirmResult{PaymentID: p.ID, Status: status}
	if status == model.PaymentCompleted {
		if err := s.checkLinkedLiveTx(ctx, tx, p); err != nil {
			return out, err
		}
	}
	if err := s.stores.Payments.UpdateStatusTx(ctx, tx, p.ID, status); err != nil {
		return out, err
	}
	var err error
	switch status {
	case model.PaymentFailed:
		out.Outcome = OutcomePaymentFailed
	case model.PaymentCompleted:
		err = s.completeTx(ctx, tx, p, &out)
	case model.PaymentRefunded:
		err = s.refundTx(ctx, tx, p, &out)
	}
	return out, err
}

// checkLinkedLiveTx rejects completing a payment whose reservation has
// been cancelled.  It writes nothing.
func (s *PaymentService) checkLinkedLiveTx(ctx context.Context, tx *sql.Tx, p model.Payment) error {
	if p.ReservationID != nil {
		res, err := s.stores.Reservations.GetByIDTx(ctx, tx, *p.ReservationID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil && res.Status == model.ReservationCancelled {
			return ruleErr(ErrInvalidState, "reservation %d is cancelled", res.ID)
		}
	}
	if p.LockerReservationID != nil {
		lr, err := s.stores.LockerReservations.GetByIDTx(ctx, tx, *p.LockerReservationID)
		if err != nil && !isNotFound(err) {
			return err
		}
		if err == nil && lr.Status == model.LockerReservationCancelled {
			return ruleErr(ErrInvalidState, "locker reservation %d is cancelled", lr.ID)
		}
	}
	return nil
}

// updateLinkedTx moves linked reservations to status.  It reports whether
// the payment was for a reservation at all.
func (s *PaymentService) updateLinkedTx(ctx context.Context, tx *sql.Tx, p model.Payment, poolStatus, lockerStatus string, out *ConfirmResult) (bool, error) {
	linked := false
	if p.ReservationID != nil {
		linked = true
		out.Outcome = OutcomeReservationUpdated
		res, err := s.stores.Reservations.GetByIDTx(ctx, tx, *p.ReservationID)
		if err != nil && !isNotFound(err) {
			return true, err
		}
		if err == nil && !res.IsTerminal() && res.Status != poolStatus {
			if err := s.stores.Reservations.UpdateStatusTx(ctx, tx, res.ID, poolStatus); err != nil {
				return true, err
			}
		}
	}
	if p.LockerReservationID != nil {
		linked = true
		out.Outcome = OutcomeLockerUpdated
		lr, err := s.stores.LockerReservations.GetByIDTx(ctx, tx, *p.LockerReservationID)
		if err != nil && !isNotFound(err) {
			return true, err
		}
		if err == nil && lr.Status != model.LockerReservationCancelled && lr.Status != lockerStatus {
			if err := s.stores.LockerReservations.UpdateStatusTx(ctx, tx, lr.ID, lockerStatus); err != nil {
				return true, err
			}
		}
	}
	return linked, nil
}

func (s *PaymentService) completeTx(ctx context.Context, tx *sql.Tx, p model.Payment, out *ConfirmResult) error {
	linked, err := s.updateLinkedTx(ctx, tx, p, model.ReservationConfirmed, model.LockerReservationConfirmed, out)
	if err != nil || linked {
		return err
	}

	m, err := s.paidMembershipTx(ctx, tx, p)
	if isNotFound(err) {
		out.Outcome = OutcomeNonMembership
		return nil
	}
	if err != nil {
		return err
	}

	now := s.now()
	if m.MembershipTypeID == s.types.Session {
		expires := endOfDay(now)
		if err := s.stores.Memberships.ExpireOthersTx(ctx, tx, p.UserID, m.MembershipTypeID, m.ID); err != nil {
			return err
		}
		if err := s.stores.Memberships.UpdateTx(ctx, tx, m.ID, expires, model.MembershipActive); err != nil {
			return activationErr(err)
		}
		out.Outcome, out.MembershipID, out.ExpiresAt = OutcomeMembershipActivated, &m.ID, &expires
		return nil
	}

	if m.Status == model.MembershipActive {
		// another payment for a row that is already active adds a year
		expires := yearAfter(m.ExpiresAt, now)
		if err := s.stores.Memberships.UpdateTx(ctx, tx, m.ID, expires, model.MembershipActive); err != nil {
			return err
		}
		out.Outcome, out.MembershipID, out.ExpiresAt = OutcomeMembershipExtended, &m.ID, &expires
		return nil
	}

	other, err := s.stores.Memberships.FindOtherActiveTx(ctx, tx, p.UserID, m.MembershipTypeID, m.ID)
	switch {
	case err == nil:
		expires := yearAfter(other.ExpiresAt, now)
		if err := s.stores.Memberships.UpdateTx(ctx, tx, other.ID, expires, model.MembershipActive); err != nil {
			return err
		}
		if m.Status == model.MembershipPending {
			// the pending row was superseded by extending the active one
			if err := s.stores.Memberships.SetStatusTx(ctx, tx, m.ID, model.MembershipExpired); err != nil {
				return err
			}
		}
		// a refund must find the row that received the year
		if err := s.stores.Payments.LinkMembershipTx(ctx, tx, p.ID, other.ID); err != nil {
			return err
		}
		out.Outcome, out.MembershipID, out.ExpiresAt = OutcomeMembershipExtended, &other.ID, &expires
		return nil
	case isNotFound(err):
		expires := now.AddDate(1, 0, 0)
		if err := s.stores.Memberships.UpdateTx(ctx, tx, m.ID, expires, model.MembershipActive); err != nil {
			return activationErr(err)
		}
		out.Outcome, out.MembershipID, out.ExpiresAt = OutcomeMembershipActivated, &m.ID, &expires
		return nil
	default:
		return err
	}
}

// yearAfter adds one year to expires, counting from now when it has lapsed.
func yearAfter(expires, now time.Time) time.Time {
	if expires.Before(now) {
		expires = now
	}
	return expires.AddDate(1, 0, 0)
}

func activationErr(err error) error {
	if isConflict(err) {
		return ruleErr(ErrInvalidState, "user already has an active membership of this type")
	}
	return err
}

// paidMembershipTx locates the membership a payment pays for: the linked
// row, or for legacy payments without a link the user's most recent one.
func (s *PaymentService) paidMembershipTx(ctx context.Context, tx *sql.Tx, p model.Payment) (model.Membership, error) {
	if p.MembershipID != nil {
		return s.stores.Memberships.GetByIDTx(ctx, tx, *p.MembershipID)
	}
	if p.PaymentType() != "membership" {
		return model.Membership{}, errNoMembership
	}
	return s.stores.Memberships.LatestForUserTx(ctx, tx, p.UserID)
}

func (s *PaymentService) refundTx(ctx context.Context, tx *sql.Tx, p model.Payment, out *ConfirmResult) error {
	linked, err := s.updateLinkedTx(ctx, tx, p, model.ReservationCancelled, model.LockerReservationCancelled, out)
	if err != nil || linked {
		return err
	}

	m, err := s.refundedMembershipTx(ctx, tx, p)
	if isNotFound(err) {
		out.Outcome = OutcomeNonMembership
		return nil
	}
	if err != nil {
		return err
	}

	out.Outcome, out.MembershipID = OutcomeMembershipReverted, &m.ID
	if m.MembershipTypeID == s.types.Session {
		return s.stores.Memberships.SetStatusTx(ctx, tx, m.ID, model.MembershipExpired)
	}
	expires := m.ExpiresAt.AddDate(-1, 0, 0)
	status := model.MembershipActive
	if s.now().After(expires) {
		status = model.MembershipExpired
	}
	out.ExpiresAt = &expires
	return s.stores.Memberships.UpdateTx(ctx, tx, m.ID, expires, status)
}

// refundedMembershipTx returns the linked membership when it is active,
// otherwise the user's active membership of the same type.  Legacy
// payments without a link fall back to the most recent active row.
func (s *PaymentService) refundedMembershipTx(ctx context.Context, tx *sql.Tx, p model.Payment) (model.Membership, error) {
	if p.MembershipID == nil {
		if p.PaymentType() != "membership" {
			return model.Membership{}, errNoMembership
		}
		return s.stores.Memberships.LatestActiveForUserTx(ctx, tx, p.UserID)
	}
	m, err := s.stores.Memberships.GetByIDTx(ctx, tx, *p.MembershipID)
	if err != nil || m.Status == model.MembershipActive {
		return m, err
	}
	return s.stores.Memberships.FindByStatusTx(ctx, tx, p.UserID, m.MembershipTypeID, model.MembershipActive)
}

// UploadSlip stores a transfer slip for the caller's payment and puts the
// payment back into review.  Completed and refunded payments are final.
// The file is only uploaded once the payment is known to be the caller's,
// and is removed again when the payment cannot take it.
func (s *PaymentService) UploadSlip(ctx context.Context, userID, paymentID uint64, slip Upload) (string, error) {
	if slip.Body == nil {
		return "", validationErr("slip file is required")
	}
	if err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := s.slipTargetTx(ctx, tx, userID, paymentID)
		return err
	}); err != nil {
		return "", asServiceError(s.log, "payment", "upload slip", err)
	}

	url, err := s.blobs.Save(ctx, storage.SlipFolder, slip.Filename, slip.Body)
	if err != nil {
		s.log.Error("payment", "slip upload failed", map[string]interface{}{"payment_id": paymentID, "error": err})
		return "", &Error{Kind: KindUploadFailed, Message: "failed to upload payment slip", Err: err}
	}
	err = s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		p, err := s.slipTargetTx(ctx, tx, userID, paymentID)
		if err != nil {
			return err
		}
		return s.stores.Payments.UpdateSlipTx(ctx, tx, p.ID, url)
	})
	if err != nil {
		discardBlob(ctx, s.blobs, s.log, "payment", url)
		return "", asServiceError(s.log, "payment", "upload slip", err)
	}
	s.log.Info("payment", "slip uploaded", map[string]interface{}{"payment_id": paymentID, "user_id": userID})
	return url, nil
}

// slipTargetTx locks the caller's payment and checks it can take a slip.
func (s *PaymentService) slipTargetTx(ctx context.Context, tx *sql.Tx, userID, paymentID uint64) (model.Payment, error) {
	p, err := s.stores.Payments.GetForUpdateTx(ctx, tx, paymentID)
	if isNotFound(err) || (err == nil && p.UserID != userID) {
		return p, notFoundErr("payment not found")
	}
	if err != nil {
		return p, err
	}
	if p.Status == model.PaymentCompleted || p.Status == model.PaymentRefunded {
		return p, ruleErr(ErrInvalidState, "payment is already %s", p.Status)
	}
	return p, nil
}
