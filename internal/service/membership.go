package service

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/iliyamo/swimming-pool-reservation/internal/database"
	"github.com/iliyamo/swimming-pool-reservation/internal/logger"
	"github.com/iliyamo/swimming-pool-reservation/internal/model"
)

// Purchase types.
const (
	PurchaseSession = "session"
	PurchaseAnnual  = "annual"
)

// MembershipService handles purchase, approval and extension of
// memberships.
type MembershipService struct {
	tx     database.TxRunner
	stores Stores
	types  MembershipTypes
	log    logger.ILogger
	now    func() time.Time
}

func NewMembershipService(tx database.TxRunner, stores Stores, types MembershipTypes, log logger.ILogger) *MembershipService {
	return &MembershipService{tx: tx, stores: stores, types: types, log: log, now: time.Now}
}

type PurchaseInput struct {
	PurchaseType   string
	PaymentMethod  string
	UserCategoryID uint64
}

type PurchaseResult struct {
	PaymentID     uint64
	MembershipID  uint64
	TransactionID string
	Amount        float64
}

func validPaymentMethod(m string) bool {
	switch m {
	case model.MethodCash, model.MethodBankTransfer, model.MethodSystem, model.MethodCreditCard:
		return true
	}
	return false
}

// PurchaseMembership creates a pending payment for a session or annual
// membership at the price of the chosen category and prepares the pending
// membership row the payment will activate.
func (s *MembershipService) PurchaseMembership(ctx context.Context, userID uint64, in PurchaseInput) (PurchaseResult, error) {
	if in.PurchaseType != PurchaseSession && in.PurchaseType != PurchaseAnnual {
		return PurchaseResult{}, validationErr("purchase_type must be session or annual")
	}
	if in.UserCategoryID == 0 {
		return PurchaseResult{}, validationErr("user_category_id is required")
	}
	if !validPaymentMethod(in.PaymentMethod) {
		return PurchaseResult{}, ruleErr(ErrInvalidPaymentMethod, "invalid payment method %q", in.PaymentMethod)
	}

	var out PurchaseResult
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		cat, err := s.stores.Categories.GetByIDTx(ctx, tx, in.UserCategoryID)
		if isNotFound(err) {
			return &Error{Kind: KindNotFound, Message: "selected user category not found", Err: ErrCategoryNotFound}
		}
		if err != nil {
			return err
		}

		now := s.now()
		amount := cat.PayPerSessionPrice
		if in.PurchaseType == PurchaseAnnual {
			amount = cat.AnnualPrice
		}

		p := model.Payment{
			UserID: userID, Amount: amount, Status: model.PaymentPending, PaymentMethod: in.PaymentMethod,
			TransactionID: fmt.Sprintf("%s%d", model.TxnPrefixMembership, now.UnixMilli()),
		}
		if err := s.stores.Payments.CreateTx(ctx, tx, &p); err != nil {
			return err
		}
		if err := s.stores.Users.SetCategoryTx(ctx, tx, userID, cat.ID); err != nil {
			return err
		}

		var m model.Membership
		if in.PurchaseType == PurchaseAnnual {
			m, err = s.prepareAnnualTx(ctx, tx, userID, now)
		} else {
			m, err = s.EnsurePendingSessionTx(ctx, tx, userID)
		}
		if err != nil {
			return err
		}
		if err := s.stores.Payments.LinkMembershipTx(ctx, tx, p.ID, m.ID); err != nil {
			return err
		}
		out = PurchaseResult{PaymentID: p.ID, MembershipID: m.ID, TransactionID: p.TransactionID, Amount: amount}
		return nil
	})
	if err != nil {
		return PurchaseResult{}, asServiceError(s.log, "membership", "purchase membership", err)
	}
	s.log.Info("membership", "membership purchase created", map[string]interface{}{
		"user_id": userID, "payment_id": out.PaymentID, "membership_id": out.MembershipID, "type": in.PurchaseType,
	})
	return out, nil
}

// prepareAnnualTx reuses the pending annual row, else the active one, and
// puts it into pending with a one year expiry.  Without either a new
// pending row is inserted.
func (s *MembershipService) prepareAnnualTx(ctx context.Context, tx *sql.Tx, userID uint64, now time.Time) (model.Membership, error) {
	expires := now.AddDate(1, 0, 0)
	for _, status := range []string{model.MembershipPending, model.MembershipActive} {
		m, err := s.stores.Memberships.FindByStatusTx(ctx, tx, userID, s.types.Annual, status)
		if isNotFound(err) {
			continue
		}
		if err != nil {
			return m, err
		}
		if err := s.stores.Memberships.UpdateTx(ctx, tx, m.ID, expires, model.MembershipPending); err != nil {
			return m, err
		}
		m.ExpiresAt, m.Status = expires, model.MembershipPending
		return m, nil
	}
	m := model.Membership{UserID: userID, MembershipTypeID: s.types.Annual, ExpiresAt: expires, Status: model.MembershipPending}
	return m, s.stores.Memberships.CreateTx(ctx, tx, &m)
}

// EnsurePendingSessionTx returns the user's pending session membership,
// inserting one that expires now when none exists.  Registration uses it
// to give every new account a session membership.
func (s *MembershipService) EnsurePendingSessionTx(ctx context.Context, tx *sql.Tx, userID uint64) (model.Membership, error) {
	m, err := s.stores.Memberships.FindByStatusTx(ctx, tx, userID, s.types.Session, model.MembershipPending)
	if err == nil || !isNotFound(err) {
		return m, err
	}
	m = model.Membership{UserID: userID, MembershipTypeID: s.types.Session, ExpiresAt: s.now(), Status: model.MembershipPending}
	return m, s.stores.Memberships.CreateTx(ctx, tx, &m)
}

// ApproveMembership activates a pending membership.
func (s *MembershipService) ApproveMembership(ctx context.Context, id uint64) error {
	return s.review(ctx, id, model.MembershipActive)
}

// RejectMembership rejects a pending membership.
func (s *MembershipService) RejectMembership(ctx context.Context, id uint64) error {
	return s.review(ctx, id, model.MembershipRejected)
}

func (s *MembershipService) review(ctx context.Context, id uint64, status string) error {
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		m, err := s.stores.Memberships.GetByIDTx(ctx, tx, id)
		if isNotFound(err) || (err == nil && m.Status != model.MembershipPending) {
			return notFoundErr("membership not found or not pending")
		}
		if err != nil {
			return err
		}
		err = s.stores.Memberships.SetStatusTx(ctx, tx, id, status)
		if isConflict(err) {
			return ruleErr(ErrInvalidState, "user already has an active membership of this type")
		}
		return err
	})
	if err != nil {
		return asServiceError(s.log, "membership", "review membership", err)
	}
	s.log.Info("membership", "membership reviewed", map[string]interface{}{"membership_id": id, "status": status})
	return nil
}

// ExtendMembership adds days to the user's active membership of typeID,
// or creates an active one expiring days from now.  The returned
// membership reflects the new expiry.
func (s *MembershipService) ExtendMembership(ctx context.Context, userID, typeID uint64, days int) (model.Membership, error) {
	if days <= 0 {
		return model.Membership{}, validationErr("days must be positive")
	}
	if typeID == 0 {
		typeID = s.types.Annual
	}
	var out model.Membership
	err := s.tx.WithTx(ctx, func(tx *sql.Tx) error {
		now := s.now()
		m, err := s.stores.Memberships.FindByStatusTx(ctx, tx, userID, typeID, model.MembershipActive)
		if isNotFound(err) {
			out = model.Membership{UserID: userID, MembershipTypeID: typeID, ExpiresAt: now.AddDate(0, 0, days), Status: model.MembershipActive}
			return s.stores.Memberships.CreateTx(ctx, tx, &out)
		}
		if err != nil {
			return err
		}
		base := m.ExpiresAt
		if base.Before(now) {
			base = now
		}
		m.ExpiresAt = base.AddDate(0, 0, days)
		out = m
		return s.stores.Memberships.UpdateTx(ctx, tx, m.ID, m.ExpiresAt, model.MembershipActive)
	})
	if err != nil {
		return model.Membership{}, asServiceError(s.log, "membership", "extend membership", err)
	}
	s.log.Info("membership", "membership extended", map[string]interface{}{
		"user_id": userID, "membership_id": out.ID, "expires_at": out.ExpiresAt,
	})
	return out, nil
}
