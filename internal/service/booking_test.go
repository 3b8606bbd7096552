package service

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/swimming-pool-reservation/internal/model"
	"github.com/iliyamo/swimming-pool-reservation/internal/queue"
)

func poolInput(poolID uint64) PoolReservationInput {
	return PoolReservationInput{PoolID: poolID, Date: "2026-03-15", StartTime: "09:00", EndTime: "10:30"}
}

func TestLowestFreeSlot(t *testing.T) {
	cases := []struct {
		used     []int
		capacity int
		want     int
		ok       bool
	}{
		{nil, 2, 1, true},
		{[]int{1}, 2, 2, true},
		{[]int{2}, 2, 1, true},
		{[]int{1, 2}, 2, 3, false},
		{[]int{1, 3}, 3, 2, true},
	}
	for _, c := range cases {
		got, ok := lowestFreeSlot(c.used, c.capacity)
		assert.Equal(t, c.want, got, "used=%v", c.used)
		assert.Equal(t, c.ok, ok, "used=%v", c.used)
	}
}

func TestConcurrentBookingsRespectCapacity(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 3, model.PoolAvailable)

	const attempts = 12
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		succeeded int
		rejected  int
	)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.booking.CreatePoolReservation(context.Background(), user, poolInput(pool.ID))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				succeeded++
			case errors.Is(err, ErrCapacityExceeded):
				rejected++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(100 + i))
	}
	wg.Wait()

	assert.Equal(t, 3, succeeded)
	assert.Equal(t, attempts-3, rejected)
	slots, _ := memReservations{f.db}.ActiveSlotsTx(context.Background(), nil, pool.ID, "2026-03-15")
	assert.Equal(t, []int{1, 2, 3}, slots)
}

func TestThirdBookingOfCapacityTwoPoolIsRejected(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Kids Pool", 2, model.PoolAvailable)
	ctx := context.Background()

	_, err := f.booking.CreatePoolReservation(ctx, 1, poolInput(pool.ID))
	require.NoError(t, err)
	_, err = f.booking.CreatePoolReservation(ctx, 2, poolInput(pool.ID))
	require.NoError(t, err)

	_, err = f.booking.CreatePoolReservation(ctx, 3, poolInput(pool.ID))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCapacityExceeded)
	assert.Equal(t, KindBusinessRule, KindOf(err))
	assert.Contains(t, err.Error(), "Kids Pool")
	assert.Contains(t, err.Error(), "2026-03-15")
	assert.Len(t, f.db.reservations, 2)

	// another date is unaffected
	in := poolInput(pool.ID)
	in.Date = "2026-03-16"
	_, err = f.booking.CreatePoolReservation(ctx, 3, in)
	assert.NoError(t, err)
}

func TestCancellationFreesExactlyOneSlot(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Lap", 1, model.PoolAvailable)
	ctx := context.Background()

	first, err := f.booking.CreatePoolReservation(ctx, 1, poolInput(pool.ID))
	require.NoError(t, err)
	_, err = f.booking.CreatePoolReservation(ctx, 2, poolInput(pool.ID))
	require.ErrorIs(t, err, ErrCapacityExceeded)

	assert.Equal(t, KindNotFound, KindOf(f.booking.CancelPoolReservation(ctx, 2, first.ReservationID)))
	require.NoError(t, f.booking.CancelPoolReservation(ctx, 1, first.ReservationID))

	second, err := f.booking.CreatePoolReservation(ctx, 2, poolInput(pool.ID))
	require.NoError(t, err)
	assert.Equal(t, 1, f.db.reservations[second.ReservationID].SlotNo)

	_, err = f.booking.CreatePoolReservation(ctx, 3, poolInput(pool.ID))
	assert.ErrorIs(t, err, ErrCapacityExceeded)

	err = f.booking.CancelPoolReservation(ctx, 1, first.ReservationID)
	assert.ErrorIs(t, err, ErrInvalidState)
}

func TestCancellingReservationFailsItsPendingPayment(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	ctx := context.Background()
	in := poolInput(pool.ID)
	in.Amount = 80

	own, err := f.booking.CreatePoolReservation(ctx, 1, in)
	require.NoError(t, err)
	require.NoError(t, f.booking.CancelPoolReservation(ctx, 1, own.ReservationID))
	assert.Equal(t, model.PaymentFailed, f.db.payments[*own.PaymentID].Status)

	_, err = f.payments.ConfirmPayment(ctx, *own.PaymentID, model.PaymentCompleted)
	assert.ErrorIs(t, err, ErrInvalidState)

	byAdmin, err := f.booking.CreatePoolReservation(ctx, 2, in)
	require.NoError(t, err)
	require.NoError(t, f.booking.UpdateReservationStatus(ctx, byAdmin.ReservationID, model.ReservationCancelled))
	assert.Equal(t, model.PaymentFailed, f.db.payments[*byAdmin.PaymentID].Status)
}

func TestCreatePoolReservationValidation(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	ctx := context.Background()

	bad := []PoolReservationInput{
		{Date: "2026-03-15", StartTime: "09:00", EndTime: "10:00"},
		{PoolID: pool.ID, Date: "15/03/2026", StartTime: "09:00", EndTime: "10:00"},
		{PoolID: pool.ID, Date: "2026-03-15", StartTime: "9am", EndTime: "10:00"},
		{PoolID: pool.ID, Date: "2026-03-15", StartTime: "10:00", EndTime: "10:00"},
		{PoolID: pool.ID, Date: "2026-03-15", StartTime: "10:00", EndTime: "09:00"},
	}
	for _, in := range bad {
		_, err := f.booking.CreatePoolReservation(ctx, 1, in)
		assert.Equal(t, KindValidation, KindOf(err), "%+v", in)
	}
	assert.Zero(t, f.runner.commits)
	assert.Empty(t, f.db.reservations)
}

func TestCreatePoolReservationRejectsUnavailablePool(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Diving", 10, model.PoolMaintenance)

	_, err := f.booking.CreatePoolReservation(context.Background(), 1, poolInput(pool.ID))
	assert.Equal(t, KindBusinessRule, KindOf(err))
	assert.Contains(t, err.Error(), "Diving")

	_, err = f.booking.CreatePoolReservation(context.Background(), 1, poolInput(999))
	assert.Equal(t, KindNotFound, KindOf(err))
}

func TestCreatePoolReservationWithPayment(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	in := poolInput(pool.ID)
	in.Amount = 150
	in.StartTime = "09:00:00"

	out, err := f.booking.CreatePoolReservation(context.Background(), 7, in)
	require.NoError(t, err)
	require.NotNil(t, out.PaymentID)

	res := f.db.reservations[out.ReservationID]
	assert.Equal(t, model.ReservationPending, res.Status)
	assert.Equal(t, "09:00:00", res.StartTime)
	assert.Equal(t, "10:30:00", res.EndTime)

	p := f.db.payments[*out.PaymentID]
	assert.Equal(t, 150.0, p.Amount)
	assert.Equal(t, model.PaymentPending, p.Status)
	assert.Equal(t, model.MethodCash, p.PaymentMethod)
	assert.True(t, strings.HasPrefix(p.TransactionID, "RSV-"))
	require.NotNil(t, p.ReservationID)
	assert.Equal(t, out.ReservationID, *p.ReservationID)

	require.Len(t, f.events.queues, 1)
	assert.Equal(t, queue.ReservationCreatedQueue, f.events.queues[0])
	ev := f.events.events[0].(queue.ReservationCreatedEvent)
	assert.Equal(t, "Olympic", ev.PoolName)
	assert.Equal(t, uint64(7), ev.UserID)
}

func TestCreatePoolReservationWithoutAmountHasNoPayment(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)

	out, err := f.booking.CreatePoolReservation(context.Background(), 7, poolInput(pool.ID))
	require.NoError(t, err)
	assert.Nil(t, out.PaymentID)
	assert.Empty(t, f.db.payments)
}

func TestPaymentFailureRollsBackReservation(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	f.db.failOn["payments.CreateTx"] = errors.New("connection reset")
	in := poolInput(pool.ID)
	in.Amount = 10

	_, err := f.booking.CreatePoolReservation(context.Background(), 1, in)
	assert.Equal(t, KindStore, KindOf(err))
	assert.Empty(t, f.db.reservations)
	assert.Empty(t, f.events.queues)
}

func TestAdminBookingMayStartConfirmed(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	in := poolInput(pool.ID)
	in.Status = model.ReservationConfirmed

	out, err := f.booking.CreatePoolReservation(context.Background(), 1, in)
	require.NoError(t, err)
	assert.Equal(t, model.ReservationConfirmed, f.db.reservations[out.ReservationID].Status)

	in.Status = model.ReservationCompleted
	_, err = f.booking.CreatePoolReservation(context.Background(), 1, in)
	assert.ErrorIs(t, err, ErrInvalidStatus)
}

func TestUpdateReservationStatus(t *testing.T) {
	f := newFixture()
	pool := f.addPool("Olympic", 5, model.PoolAvailable)
	ctx := context.Background()
	out, err := f.booking.CreatePoolReservation(ctx, 1, poolInput(pool.ID))
	require.NoError(t, err)

	require.NoError(t, f.booking.UpdateReservationStatus(ctx, out.ReservationID, model.ReservationConfirmed))
	require.NoError(t, f.booking.UpdateReservationStatus(ctx, out.ReservationID, model.ReservationCompleted))
	assert.ErrorIs(t, f.booking.UpdateReservationStatus(ctx, out.ReservationID, model.ReservationPending), ErrInvalidState)
	assert.ErrorIs(t, f.booking.UpdateReservationStatus(ctx, out.ReservationID, "archived"), ErrInvalidStatus)
	assert.Equal(t, KindNotFound, KindOf(f.booking.UpdateReservationStatus(ctx, 999, model.ReservationConfirmed)))
}

func lockerInput(lockerID uint64, method string) LockerReservationInput {
	return LockerReservationInput{LockerID: lockerID, Date: "2026-03-15", PaymentMethod: method}
}

func TestConcurrentLockerReservationsHaveOneWinner(t *testing.T) {
	f := newFixture()
	locker := f.addLocker("A-01", model.LockerAvailable)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		winners  int
		rejected int
	)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(user uint64) {
			defer wg.Done()
			_, err := f.booking.CreateLockerReservation(context.Background(), user, lockerInput(locker.ID, model.MethodCash))
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				winners++
			} else if errors.Is(err, ErrAlreadyReserved) {
				rejected++
			} else {
				t.Errorf("unexpected error: %v", err)
			}
		}(uint64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
	assert.Equal(t, 7, rejected)
	assert.Len(t, f.db.lockerRes, 1)
	assert.Len(t, f.db.payments, 1)
}

func TestSystemLockerReservationIsSettled(t *testing.T) {
	f := newFixture()
	locker := f.addLocker("A-02", model.LockerAvailable)
	in := lockerInput(locker.ID, model.MethodSystem)
	in.Amount = 45
	in.Slip = &Upload{Filename: "ignored.png", Body: strings.NewReader("x")}

	out, err := f.booking.CreateLockerReservation(context.Background(), 3, in)
	require.NoError(t, err)
	assert.Equal(t, model.LockerReservationConfirmed, out.Status)
	assert.Equal(t, model.PaymentCompleted, out.PaymentStatus)
	assert.Nil(t, out.SlipURL)
	assert.Empty(t, f.blobs.saved)

	lr := f.db.lockerRes[out.ReservationID]
	assert.Equal(t, model.LockerDayStart, lr.StartTime)
	assert.Equal(t, model.LockerDayEnd, lr.EndTime)

	p := f.db.payments[out.PaymentID]
	assert.Equal(t, model.PaymentCompleted, p.Status)
	assert.Equal(t, 45.0, p.Amount)
	assert.Nil(t, p.SlipURL)
	assert.Regexp(t, `^LKR\d+_\d+$`, p.TransactionID)
	assert.True(t, strings.HasPrefix(p.TransactionID, "LKR"+strconv.FormatUint(out.ReservationID, 10)+"_"))
}

func TestBankTransferLockerReservationStoresSlip(t *testing.T) {
	f := newFixture()
	locker := f.addLocker("B-01", model.LockerAvailable)
	in := lockerInput(locker.ID, model.MethodBankTransfer)
	in.Slip = &Upload{Filename: "slip.jpg", Body: strings.NewReader("jpeg")}

	out, err := f.booking.CreateLockerReservation(context.Background(), 3, in)
	require.NoError(t, err)
	assert.Equal(t, model.LockerReservationPending, out.Status)
	require.NotNil(t, out.SlipURL)
	assert.Equal(t, "https://files.test/slips/slip.jpg", *out.SlipURL)
	assert.Equal(t, out.SlipURL, f.db.payments[out.PaymentID].SlipURL)
}

func TestLockerPriceFallbacks(t *testing.T) {
	ctx := context.Background()

	f := newFixture()
	locker := f.addLocker("C-01", model.LockerAvailable)
	out, err := f.booking.CreateLockerReservation(ctx, 1, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)
	assert.Equal(t, DefaultLockerPrice, out.Amount)

	f = newFixture()
	locker = f.addLocker("C-02", model.LockerAvailable)
	f.db.settings[model.SettingLockerPrice] = "1500"
	out, err = f.booking.CreateLockerReservation(ctx, 1, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)
	assert.Equal(t, 1500.0, out.Amount)

	f = newFixture()
	locker = f.addLocker("C-03", model.LockerAvailable)
	f.db.settings[model.SettingLockerPrice] = "free"
	out, err = f.booking.CreateLockerReservation(ctx, 1, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)
	assert.Equal(t, DefaultLockerPrice, out.Amount)
}

func TestLockerReservationFailures(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	broken := f.addLocker("D-01", model.LockerMaintenance)
	ok := f.addLocker("D-02", model.LockerAvailable)

	_, err := f.booking.CreateLockerReservation(ctx, 1, lockerInput(ok.ID, "paypal"))
	assert.ErrorIs(t, err, ErrInvalidPaymentMethod)

	_, err = f.booking.CreateLockerReservation(ctx, 1, lockerInput(broken.ID, model.MethodCash))
	assert.Equal(t, KindBusinessRule, KindOf(err))

	_, err = f.booking.CreateLockerReservation(ctx, 1, lockerInput(999, model.MethodCash))
	assert.Equal(t, KindNotFound, KindOf(err))

	in := lockerInput(ok.ID, model.MethodCash)
	in.Date = "tomorrow"
	_, err = f.booking.CreateLockerReservation(ctx, 1, in)
	assert.Equal(t, KindValidation, KindOf(err))

	f.blobs.err = errors.New("cloud down")
	in = lockerInput(ok.ID, model.MethodBankTransfer)
	in.Slip = &Upload{Filename: "s.png", Body: strings.NewReader("x")}
	_, err = f.booking.CreateLockerReservation(ctx, 1, in)
	assert.Equal(t, KindUploadFailed, KindOf(err))

	assert.Empty(t, f.db.lockerRes)
	assert.Empty(t, f.db.payments)
}

func TestLockerSlipIsRemovedWhenBookingFails(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	locker := f.addLocker("D-03", model.LockerAvailable)
	_, err := f.booking.CreateLockerReservation(ctx, 9, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)

	in := lockerInput(locker.ID, model.MethodBankTransfer)
	in.Slip = &Upload{Filename: "late.png", Body: strings.NewReader("x")}
	_, err = f.booking.CreateLockerReservation(ctx, 1, in)
	assert.ErrorIs(t, err, ErrAlreadyReserved)
	require.Len(t, f.blobs.saved, 1)
	assert.Equal(t, f.blobs.saved, f.blobs.deleted)
	assert.Len(t, f.db.payments, 1)
}

func TestCancelLockerReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	locker := f.addLocker("E-01", model.LockerAvailable)
	out, err := f.booking.CreateLockerReservation(ctx, 5, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)

	assert.Equal(t, KindNotFound, KindOf(f.booking.CancelLockerReservation(ctx, 6, out.ReservationID)))
	require.NoError(t, f.booking.CancelLockerReservation(ctx, 5, out.ReservationID))
	assert.Equal(t, KindNotFound, KindOf(f.booking.CancelLockerReservation(ctx, 5, out.ReservationID)))

	// the day is free again
	_, err = f.booking.CreateLockerReservation(ctx, 6, lockerInput(locker.ID, model.MethodCash))
	assert.NoError(t, err)
}

func TestReviewLockerReservation(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	locker := f.addLocker("F-01", model.LockerAvailable)
	out, err := f.booking.CreateLockerReservation(ctx, 5, lockerInput(locker.ID, model.MethodCash))
	require.NoError(t, err)

	assert.ErrorIs(t, f.booking.ReviewLockerReservation(ctx, out.ReservationID, "pending"), ErrInvalidStatus)
	require.NoError(t, f.booking.ReviewLockerReservation(ctx, out.ReservationID, model.LockerReservationConfirmed))
	assert.Equal(t, model.LockerReservationConfirmed, f.db.lockerRes[out.ReservationID].Status)
	assert.ErrorIs(t, f.booking.ReviewLockerReservation(ctx, out.ReservationID, model.LockerReservationCancelled), ErrInvalidState)

	declined, err := f.booking.CreateLockerReservation(ctx, 6, LockerReservationInput{LockerID: locker.ID, Date: "2026-03-16", PaymentMethod: model.MethodCash})
	require.NoError(t, err)
	require.NoError(t, f.booking.ReviewLockerReservation(ctx, declined.ReservationID, model.LockerReservationCancelled))
	assert.Equal(t, model.PaymentFailed, f.db.payments[declined.PaymentID].Status)
}
