package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"resort/internal/app/uow"
	domainrooms "resort/internal/domain/rooms"
	"resort/internal/domain/shared/money"
	domainyoga "resort/internal/domain/yoga"
)

func seededFactory(t *testing.T) Factory {
	t.Helper()
	store := NewStore()
	f := Factory{Store: store}
	ctx := context.Background()
	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	room, err := domainrooms.NewRoom(domainrooms.CreateParams{
		ID:            "r-1",
		Name:          "Garden Cottage",
		Capacity:      4,
		PricePerNight: money.Must(1000, money.DefaultCurrency),
		Available:     true,
	})
	require.NoError(t, err)
	require.NoError(t, unit.Rooms().Save(ctx, room))
	require.NoError(t, unit.Yoga().Save(ctx, &domainyoga.Session{
		ID:       "y-1",
		Title:    "Sunrise Flow",
		Capacity: 3,
		Price:    money.Must(500, money.DefaultCurrency),
		Active:   true,
	}))
	require.NoError(t, unit.Commit(ctx))
	return f
}

func TestUnitStagesWritesUntilCommit(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()

	writer, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, writer.Yoga().ReserveSeats(ctx, "y-1", 2))

	reader, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	sess, err := reader.Yoga().ByID(ctx, "y-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.BookedSeats)

	staged, err := writer.Yoga().ByID(ctx, "y-1")
	require.NoError(t, err)
	assert.Equal(t, 2, staged.BookedSeats)

	require.NoError(t, writer.Commit(ctx))
	sess, err = reader.Yoga().ByID(ctx, "y-1")
	require.NoError(t, err)
	assert.Equal(t, 2, sess.BookedSeats)
	assert.Equal(t, int64(2), sess.Version)
}

func TestUnitRollbackDiscardsWrites(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Yoga().ReserveSeats(ctx, "y-1", 3))
	require.NoError(t, unit.Rollback(ctx))

	check, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)
	sess, err := check.Yoga().ByID(ctx, "y-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.BookedSeats)

	assert.ErrorIs(t, unit.Commit(ctx), ErrUnitClosed)
}

func TestYogaSeatsNeverExceedCapacity(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()

	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, unit.Yoga().ReserveSeats(ctx, "y-1", 3))
	assert.ErrorIs(t, unit.Yoga().ReserveSeats(ctx, "y-1", 1), domainyoga.ErrSessionFull)
	require.NoError(t, unit.Yoga().ReleaseSeats(ctx, "y-1", 10))
	sess, err := unit.Yoga().ByID(ctx, "y-1")
	require.NoError(t, err)
	assert.Equal(t, 0, sess.BookedSeats)
	require.NoError(t, unit.Rollback(ctx))
}

func TestRoomGuardSerializesUnits(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()

	first, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	require.NoError(t, first.Rooms().Guard(ctx, "r-1"))

	second, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	waitCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, second.Rooms().Guard(waitCtx, "r-1"), context.DeadlineExceeded)

	acquired := make(chan error, 1)
	go func() {
		acquired <- second.Rooms().Guard(ctx, "r-1")
	}()
	require.NoError(t, first.Commit(ctx))

	select {
	case err := <-acquired:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("guard was not released on commit")
	}
	require.NoError(t, second.Rollback(ctx))
}

func TestGuardUnknownRoom(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()
	unit, err := f.Begin(ctx, uow.TxOptions{})
	require.NoError(t, err)
	defer unit.Rollback(ctx)

	assert.ErrorIs(t, unit.Rooms().Guard(ctx, "missing"), domainrooms.ErrNotFound)
}

func TestReadOnlyUnitRejectsWrites(t *testing.T) {
	f := seededFactory(t)
	ctx := context.Background()
	unit, err := f.Begin(ctx, uow.TxOptions{ReadOnly: true})
	require.NoError(t, err)

	assert.ErrorIs(t, unit.Yoga().ReserveSeats(ctx, "y-1", 1), ErrReadOnlyUnit)
}

func TestFactoryRequiresStore(t *testing.T) {
	_, err := Factory{}.Begin(context.Background(), uow.TxOptions{})
	assert.ErrorIs(t, err, ErrFactoryMisconfigured)
}
