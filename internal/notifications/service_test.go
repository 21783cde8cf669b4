package notifications

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
)

func openProjectionDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.HelpRequest{}, &models.Offer{}))
	return conn
}

func insertRequest(t *testing.T, conn *gorm.DB, creator uuid.UUID, title string, status enums.RequestStatus) uuid.UUID {
	t.Helper()
	id := uuid.New()
	now := time.Now().UTC()
	require.NoError(t, conn.Create(&models.HelpRequest{
		ID: id, Title: title, Description: "d", Category: enums.RequestCategoryOther,
		CreatorID: creator, CreatorEmail: "c@u.northwestern.edu", CreatorName: "C",
		CreatorYear: enums.YearJunior, CreatorMajor: "M", Status: status,
		CreatedAt: now, UpdatedAt: now,
	}).Error)
	return id
}

func insertOffer(t *testing.T, conn *gorm.DB, requestID uuid.UUID, status enums.OfferStatus, at time.Time) uuid.UUID {
	t.Helper()
	id := uuid.New()
	require.NoError(t, conn.Create(&models.Offer{
		ID: id, RequestID: requestID, HelperID: uuid.New(), HelperEmail: "h@u.northwestern.edu",
		HelperName: "Helper", HelperYear: enums.YearFreshman, HelperMajor: "Art",
		Status: status, CreatedAt: at, UpdatedAt: at,
	}).Error)
	return id
}

func TestPendingForUserProjectsOpenAndAcceptedRequests(t *testing.T) {
	conn := openProjectionDB(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	me := uuid.New()
	base := time.Date(2026, 9, 5, 8, 0, 0, 0, time.UTC)

	open := insertRequest(t, conn, me, "Open one", enums.RequestStatusOpen)
	accepted := insertRequest(t, conn, me, "Accepted one", enums.RequestStatusAccepted)
	closed := insertRequest(t, conn, me, "Closed one", enums.RequestStatusClosed)
	someoneElse := insertRequest(t, conn, uuid.New(), "Not mine", enums.RequestStatusOpen)

	older := insertOffer(t, conn, open, enums.OfferStatusPending, base)
	newer := insertOffer(t, conn, accepted, enums.OfferStatusPending, base.Add(time.Minute))
	insertOffer(t, conn, open, enums.OfferStatusDeclined, base.Add(2*time.Minute))
	insertOffer(t, conn, accepted, enums.OfferStatusAccepted, base.Add(3*time.Minute))
	insertOffer(t, conn, closed, enums.OfferStatusPending, base.Add(4*time.Minute))
	insertOffer(t, conn, someoneElse, enums.OfferStatusPending, base.Add(5*time.Minute))

	items, err := svc.PendingForUser(context.Background(), me)
	require.NoError(t, err)
	require.Len(t, items, 2)
	require.Equal(t, newer, items[0].OfferID)
	require.Equal(t, "Accepted one", items[0].RequestTitle)
	require.Equal(t, older, items[1].OfferID)
	for _, item := range items {
		require.Empty(t, item.HelperEmail)
		require.Equal(t, enums.OfferStatusPending, item.Status)
		require.Equal(t, item.CreatedAt.UnixMilli(), item.CreatedAtMs)
	}

	badge, err := svc.Badge(context.Background(), me)
	require.NoError(t, err)
	require.EqualValues(t, 2, badge.Count)
}

type failingRepo struct{}

func (failingRepo) PendingForCreator(context.Context, uuid.UUID) ([]PendingRow, error) {
	return nil, errors.New("db down")
}

func (failingRepo) CountPendingForCreator(context.Context, uuid.UUID) (int64, error) {
	return 0, errors.New("db down")
}

func TestProjectionStoreFailures(t *testing.T) {
	svc, err := NewService(failingRepo{})
	require.NoError(t, err)

	_, err = svc.PendingForUser(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOperationFailed))
	_, err = svc.Badge(context.Background(), uuid.New())
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeOperationFailed))
	_, err = svc.Badge(context.Background(), uuid.Nil)
	require.True(t, pkgerrors.IsCode(err, pkgerrors.CodeUnauthorized))

	_, err = NewService(nil)
	require.Error(t, err)
}
