package history

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
)

func openHistoryDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", t.Name())), &gorm.Config{})
	require.NoError(t, err)
	require.NoError(t, conn.AutoMigrate(&models.HelpRequest{}, &models.Offer{}))
	return conn
}

func seedMatch(t *testing.T, conn *gorm.DB, creator, helper uuid.UUID, offerStatus enums.OfferStatus, at time.Time) (uuid.UUID, uuid.UUID) {
	t.Helper()
	requestID, offerID := uuid.New(), uuid.New()
	require.NoError(t, conn.Create(&models.HelpRequest{
		ID: requestID, Title: "Ride to Evanston", Description: "Sunday", Category: enums.RequestCategoryRides,
		CreatorID: creator, CreatorEmail: "creator@u.northwestern.edu", CreatorName: "Creator",
		CreatorYear: enums.YearJunior, CreatorMajor: "Math", Status: enums.RequestStatusAccepted,
		CreatedAt: at, UpdatedAt: at,
	}).Error)
	require.NoError(t, conn.Create(&models.Offer{
		ID: offerID, RequestID: requestID, HelperID: helper, HelperEmail: "helper@u.northwestern.edu",
		HelperName: "Helper", HelperYear: enums.YearSenior, HelperMajor: "Bio",
		Status: offerStatus, CreatedAt: at, UpdatedAt: at,
	}).Error)
	return requestID, offerID
}

func TestHistoryBothSides(t *testing.T) {
	conn := openHistoryDB(t)
	svc, err := NewService(NewRepository(conn))
	require.NoError(t, err)

	creator, helper := uuid.New(), uuid.New()
	base := time.Date(2026, 9, 10, 15, 0, 0, 0, time.UTC)
	_, olderOffer := seedMatch(t, conn, creator, helper, enums.OfferStatusAccepted, base)
	_, newerOffer := seedMatch(t, conn, creator, helper, enums.OfferStatusAccepted, base.Add(time.Hour))
	seedMatch(t, conn, creator, helper, enums.OfferStatusPending, base.Add(2*time.Hour))
	seedMatch(t, conn, creator, uuid.New(), enums.OfferStatusDeclined, base.Add(3*time.Hour))

	received, err := svc.ReceivedByUser(context.Background(), creator)
	require.NoError(t, err)
	require.Len(t, received, 2)
	require.Equal(t, newerOffer, received[0].OfferID)
	require.Equal(t, olderOffer, received[1].OfferID)
	require.Equal(t, "helper@u.northwestern.edu", received[0].HelperEmail)
	require.Equal(t, "creator@u.northwestern.edu", received[0].CreatorEmail)

	given, err := svc.GivenByUser(context.Background(), helper)
	require.NoError(t, err)
	require.Len(t, given, 2)
	require.Equal(t, newerOffer, given[0].OfferID)

	none, err := svc.GivenByUser(context.Background(), creator)
	require.NoError(t, err)
	require.Empty(t, none)
}
