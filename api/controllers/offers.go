package controllers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/api/responses"
	"github.com/angelmondragon/campusaid-backend/api/validators"
	"github.com/angelmondragon/campusaid-backend/internal/offers"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
)

func OfferList(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		items, err := svc.ListByRequest(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, items)
	}
}

// OfferCreate records the caller's offer to help on a request. The body is ignored.
func OfferCreate(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.Create(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccessStatus(w, http.StatusCreated, offer)
	}
}

// OfferMine returns the caller's offer on a request, or null when none exists.
func OfferMine(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		offer, err := svc.FindMine(r.Context(), requestID, userID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}

func OfferDetail(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return offerAction(svc, logg, func(ctx context.Context, requestID, offerID, userID uuid.UUID) (*offers.OfferDTO, error) {
		return svc.Get(ctx, requestID, offerID, userID)
	})
}

func OfferAccept(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return offerAction(svc, logg, func(ctx context.Context, requestID, offerID, userID uuid.UUID) (*offers.OfferDTO, error) {
		return svc.Accept(ctx, requestID, offerID, userID)
	})
}

func OfferDecline(svc offers.Service, logg *logger.Logger) http.HandlerFunc {
	return offerAction(svc, logg, func(ctx context.Context, requestID, offerID, userID uuid.UUID) (*offers.OfferDTO, error) {
		return svc.Decline(ctx, requestID, offerID, userID)
	})
}

type offerFunc func(ctx context.Context, requestID, offerID, userID uuid.UUID) (*offers.OfferDTO, error)

func offerAction(svc offers.Service, logg *logger.Logger, fn offerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "offer service unavailable"))
			return
		}
		userID, err := requireUserID(r)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		requestID, err := validators.ParseUUIDParam(r, "requestId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		offerID, err := validators.ParseUUIDParam(r, "offerId")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil {
			ctx = logg.WithOfferID(logg.WithHelpRequestID(ctx, requestID.String()), offerID.String())
		}
		offer, err := fn(ctx, requestID, offerID, userID)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, offer)
	}
}
