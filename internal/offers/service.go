package offers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/internal/requests"
	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
)

// Service drives the offer lifecycle and the request transitions it implies.
type Service interface {
	Create(ctx context.Context, requestID, helperID uuid.UUID) (*OfferDTO, error)
	Get(ctx context.Context, requestID, offerID, viewerID uuid.UUID) (*OfferDTO, error)
	ListByRequest(ctx context.Context, requestID, viewerID uuid.UUID) ([]OfferDTO, error)
	FindMine(ctx context.Context, requestID, helperID uuid.UUID) (*OfferDTO, error)
	Accept(ctx context.Context, requestID, offerID, actorID uuid.UUID) (*OfferDTO, error)
	Decline(ctx context.Context, requestID, offerID, actorID uuid.UUID) (*OfferDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileReader interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
}

type ServiceParams struct {
	Repo     Repository
	Requests requests.Repository
	Profiles profileReader
	Tx       txRunner
	Outbox   outbox.Emitter
	Now      func() time.Time
}

type service struct {
	repo     Repository
	requests requests.Repository
	profiles profileReader
	tx       txRunner
	outbox   outbox.Emitter
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("offers repository required")
	}
	if params.Requests == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:     params.Repo,
		requests: params.Requests,
		profiles: params.Profiles,
		tx:       params.Tx,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, requestID, helperID uuid.UUID) (*OfferDTO, error) {
	profile, err := s.profiles.FindByOwner(ctx, helperID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeOnboardingRequired, "complete your profile first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load helper profile")
	}

	var offer *models.Offer
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, err := s.lockRequest(ctx, tx, requestID)
		if err != nil {
			return err
		}
		if request.Status != enums.RequestStatusOpen {
			return pkgerrors.New(pkgerrors.CodeRequestNotOpen, "request is no longer open")
		}
		if request.CreatorID == helperID {
			return pkgerrors.New(pkgerrors.CodeSelfOffer, "you cannot offer help on your own request")
		}

		repo := s.repo.WithTx(tx)
		if _, err := repo.FindActiveByHelper(ctx, requestID, helperID); err == nil {
			return duplicateOffer()
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "check existing offer")
		}

		now := s.now()
		offer = &models.Offer{
			ID:              uuid.New(),
			RequestID:       requestID,
			HelperID:        helperID,
			HelperEmail:     profile.Email,
			HelperName:      profile.Name,
			HelperYear:      profile.Year,
			HelperMajor:     profile.Major,
			HelperAvatarRef: profile.AvatarRef,
			Status:          enums.OfferStatusPending,
			CreatedAt:       now,
			UpdatedAt:       now,
		}
		if err := repo.Create(ctx, offer); err != nil {
			if db.IsUniqueViolation(err, activeOfferIndex) || errors.Is(err, gorm.ErrDuplicatedKey) {
				return duplicateOffer()
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create offer")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferCreated,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &outbox.ActorRef{UserID: helperID},
			OccurredAt:    now,
			Data: payloads.OfferCreatedEvent{
				OfferID:   offer.ID,
				RequestID: requestID,
				HelperID:  helperID,
				CreatorID: request.CreatorID,
			},
		})
	})
	if err != nil {
		return nil, asOperationFailed(err, "create offer")
	}

	dto := FromModel(offer, true)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, requestID, offerID, viewerID uuid.UUID) (*OfferDTO, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	offer, err := s.repo.FindByID(ctx, requestID, offerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load offer")
	}
	dto := FromModel(offer, revealHelperEmail(offer, request.CreatorID, viewerID))
	return &dto, nil
}

func (s *service) ListByRequest(ctx context.Context, requestID, viewerID uuid.UUID) ([]OfferDTO, error) {
	request, err := s.loadRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	rows, err := s.repo.ListByRequest(ctx, requestID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list offers")
	}
	items := make([]OfferDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i], revealHelperEmail(&rows[i], request.CreatorID, viewerID)))
	}
	return items, nil
}

func (s *service) FindMine(ctx context.Context, requestID, helperID uuid.UUID) (*OfferDTO, error) {
	offer, err := s.repo.FindActiveByHelper(ctx, requestID, helperID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "no active offer on this request")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load offer")
	}
	dto := FromModel(offer, true)
	return &dto, nil
}

// Accept moves the offer and its request to accepted in one transaction. Other pending offers stay pending.
func (s *service) Accept(ctx context.Context, requestID, offerID, actorID uuid.UUID) (*OfferDTO, error) {
	var accepted *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, offer, err := s.lockForDecision(ctx, tx, requestID, offerID, actorID, enums.OfferStatusAccepted)
		if err != nil {
			return err
		}
		if request.Status != enums.RequestStatusOpen {
			return pkgerrors.New(pkgerrors.CodeRequestNotOpen, "request is no longer open")
		}

		now := s.now()
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusAccepted, now); err != nil {
			if db.IsUniqueViolation(err, acceptedOfferIndex) {
				return pkgerrors.New(pkgerrors.CodeRequestNotOpen, "request already has an accepted offer")
			}
			if db.IsNotFound(err) {
				return invalidOfferTransition(offer.Status, enums.OfferStatusAccepted)
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "accept offer")
		}
		if err := s.requests.WithTx(tx).UpdateStatus(ctx, requestID, enums.RequestStatusOpen, enums.RequestStatusAccepted, now); err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeRequestNotOpen, "request is no longer open")
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "accept request")
		}

		offer.Status = enums.OfferStatusAccepted
		offer.UpdatedAt = now
		accepted = offer

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferAccepted,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			OccurredAt:    now,
			Data: payloads.OfferAcceptedEvent{
				OfferID:   offer.ID,
				RequestID: requestID,
				HelperID:  offer.HelperID,
				CreatorID: request.CreatorID,
			},
		})
	})
	if err != nil {
		return nil, asOperationFailed(err, "accept offer")
	}

	dto := FromModel(accepted, true)
	return &dto, nil
}

func (s *service) Decline(ctx context.Context, requestID, offerID, actorID uuid.UUID) (*OfferDTO, error) {
	var declined *models.Offer
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		request, offer, err := s.lockForDecision(ctx, tx, requestID, offerID, actorID, enums.OfferStatusDeclined)
		if err != nil {
			return err
		}

		now := s.now()
		if err := s.repo.WithTx(tx).UpdateStatus(ctx, offer.ID, enums.OfferStatusPending, enums.OfferStatusDeclined, now); err != nil {
			if db.IsNotFound(err) {
				return invalidOfferTransition(offer.Status, enums.OfferStatusDeclined)
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "decline offer")
		}

		offer.Status = enums.OfferStatusDeclined
		offer.UpdatedAt = now
		declined = offer

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOfferDeclined,
			AggregateType: enums.AggregateOffer,
			AggregateID:   offer.ID,
			Actor:         &outbox.ActorRef{UserID: actorID},
			OccurredAt:    now,
			Data: payloads.OfferDeclinedEvent{
				OfferID:   offer.ID,
				RequestID: requestID,
				HelperID:  offer.HelperID,
				CreatorID: request.CreatorID,
			},
		})
	})
	if err != nil {
		return nil, asOperationFailed(err, "decline offer")
	}

	dto := FromModel(declined, false)
	return &dto, nil
}

// lockForDecision locks the request, checks the creator, then locks the offer and checks it is pending.
func (s *service) lockForDecision(ctx context.Context, tx *gorm.DB, requestID, offerID, actorID uuid.UUID, target enums.OfferStatus) (*models.HelpRequest, *models.Offer, error) {
	request, err := s.lockRequest(ctx, tx, requestID)
	if err != nil {
		return nil, nil, err
	}
	if request.CreatorID != actorID {
		return nil, nil, pkgerrors.New(pkgerrors.CodeForbidden, "only the request creator can decide on offers")
	}
	offer, err := s.repo.WithTx(tx).FindByIDForUpdate(ctx, requestID, offerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, nil, pkgerrors.New(pkgerrors.CodeNotFound, "offer not found")
		}
		return nil, nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load offer")
	}
	if offer.Status != enums.OfferStatusPending {
		return nil, nil, invalidOfferTransition(offer.Status, target)
	}
	return request, offer, nil
}

func (s *service) lockRequest(ctx context.Context, tx *gorm.DB, requestID uuid.UUID) (*models.HelpRequest, error) {
	request, err := s.requests.WithTx(tx).FindByIDForUpdate(ctx, requestID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load request")
	}
	return request, nil
}

func (s *service) loadRequest(ctx context.Context, requestID uuid.UUID) (*models.HelpRequest, error) {
	request, err := s.requests.FindByID(ctx, requestID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load request")
	}
	return request, nil
}

func duplicateOffer() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeDuplicateOffer, "you already have an active offer on this request")
}

func invalidOfferTransition(from, to enums.OfferStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move offer from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

func asOperationFailed(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, message)
}
