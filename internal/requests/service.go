package requests

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
	"github.com/angelmondragon/campusaid-backend/pkg/pagination"
)

// Service drives the help request state machine.
type Service interface {
	Create(ctx context.Context, creatorID uuid.UUID, input CreateRequestInput) (*RequestDTO, error)
	Get(ctx context.Context, id, viewerID uuid.UUID) (*RequestDTO, error)
	ListOpen(ctx context.Context, viewerID uuid.UUID, input ListOpenInput) (*ListResult, error)
	ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]RequestDTO, error)
	SetStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID) (*RequestDTO, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type profileReader interface {
	FindByOwner(ctx context.Context, ownerID uuid.UUID) (*models.Profile, error)
}

// acceptedHelperChecker answers whether helperID holds the accepted offer on a request.
type acceptedHelperChecker interface {
	HasAcceptedOffer(ctx context.Context, requestID, helperID uuid.UUID) (bool, error)
}

type ServiceParams struct {
	Repo     Repository
	Profiles profileReader
	Accepted acceptedHelperChecker
	Tx       txRunner
	Outbox   outbox.Emitter
	Now      func() time.Time
}

type service struct {
	repo     Repository
	profiles profileReader
	accepted acceptedHelperChecker
	tx       txRunner
	outbox   outbox.Emitter
	now      func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("requests repository required")
	}
	if params.Profiles == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Accepted == nil {
		return nil, fmt.Errorf("accepted offer lookup required")
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
		profiles: params.Profiles,
		accepted: params.Accepted,
		tx:       params.Tx,
		outbox:   params.Outbox,
		now:      now,
	}, nil
}

func (s *service) Create(ctx context.Context, creatorID uuid.UUID, input CreateRequestInput) (*RequestDTO, error) {
	fields, details := input.normalize()
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	profile, err := s.profiles.FindByOwner(ctx, creatorID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeOnboardingRequired, "complete your profile first")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load creator profile")
	}

	now := s.now()
	request := &models.HelpRequest{
		ID:           uuid.New(),
		Title:        fields.Title,
		Description:  fields.Description,
		Category:     fields.Category,
		CreatorID:    creatorID,
		CreatorEmail: profile.Email,
		CreatorName:  profile.Name,
		CreatorYear:  profile.Year,
		CreatorMajor: profile.Major,
		Status:       enums.RequestStatusOpen,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).Create(ctx, request); err != nil {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create request")
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestCreated,
			AggregateType: enums.AggregateHelpRequest,
			AggregateID:   request.ID,
			Actor:         &outbox.ActorRef{UserID: creatorID},
			OccurredAt:    now,
			Data: payloads.RequestCreatedEvent{
				RequestID: request.ID,
				CreatorID: creatorID,
				Category:  request.Category,
				Title:     request.Title,
			},
		})
	})
	if err != nil {
		return nil, asOperationFailed(err, "create request")
	}

	dto := FromModel(request, true)
	return &dto, nil
}

func (s *service) Get(ctx context.Context, id, viewerID uuid.UUID) (*RequestDTO, error) {
	request, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load request")
	}

	reveal, err := s.revealCreatorEmail(ctx, request, viewerID)
	if err != nil {
		return nil, err
	}
	dto := FromModel(request, reveal)
	return &dto, nil
}

func (s *service) ListOpen(ctx context.Context, viewerID uuid.UUID, input ListOpenInput) (*ListResult, error) {
	params := listOpenParams{Limit: input.Limit}
	if category := strings.TrimSpace(input.Category); category != "" {
		parsed, err := enums.ParseRequestCategory(category)
		if err != nil {
			return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"category": "is not a known category"})
		}
		params.Category = &parsed
	}
	if input.Cursor != "" {
		cursor, err := pagination.Parse(input.Cursor)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid cursor")
		}
		params.Cursor = cursor
	}

	rows, next, err := s.repo.ListOpen(ctx, params)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list open requests")
	}

	result := &ListResult{Items: make([]RequestDTO, 0, len(rows))}
	for i := range rows {
		// open requests have no accepted helper yet
		result.Items = append(result.Items, FromModel(&rows[i], rows[i].CreatorID == viewerID))
	}
	if next != nil {
		result.NextCursor = next.Encode()
	}
	return result, nil
}

func (s *service) ListByCreator(ctx context.Context, creatorID uuid.UUID) ([]RequestDTO, error) {
	rows, err := s.repo.ListByCreator(ctx, creatorID)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "list my requests")
	}
	items := make([]RequestDTO, 0, len(rows))
	for i := range rows {
		items = append(items, FromModel(&rows[i], true))
	}
	return items, nil
}

func (s *service) SetStatus(ctx context.Context, id uuid.UUID, status string, actorID uuid.UUID) (*RequestDTO, error) {
	next, err := enums.ParseRequestStatus(strings.ToLower(strings.TrimSpace(status)))
	if err != nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"status": "must be one of open, accepted, closed"})
	}

	var updated *models.HelpRequest
	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		request, err := repo.FindByIDForUpdate(ctx, id)
		if err != nil {
			if db.IsNotFound(err) {
				return pkgerrors.New(pkgerrors.CodeNotFound, "request not found")
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load request")
		}
		if request.CreatorID != actorID {
			return pkgerrors.New(pkgerrors.CodeForbidden, "only the creator can change the status")
		}
		// accepted is reached only through offer acceptance.
		if next != enums.RequestStatusClosed || !request.Status.CanTransitionTo(next) {
			return InvalidTransition(request.Status, next)
		}

		now := s.now()
		if err := repo.UpdateStatus(ctx, id, request.Status, next, now); err != nil {
			if db.IsNotFound(err) {
				return InvalidTransition(request.Status, next)
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "update request status")
		}

		from := request.Status
		request.Status = next
		request.UpdatedAt = now
		updated = request

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventRequestStatusChanged,
			AggregateType: enums.AggregateHelpRequest,
			AggregateID:   id,
			Actor:         &outbox.ActorRef{UserID: actorID},
			OccurredAt:    now,
			Data: payloads.RequestStatusChangedEvent{
				RequestID: id,
				CreatorID: request.CreatorID,
				From:      from,
				To:        next,
			},
		})
	})
	if err != nil {
		return nil, asOperationFailed(err, "set request status")
	}

	dto := FromModel(updated, true)
	return &dto, nil
}

func (s *service) revealCreatorEmail(ctx context.Context, request *models.HelpRequest, viewerID uuid.UUID) (bool, error) {
	if request.CreatorID == viewerID {
		return true, nil
	}
	if request.Status == enums.RequestStatusOpen || viewerID == uuid.Nil {
		return false, nil
	}
	ok, err := s.accepted.HasAcceptedOffer(ctx, request.ID, viewerID)
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "check accepted offer")
	}
	return ok, nil
}

// InvalidTransition builds the error returned for a disallowed status move.
func InvalidTransition(from, to enums.RequestStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeInvalidTransition, fmt.Sprintf("cannot move request from %s to %s", from, to)).
		WithDetails(map[string]string{"from": string(from), "to": string(to)})
}

func asOperationFailed(err error, message string) error {
	if pkgerrors.As(err) != nil {
		return err
	}
	return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, message)
}
