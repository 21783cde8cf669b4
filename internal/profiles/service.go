package profiles

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/angelmondragon/campusaid-backend/pkg/db"
	"github.com/angelmondragon/campusaid-backend/pkg/db/models"
	"github.com/angelmondragon/campusaid-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox"
	"github.com/angelmondragon/campusaid-backend/pkg/outbox/payloads"
)

// Service manages the one-per-user onboarding profile.
type Service interface {
	Get(ctx context.Context, ownerID uuid.UUID) (*ProfileDTO, error)
	Create(ctx context.Context, ownerID uuid.UUID, req ProfileRequest) (*ProfileDTO, error)
	Update(ctx context.Context, ownerID uuid.UUID, req ProfileRequest) (*ProfileDTO, error)
	UploadAvatar(ctx context.Context, ownerID uuid.UUID, filename string, data []byte) (*AvatarUpload, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type identityReader interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.User, error)
}

type blobStore interface {
	Put(ctx context.Context, object, contentType string, data []byte) (string, error)
}

// ServiceParams bundles the profile service dependencies.
type ServiceParams struct {
	Repo           Repository
	Users          identityReader
	Tx             txRunner
	Outbox         outbox.Emitter
	Blobs          blobStore
	MaxAvatarBytes int64
	Now            func() time.Time
}

type service struct {
	repo           Repository
	users          identityReader
	tx             txRunner
	outbox         outbox.Emitter
	blobs          blobStore
	maxAvatarBytes int64
	now            func() time.Time
}

func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("profiles repository required")
	}
	if params.Users == nil {
		return nil, fmt.Errorf("users repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.Blobs == nil {
		return nil, fmt.Errorf("blob store required")
	}
	if params.MaxAvatarBytes <= 0 {
		return nil, fmt.Errorf("max avatar bytes must be positive")
	}
	now := params.Now
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &service{
		repo:           params.Repo,
		users:          params.Users,
		tx:             params.Tx,
		outbox:         params.Outbox,
		blobs:          params.Blobs,
		maxAvatarBytes: params.MaxAvatarBytes,
		now:            now,
	}, nil
}

func (s *service) Get(ctx context.Context, ownerID uuid.UUID) (*ProfileDTO, error) {
	profile, err := s.repo.FindByOwner(ctx, ownerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load profile")
	}
	return FromModel(profile), nil
}

func (s *service) Create(ctx context.Context, ownerID uuid.UUID, req ProfileRequest) (*ProfileDTO, error) {
	fields, details := req.Normalize()
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	user, err := s.users.FindByID(ctx, ownerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "identity not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "load identity")
	}

	// an omitted avatar falls back to the identity provider photo
	avatar := fields.AvatarRef
	if avatar == nil && !fields.ClearAvatar {
		avatar = user.AvatarRef
	}

	now := s.now()
	profile := &models.Profile{
		OwnerID:   ownerID,
		Name:      fields.Name,
		Year:      fields.Year,
		Major:     fields.Major,
		AvatarRef: avatar,
		Email:     user.Email,
		CreatedAt: now,
		UpdatedAt: now,
	}

	err = s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if _, err := repo.FindByOwner(ctx, ownerID); err == nil {
			return pkgerrors.New(pkgerrors.CodeAlreadyExists, "profile already exists")
		} else if !db.IsNotFound(err) {
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "check existing profile")
		}

		if err := repo.Create(ctx, profile); err != nil {
			if db.IsUniqueViolation(err, "") {
				return pkgerrors.New(pkgerrors.CodeAlreadyExists, "profile already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create profile")
		}

		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventProfileCreated,
			AggregateType: enums.AggregateProfile,
			AggregateID:   ownerID,
			Actor:         &outbox.ActorRef{UserID: ownerID},
			OccurredAt:    now,
			Data: payloads.ProfileCreatedEvent{
				OwnerID: ownerID,
				Year:    profile.Year,
				Major:   profile.Major,
			},
		})
	})
	if err != nil {
		if pkgerrors.As(err) == nil {
			err = pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "create profile")
		}
		return nil, err
	}
	return FromModel(profile), nil
}

func (s *service) Update(ctx context.Context, ownerID uuid.UUID, req ProfileRequest) (*ProfileDTO, error) {
	fields, details := req.Normalize()
	if len(details) > 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}

	if err := s.repo.Update(ctx, ownerID, fields, s.now()); err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "profile not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeOperationFailed, err, "update profile")
	}
	return s.Get(ctx, ownerID)
}

// UploadAvatar stores the image and returns its URL. It never touches the profile row.
func (s *service) UploadAvatar(ctx context.Context, ownerID uuid.UUID, filename string, data []byte) (*AvatarUpload, error) {
	if len(data) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{"file": "is required"})
	}
	if int64(len(data)) > s.maxAvatarBytes {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"file": fmt.Sprintf("must be at most %d bytes", s.maxAvatarBytes),
		})
	}
	contentType, ok := detectAvatarType(data)
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(map[string]string{
			"file": fmt.Sprintf("unsupported content type %s", contentType),
		})
	}

	object := avatarObjectPath(ownerID, s.now(), sanitizeFilename(filename, contentType))
	url, err := s.blobs.Put(ctx, object, contentType, data)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUploadFailed, err, "upload avatar")
	}

	return &AvatarUpload{
		URL:         url,
		Path:        object,
		ContentType: contentType,
		SizeBytes:   len(data),
	}, nil
}
