package controllers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/angelmondragon/campusaid-backend/api/middleware"
	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
)

func requireUserID(r *http.Request) (uuid.UUID, error) {
	userID, ok := middleware.UserUUIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing user context")
	}
	return userID, nil
}
