// Package responses writes the JSON envelopes every campusaid endpoint returns.
package responses

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	pkgerrors "github.com/angelmondragon/campusaid-backend/pkg/errors"
	"github.com/angelmondragon/campusaid-backend/pkg/logger"
	"github.com/angelmondragon/campusaid-backend/pkg/types"
)

// WriteSuccess answers 200 with {"data": data}.
func WriteSuccess(w http.ResponseWriter, data any) {
	WriteSuccessStatus(w, http.StatusOK, data)
}

func WriteSuccessStatus(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, types.SuccessEnvelope{Data: data})
}

// WriteError answers with the status registered for err's code and logs err
// once: 5xx at error level with a stack, anything else as a warning.
func WriteError(ctx context.Context, logg *logger.Logger, w http.ResponseWriter, err error) {
	if err == nil {
		err = errors.New("unknown error")
	}
	status, apiErr := publicError(err)
	apiErr.RequestID = w.Header().Get(types.RequestIDHeader)

	if logg != nil {
		ctx = logg.WithFields(ctx, pkgerrors.Dump(err).Fields())
		if status >= http.StatusInternalServerError {
			logg.Error(ctx, "request.error", err)
		} else {
			logg.Warn(logg.WithField(ctx, "error", err.Error()), "request.rejected")
		}
	}
	writeJSON(w, status, types.ErrorEnvelope{Error: apiErr})
}

// publicError strips err down to what a client may see. Untyped errors become
// INTERNAL_ERROR, and only user-facing codes keep their own message.
func publicError(err error) (int, types.APIError) {
	typed := pkgerrors.As(err)
	if typed == nil {
		typed = pkgerrors.Wrap(pkgerrors.CodeInternal, err, "unexpected error")
	}
	meta := pkgerrors.MetadataFor(typed.Code())

	out := types.APIError{Code: string(typed.Code()), Message: meta.PublicMessage}
	if msg := typed.Message(); msg != "" && pkgerrors.UserFacing(typed.Code()) {
		out.Message = msg
	}
	if meta.DetailsAllowed {
		out.Details = typed.Details()
	}
	return meta.HTTPStatus, out
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		log.Error().Err(err).Int("status", status).Msg("response.encode_failed")
	}
}
