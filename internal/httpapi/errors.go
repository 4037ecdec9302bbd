// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package httpapi

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/samber/oops"

	"github.com/craftsmenplatform/craftsmen/internal/auth"
	"github.com/craftsmenplatform/craftsmen/internal/project"
	"github.com/craftsmenplatform/craftsmen/pkg/errutil"
)

// Transport-level error codes.
const (
	CodeInvalidRequest   = "INVALID_REQUEST"
	CodeValidationFailed = "VALIDATION_FAILED"
	CodeUnauthenticated  = "UNAUTHENTICATED"
	CodeForbidden        = "FORBIDDEN"
	CodeRateLimited      = "RATE_LIMITED"
	CodeInternal         = "INTERNAL_ERROR"
)

var statusByCode = map[string]int{
	CodeInvalidRequest:   http.StatusBadRequest,
	CodeValidationFailed: http.StatusBadRequest,
	CodeUnauthenticated:  http.StatusUnauthorized,
	CodeForbidden:        http.StatusForbidden,
	CodeRateLimited:      http.StatusTooManyRequests,
	"INVALID_ID":         http.StatusBadRequest,

	auth.CodeInvalidCredentials:        http.StatusUnauthorized,
	auth.CodeTokenInvalid:              http.StatusUnauthorized,
	auth.CodeTokenExpired:              http.StatusUnauthorized,
	auth.CodeTokenRevoked:              http.StatusUnauthorized,
	auth.CodeInvalidAccessToken:        http.StatusUnauthorized,
	auth.CodeAccountDeactivated:        http.StatusForbidden,
	auth.CodeAccountLocked:             http.StatusLocked,
	auth.CodeEmailTaken:                http.StatusConflict,
	auth.CodeTokenAlreadyRevoked:       http.StatusConflict,
	auth.CodeTokenAlreadyExpired:       http.StatusConflict,
	auth.CodeNoActiveTokens:            http.StatusConflict,
	auth.CodeAccountAlreadyLocked:      http.StatusConflict,
	auth.CodeAccountNotLocked:          http.StatusConflict,
	auth.CodeAccountAlreadyActive:      http.StatusConflict,
	auth.CodeAccountAlreadyDeleted:     http.StatusConflict,
	"AUTH_ACCOUNT_ALREADY_DEACTIVATED": http.StatusConflict,
	"AUTH_EMAIL_ALREADY_VERIFIED":      http.StatusConflict,
	"AUTH_EMPTY_PASSWORD":              http.StatusBadRequest,
	"AUTH_TOKEN_EMPTY":                 http.StatusBadRequest,
	auth.CodeWeakPassword:              http.StatusBadRequest,

	project.CodeForbidden:              http.StatusForbidden,
	project.CodeOwnProjectOffer:        http.StatusForbidden,
	project.CodeInvalidState:           http.StatusConflict,
	project.CodeOfferNotPending:        http.StatusConflict,
	project.CodeOfferAlreadyAccepted:   http.StatusConflict,
	project.CodeDuplicateOffer:         http.StatusConflict,
	project.CodeAlreadyDeleted:         http.StatusConflict,
	project.CodeTooManyImages:          http.StatusUnprocessableEntity,
	project.CodeOfferCurrencyMismatch:  http.StatusUnprocessableEntity,
	project.CodeBudgetOrder:            http.StatusBadRequest,
	project.CodeConcurrentModification: http.StatusConflict,

	// Server-side faults whose names look like input errors.
	"AUTH_INVALID_HASH":          http.StatusInternalServerError,
	"AUTH_INVALID_PASSWORD_HASH": http.StatusInternalServerError,
	"AUTH_INVALID_CONFIG":        http.StatusInternalServerError,
	"AUTH_INVALID_POLICY":        http.StatusInternalServerError,
	"PROJECT_INVALID_CONFIG":     http.StatusInternalServerError,
	"PROJECT_INVALID_ID":         http.StatusInternalServerError,
}

// StatusFor maps an error code to an HTTP status. Codes not listed fall back
// on naming conventions; anything unrecognized is a 500.
func StatusFor(code string) int {
	if status, ok := statusByCode[code]; ok {
		return status
	}
	switch {
	case code == "":
		return http.StatusInternalServerError
	case strings.HasSuffix(code, "_NOT_FOUND"):
		return http.StatusNotFound
	case strings.HasPrefix(code, "MONEY_"), strings.Contains(code, "_INVALID_"):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type errorBody struct {
	Code        string            `json:"code"`
	Message     string            `json:"message"`
	Fields      map[string]string `json:"fields,omitempty"`
	LockedUntil *time.Time        `json:"lockedUntil,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

// writeError renders err as a JSON error response. Server-side failures are
// logged and reported with a generic message.
func writeError(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	code := errutil.Code(err)
	status := StatusFor(code)

	body := errorBody{Code: code, Message: publicMessage(err)}
	if status >= http.StatusInternalServerError {
		errutil.LogErrorContext(r.Context(), logger, "request failed", err)
		body = errorBody{Code: CodeInternal, Message: "internal server error"}
	}
	if until, ok := auth.LockedUntil(err); ok {
		body.LockedUntil = &until
	}
	writeJSON(w, status, errorResponse{Error: body})
}

func writeCodeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, errorResponse{Error: errorBody{Code: code, Message: message}})
}

// publicMessage returns the outermost message of an oops error without the
// wrapped causes, which may carry storage details.
func publicMessage(err error) string {
	if oopsErr, ok := oops.AsOops(err); ok {
		if msg := oopsErr.Error(); msg != "" {
			if i := strings.Index(msg, ": "); i > 0 {
				return msg[:i]
			}
			return msg
		}
	}
	return err.Error()
}
