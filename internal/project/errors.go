// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Craftsmen Platform Contributors

package project

import (
	"github.com/samber/oops"
)

// Error codes returned by this package.
const (
	CodeInvalidTitle           = "PROJECT_INVALID_TITLE"
	CodeInvalidDescription     = "PROJECT_INVALID_DESCRIPTION"
	CodeInvalidBudget          = "PROJECT_INVALID_BUDGET"
	CodeBudgetOrder            = "PROJECT_BUDGET_MIN_EXCEEDS_MAX"
	CodeInvalidSchedule        = "PROJECT_INVALID_SCHEDULE"
	CodeInvalidCustomer        = "PROJECT_INVALID_CUSTOMER"
	CodeInvalidState           = "PROJECT_INVALID_STATE"
	CodeInvalidStatus          = "PROJECT_INVALID_STATUS"
	CodeInvalidReason          = "PROJECT_INVALID_REASON"
	CodeNotFound               = "PROJECT_NOT_FOUND"
	CodeForbidden              = "PROJECT_FORBIDDEN"
	CodeOfferNotFound          = "PROJECT_OFFER_NOT_FOUND"
	CodeOfferNotPending        = "PROJECT_OFFER_NOT_PENDING"
	CodeOfferAlreadyAccepted   = "PROJECT_OFFER_ALREADY_ACCEPTED"
	CodeOwnProjectOffer        = "PROJECT_OWN_PROJECT_OFFER"
	CodeDuplicateOffer         = "PROJECT_DUPLICATE_OFFER"
	CodeInvalidOffer           = "PROJECT_INVALID_OFFER"
	CodeOfferCurrencyMismatch  = "PROJECT_OFFER_CURRENCY_MISMATCH"
	CodeInvalidTimeline        = "PROJECT_INVALID_TIMELINE"
	CodeInvalidImage           = "PROJECT_INVALID_IMAGE"
	CodeImageNotFound          = "PROJECT_IMAGE_NOT_FOUND"
	CodeTooManyImages          = "PROJECT_TOO_MANY_IMAGES"
	CodeAlreadyDeleted         = "PROJECT_ALREADY_DELETED"
	CodeInvalidFilter          = "PROJECT_INVALID_FILTER"
	CodeConcurrentModification = "CONCURRENT_MODIFICATION"
)

func errInvalidState(op string, status Status) error {
	return oops.Code(CodeInvalidState).
		With("operation", op).
		With("status", string(status)).
		Errorf("cannot %s a project in status %s", op, status)
}

func errOfferNotFound(id string) error {
	return oops.Code(CodeOfferNotFound).With("offer_id", id).Errorf("offer not found")
}
