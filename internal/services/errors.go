package services

import "errors"

// Expected failure conditions returned to callers. Match with errors.Is; the
// service layer never panics on these and never maps them to generic errors.
var (
	// Not found.
	ErrContractNotFound = errors.New("contract not found")
	ErrVersionNotFound  = errors.New("contract version not found")
	ErrUserNotFound     = errors.New("user not found")

	// Conflicts.
	ErrAlreadySigned     = errors.New("signer already signed this version")
	ErrParticipantExists = errors.New("participant already added to contract")

	// State errors.
	ErrContractNotModifiable = errors.New("contract is not open for modification")
	ErrCannotSign            = errors.New("contract is not open for signing")
	ErrVersionNotPending     = errors.New("current version is not pending signature")
	ErrInvalidRole           = errors.New("creator can only hold the initiator role")

	// Authorization.
	ErrUnauthorized = errors.New("requester is not authorized for this contract")

	// External failure during the completion path. Wrapped around the gateway
	// error; the whole sign transaction rolls back when it occurs.
	ErrNotarizationFailed = errors.New("failed to notarize signed version")
)
