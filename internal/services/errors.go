package services

// ServiceError is a domain precondition failure. Code is a stable
// machine-readable identifier that the HTTP layer maps straight onto
// API error codes, so clients can render the right message.
type ServiceError struct {
	Code    string
	Message string
}

func (e *ServiceError) Error() string {
	return e.Message
}

// Precondition errors. Each names the exact check that failed; none of
// them ever leaves a partial mutation behind.
var (
	ErrNotYourTurn        = &ServiceError{Code: "NOT_YOUR_TURN", Message: "it is not this player's turn"}
	ErrAlreadyVoted       = &ServiceError{Code: "ALREADY_VOTED", Message: "player has already voted this round"}
	ErrMapUnavailable     = &ServiceError{Code: "MAP_UNAVAILABLE", Message: "map is not available"}
	ErrInvalidTransition  = &ServiceError{Code: "INVALID_TRANSITION", Message: "illegal session state transition"}
	ErrInvalidState       = &ServiceError{Code: "INVALID_STATE", Message: "session is not accepting this action"}
	ErrPreconditionFailed = &ServiceError{Code: "PRECONDITION_FAILED", Message: "operation precondition not met"}
	ErrTokenExpired       = &ServiceError{Code: "TOKEN_EXPIRED", Message: "access token has expired"}
	ErrAddressMismatch    = &ServiceError{Code: "ADDRESS_MISMATCH", Message: "request address does not match the locked address"}
)
