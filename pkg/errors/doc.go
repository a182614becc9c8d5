// Package errors provides structured error handling with error codes for the
// switch-user token packages.
//
// # Overview
//
// Every failure that crosses a package boundary is an *Error carrying an
// ErrorCode. Two codes belong to the token core:
//
//   - ErrCodeInvalidConfiguration: a token was constructed in violation of
//     its contract (empty firewall name, missing original token).
//   - ErrCodeCorruptTokenData: a persisted token could not be decoded.
//     Callers should treat the session as invalid and re-authenticate.
//
// # Basic Usage
//
//	err := errors.InvalidConfiguration("firewall name must not be empty")
//
//	err := errors.CorruptTokenData(jsonErr, "malformed token payload")
//
//	if errors.IsCode(err, errors.ErrCodeCorruptTokenData) {
//		// drop the session
//	}
//
// # HTTP Integration
//
//	status := errors.MapErrorCodeToHTTPStatus(errors.GetCode(err))
//
// # Error Wrapping
//
// Wrapped errors work with the standard library:
//
//	var e *errors.Error
//	if stderrors.As(err, &e) {
//		slog.Error("token failure", "code", e.Code, "err", e.Err)
//	}
package errors
