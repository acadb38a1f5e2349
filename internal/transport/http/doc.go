// Package http implements the HTTP surface of the license authority.
//
// Handlers are thin: they decode and validate the request, call the
// authority, and render the outcome.
//
//	POST /api/license/validate       activate/validate, meters one use
//	POST /api/license/check-session  strict check, never meters
//	GET  /api/health                 liveness
//	GET  /api/health/ready           one license store round trip
//	GET  /api/version                build information
//	GET  /engine/*                   engine assets behind the session gate
//
// License outcomes, including refusals, are rendered as
// {valid, license, remainingDays, error, message}; the HTTP status follows
// the error code (see errors.HTTPStatus). Every successful license call sets
// the HttpOnly, SameSite=Strict session cookie. Infrastructure failures such
// as panics and unknown routes use RFC 7807 problem details instead.
package http
