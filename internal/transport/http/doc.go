// Package http implements the HTTP handlers of the dataset API. Handlers
// parse and validate parameters, call the service layer and render the
// result; all business logic stays in package services.
//
// # Routes
//
// Mounted under /api/v1 by the application:
//
//	GET /nation                      national series
//	GET /nation/threshold?cases=N    first date with more than N cases (&uf=XX for a state)
//	GET /states                      every state series
//	GET /states/{uf}                 one state
//	GET /states/{uf}/cities          the cities of one state
//	GET /cities/{code}               one city by municipality code
//	GET /summary/{granularity}       latest figures per entity
//	GET /health                      health with the last snapshot
//
// Slice endpoints accept ?format=csv. Every response carries the stale flag
// and the source date of the snapshot it was built from; CSV responses
// carry them in the X-Dataset-Stale and X-Dataset-Source-Date headers.
//
// # Errors
//
// Failures are rendered as RFC 7807 problem details by
// errors.ErrorHandler, which maps AppError types onto status codes.
package http
