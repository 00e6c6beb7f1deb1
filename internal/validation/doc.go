// Package validation checks request bodies against the JSON Schemas embedded
// in the binary and reports failures as a list of located details, the shape
// the HTTP layer returns with status 422.
package validation
