// Package web contains the HTTP front of the converter.
//
// The web server accepts conversion requests for scene directories that already exist under the data directory,
// records them through the ConverterService and hands them to the broker. It also reports scene records and queue
// positions. Request structs live in the common package and are validated in RequestValidation.go.
package web
