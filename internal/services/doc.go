// Package services contains the implementation of all services used by the converter.
//
// The services are responsible for interacting with the database, the broker and the filesystem, and for anything
// that is not strictly HTTP-related. They are injected into the web server and used to handle requests dispatched by it.
//
// Current services include:
//   - ConverterService:
//     Records conversion requests and runs them, one at a time, through ngp.Convert.
//   - AMPQService:
//     Is a ampq 0.9.1 broker-agnostic handler that consumes conversion jobs from 'convert-in' and announces
//     finished conversions on 'convert-out'
package services
