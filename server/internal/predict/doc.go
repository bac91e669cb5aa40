// Package predict owns the trained classifier and serves predictions.
//
// A Service is built once, trained once at startup with Train, and then only
// read. PredictFlights validates every flight against the training catalog,
// encodes the batch with the fixed feature schema, and classifies each row,
// memoising labels per encoded row in a TTL cache. Every call is counted in
// Prometheus metrics and in the in-process Stats used by alerts and the live
// stream.
package predict
