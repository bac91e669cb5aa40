// Package validate checks incoming flights against the training domain
// before they reach the encoder.
//
// A flight is valid when its operator appeared in the training data, its
// flight type is N or I, and its month lies in 1..12. Every failing field is
// reported, in the order OPERA, TIPOVUELO, MES.
package validate
