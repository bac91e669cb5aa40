// Package features holds the frozen one-hot feature schema and the encoder
// that maps raw flight records onto it.
//
// The schema is a versioned contract shared by training and serving: every
// encoded matrix has exactly Default.Width() columns in Default order. Changing
// the column list or Version invalidates any classifier trained on the old
// schema and must ship as a new schema value, never as an in-place edit.
//
// Encode expands OPERA, TIPOVUELO and MES into "<attr>_<value>" indicators for
// the values present in the batch and reindexes them onto the schema: slots
// missing from the batch are 0, indicators outside the schema are dropped.
// Unknown categorical values therefore encode as all-zero slots rather than an
// error; rejecting them is the validator's job.
package features
