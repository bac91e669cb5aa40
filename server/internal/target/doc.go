// Package target derives the binary delay label from the scheduled (Fecha-I)
// and actual (Fecha-O) departure timestamps.
//
// Build(batch) returns the batch unchanged when it already carries a label
// column. Otherwise every record is labelled 1 when actual − scheduled is
// strictly greater than DelayThreshold (15 minutes) and 0 otherwise. A single
// unparseable timestamp fails the whole batch with a *MalformedTimestampError.
package target
