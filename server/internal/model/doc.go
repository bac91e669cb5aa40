// Package model implements the delay classifier: L2-regularised logistic
// regression with balanced class weights, fitted once with L-BFGS.
//
// Fit publishes a new immutable State through an atomic pointer, so readers
// never observe a partially trained model and Predict needs no lock. Before
// the first Fit, or when handed a matrix of the wrong shape, Predict returns
// an all-zero label vector instead of failing; callers that need to know use
// Classify, which also reports whether the fallback was taken.
package model
