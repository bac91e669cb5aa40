// Package dataset loads the historical flight table used for training.
//
// Columns are located by header name, so extra columns and any column order
// are accepted. Only OPERA, TIPOVUELO, MES, Fecha-I and Fecha-O are required.
package dataset
