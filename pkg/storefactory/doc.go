// Package storefactory builds custodian's store and retention engine from
// configuration.
package storefactory
