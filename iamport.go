// Package iamport provides a client for the iamport REST API:
// https://api.iamport.kr
//
// Features:
// - Access tokens fetched on demand and shared through a pluggable cache (in-memory or Redis).
// - Payment cancellation, billing key (customer card) registration and recurring charges.
// - Gateway failures reported as a single [RequestError] carrying the gateway code.
package iamport
