// Package study implements the authentication, session, and authorization
// backend for the study dashboard: a passwordless magic-link login flow, a
// cookie session lifecycle backed by signed tokens with key rotation, and a
// composable permission expression evaluator gating every protected route.
//
// Profile data lives in an external tabular store reached through the
// airtable subpackage; the library itself keeps no server-side session
// state. All time-dependent logic takes a NowFunc so tests control the
// clock.
package study
