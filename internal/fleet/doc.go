// Package fleet maintains a live projection of every user together with
// their attendance records and leave requests.
//
// An Aggregator watches the users collection. Whenever the set of users
// changes it opens an attendance query and a leave-request query for each
// new user and closes both queries of each removed user, purging the removed
// user's records in the same step. Every delivered snapshot replaces the
// corresponding part of the projection as a whole.
//
// Store notifications are queued and applied one at a time by a single
// goroutine per session. Readers call Snapshot and always receive a
// consistent deep copy, never a partially applied reconciliation.
package fleet
