// Package http provides HTTP handlers and middleware for the attendance API.
//
// Callers identify themselves with the X-User-ID header, which AttachSession
// resolves against the user directory. The router exposes:
//   - POST /users: registers a user. Body: {"id","email","role"}. Registering
//     an admin requires an admin caller.
//   - POST /attendance: marks the caller's attendance. Body: {"date","status"}.
//     A second mark for the same date answers 409.
//   - POST /leave-requests: stores a pending leave request for the caller.
//     Body: {"date","reason"}. Resubmitting a date overwrites it.
//   - GET /history[?user_id=]: the caller's records, or another user's for admins.
//   - GET /admin/overview: the aggregated read-model.
//   - GET /admin/reports[?user_id=]: attendance grades per user.
//   - GET /admin/reports/summary: the system-wide grade.
//   - PUT /admin/users/{id}/leave-requests/{date}: Body {"status"} with
//     approved or rejected.
//   - PUT /admin/users/{id}/attendance/{date}: Body {"status"}.
//
// Every /admin route answers 401 without a caller and 403 for non-admins.
// Error bodies carry localized messages in the errorResponse shape defined in
// responder.go.
package http
