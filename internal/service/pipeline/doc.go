// Package pipeline implements the event-attendee pipeline: the stage
// progression of a contact through an event funnel, bulk pushes of contacts
// into a funnel, and graduation of paid records into permanent attendee
// records.
//
// The service layer contains all business logic and depends on the store
// contracts defined in repository.go. It never imports net/http or
// database/sql. Repository implementations live in repository/postgres/ and
// repository/memory/.
//
// No operation wraps more than one record in a transaction. The uniqueness
// constraint on (organization, event, contact, audience type) is enforced by
// the store, and the service treats a lost create race as "already in
// pipeline" rather than an error.
package pipeline
