// Package contact manages the organization contact directory that pipeline
// pushes draw from.
//
// Contacts are unique per (organization, email). Saving a contact whose
// email is already known updates it and merges tags instead of failing.
package contact
