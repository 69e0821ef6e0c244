// Package event manages events and their funnel configuration: the ordered
// stage list and the audience types a pipeline record may belong to.
//
// Service.FindEvent is the pipeline service's view of event configuration
// and is served through an optional cache.
package event
