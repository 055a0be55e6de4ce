// Package registry maps content types to ordered lists of capability providers.
//
// Providers are registered by the surrounding application at startup with a
// content-type pattern and a priority. Patterns are either an exact label
// ("application/zip"), a family wildcard ("text/*") or the global wildcard
// ("*/*" or "*"). Resolve returns every matching provider so the crawl engine
// can fall through to the next one when a provider fails:
//
//  1. exact matches before family wildcards before the global wildcard
//  2. within a tier, higher priority first
//  3. equal priorities in registration order
//
// Registries may be mutated while lookups run. Each mutation publishes a new
// immutable snapshot, so a lookup never observes a partial registration.
package registry
