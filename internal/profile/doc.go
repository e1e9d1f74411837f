// Package profile loads the declarative workflow profile: job types and their
// ordered steps, task types, material types and typed parameters.
//
// A profile is parsed once into an immutable *Profile. Every reference in the
// document (step to task, task to material, preset to parameter, blocker to
// step) is resolved at load time and a dangling one fails the whole load with
// a configuration error. Holder publishes the current snapshot and swaps it
// atomically on reload.
package profile
