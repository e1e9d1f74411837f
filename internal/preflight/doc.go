// Package preflight provides readiness checks for the filesystem paths,
// profile document and catalog endpoints archflow depends on.
//
// These checks run in two contexts:
//   - The daemon calls RunAll before serving and refuses to start when a
//     required check fails.
//   - The CLI "config validate" command prints every result.
//
// Catalog checks for optional catalogs are reported but never fatal, since
// job creation tolerates their failures.
package preflight
