// Package buildconfig loads the build configuration consumed by the
// utility-CSS tool that styles quickplan's templates: which template files
// to scan for class usage and which theme values extend the tool's
// built-in defaults.
//
// A configuration is loaded once, validated, and from then on treated as a
// read-only value. Provider can watch the file and publish a fresh value on
// every successful edit, but an existing value is never mutated.
package buildconfig
