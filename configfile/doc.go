// Package configfile loads the engine configuration document: service
// settings plus named per-check policies, in YAML, validated before use so
// bad policy values fail at load time rather than at runtime.
package configfile
