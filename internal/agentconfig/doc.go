// Package agentconfig loads the fabric's runtime configuration: default
// values, optional YAML file overlay, then environment variable overrides
// (prefix FABRIC_), in that order of precedence.
package agentconfig
