// Package types holds the shared cluster lifecycle descriptors exchanged
// between the controller, the HTTP API, and the CLI: cluster and stack status
// enums, scheduler kinds, and the external ClusterInfo view.
package types
