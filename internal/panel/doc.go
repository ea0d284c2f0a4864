// Package panel serves the node's control page as an embedded asset.
//
// The page offers Hello and World buttons plus a free text field, all of
// which post to /api/v1/message, and polls /api/v1/health for network,
// broker and queue state. Assets are embedded with go:embed so the binary
// has no runtime file dependencies.
package panel
