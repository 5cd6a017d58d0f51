// Package epidemic implements an epidemic (SWIM-style) membership
// protocol: UDP-based failure detection and gossip dissemination across a
// cluster of peers identified by a stable host key rather than by
// address. A Cluster exposes the member table as a stream of join/up/
// suspect/down/leave events; it does not provide a data plane — payload
// delivery between members is out of scope.
package epidemic
