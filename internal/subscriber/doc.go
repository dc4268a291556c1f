// Package subscriber reports the synchronization state of local resources
// against a backend.
//
// A Subscriber owns two variant trees. The base tree holds the revisions the
// local copies were derived from and the remote tree holds the revisions they
// are compared with. Which tags the trees are keyed to depends on the Kind:
//
//   - Workspace compares the working copy with the branch head. Its base tree
//     is read from the local tracking metadata.
//   - Compare compares resources with a fixed tag, two-way, without a base.
//   - Merge compares two tags three-way and survives restarts through a
//     Persistence.
//
// SyncInfo never performs network I/O; it classifies against whatever the
// last Refresh left in the trees. Every Refresh emits exactly one Delta to
// the registered listeners.
package subscriber
