package callcore

import "sync"

// Registry is the thread-safe mapping from friend and group identifiers to
// their active calls. One reader/writer lock guards both mappings: lookups
// take the read mode, structural changes take the write mode.
//
// The lock is held by the Manager, not inside the individual methods,
// because some call sequences must release and reacquire it around a
// blocking transport call (see Manager.CancelCall). Every method below
// documents the lock mode its caller must hold.
type Registry struct {
	mu sync.RWMutex

	peers  map[uint32]*PeerCall
	groups map[uint32]*GroupCall
}

// NewRegistry creates an empty call registry.
func NewRegistry() *Registry {
	return &Registry{
		peers:  make(map[uint32]*PeerCall),
		groups: make(map[uint32]*GroupCall),
	}
}

// InsertPeer adds a peer call. Returns false without replacing when a call
// for the friend already exists ("already in this call"). Caller holds the
// write lock.
func (r *Registry) InsertPeer(friendID uint32, call *PeerCall) bool {
	if _, exists := r.peers[friendID]; exists {
		return false
	}
	r.peers[friendID] = call
	return true
}

// Peer looks up the call for a friend. Caller holds the lock in either mode.
func (r *Registry) Peer(friendID uint32) (*PeerCall, bool) {
	call, ok := r.peers[friendID]
	return call, ok
}

// RemovePeer removes and closes the call for a friend, if any. Caller holds
// the write lock.
func (r *Registry) RemovePeer(friendID uint32) {
	if call, ok := r.peers[friendID]; ok {
		call.close()
		delete(r.peers, friendID)
	}
}

// InsertGroup adds a group call. Returns false without replacing when a
// call for the group already exists. Caller holds the write lock.
func (r *Registry) InsertGroup(groupID uint32, call *GroupCall) bool {
	if _, exists := r.groups[groupID]; exists {
		return false
	}
	r.groups[groupID] = call
	return true
}

// Group looks up the call for a group. Caller holds the lock in either mode.
func (r *Registry) Group(groupID uint32) (*GroupCall, bool) {
	call, ok := r.groups[groupID]
	return call, ok
}

// RemoveGroup removes and closes the call for a group, if any. Caller holds
// the write lock.
func (r *Registry) RemoveGroup(groupID uint32) {
	if call, ok := r.groups[groupID]; ok {
		call.close()
		delete(r.groups, groupID)
	}
}

// PeerIDs returns the friend identifiers with active calls, for graceful
// shutdown iteration. Caller holds the lock in either mode.
func (r *Registry) PeerIDs() []uint32 {
	ids := make([]uint32, 0, len(r.peers))
	for id := range r.peers {
		ids = append(ids, id)
	}
	return ids
}

// GroupIDs returns the group identifiers with active calls. Caller holds
// the lock in either mode.
func (r *Registry) GroupIDs() []uint32 {
	ids := make([]uint32, 0, len(r.groups))
	for id := range r.groups {
		ids = append(ids, id)
	}
	return ids
}

// PeerLen returns the number of active peer calls. Caller holds the lock in
// either mode.
func (r *Registry) PeerLen() int {
	return len(r.peers)
}

// GroupLen returns the number of active group calls. Caller holds the lock
// in either mode.
func (r *Registry) GroupLen() int {
	return len(r.groups)
}
