package canvas

import (
	"github.com/sritampatnaik/Magic-Canvas/internal/domain"
	"github.com/sritampatnaik/Magic-Canvas/internal/protocol"
)

// ApplyPresence replaces the peer map with the one derived from a full
// presence snapshot. Presence sync is authoritative and complete, so peers
// absent from the snapshot are gone.
func (r *Reconciler) ApplyPresence(state protocol.PresenceState) {
	next := make(map[string]domain.PeerMeta, len(state))
	for key, metas := range state {
		if len(metas) == 0 {
			continue
		}
		next[key] = metas[0]
	}
	r.peers = next
}

func (r *Reconciler) Peers() map[string]domain.PeerMeta {
	out := make(map[string]domain.PeerMeta, len(r.peers))
	for k, v := range r.peers {
		out[k] = v
	}
	return out
}

func (r *Reconciler) Peer(key string) (domain.PeerMeta, bool) {
	meta, ok := r.peers[key]
	return meta, ok
}
