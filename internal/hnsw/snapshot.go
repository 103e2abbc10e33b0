package hnsw

import (
	"fmt"
	"slices"

	"github.com/bits-and-blooms/bitset"

	"github.com/hupe1980/knowgo/model"
)

// Snapshot is the full serializable state of the index. Tombstoned nodes are
// included with their edges so the restored graph keeps the exact
// navigability of the original.
type Snapshot struct {
	Dimension  int            `json:"dimension"`
	M          int            `json:"m"`
	EntryPoint model.RowID    `json:"entry_point"`
	MaxLayer   int            `json:"max_layer"`
	Nodes      []SnapshotNode `json:"nodes"`
}

// SnapshotNode is one graph node in serialized form. The node layer is
// implied by the length of Connections.
type SnapshotNode struct {
	Row         model.RowID     `json:"row"`
	Vector      []float32       `json:"vector"`
	Connections [][]model.RowID `json:"connections"`
	Deleted     bool            `json:"deleted,omitempty"`
}

// Export captures the current index state. Connection lists are copied so
// later mutations cannot race the encoder; vectors are shared because stored
// vectors are never mutated in place.
func (h *Index) Export() *Snapshot {
	h.mu.RLock()
	defer h.mu.RUnlock()

	snap := &Snapshot{
		Dimension:  h.opts.Dimension,
		M:          h.opts.M,
		EntryPoint: h.entryPoint,
		MaxLayer:   h.maxLayer,
		Nodes:      make([]SnapshotNode, 0, h.aliveCount+h.tombstoneCount),
	}

	for i, n := range h.nodes {
		if n == nil {
			continue
		}
		conns := make([][]model.RowID, len(n.connections))
		for level, c := range n.connections {
			conns[level] = slices.Clone(c)
		}
		snap.Nodes = append(snap.Nodes, SnapshotNode{
			Row:         model.RowID(i),
			Vector:      n.vector,
			Connections: conns,
			Deleted:     h.tombstones.Test(uint(i)),
		})
	}

	return snap
}

// Restore builds an index from a snapshot, reinstating the exact graph
// structure instead of re-linking node by node. Options follow the same
// defaults as New; stored vectors are taken as-is and never re-normalized.
func Restore(snap *Snapshot, optFns ...func(o *Options)) (*Index, error) {
	h, err := New(snap.Dimension, optFns...)
	if err != nil {
		return nil, err
	}

	maxRow := -1
	for _, sn := range snap.Nodes {
		if int(sn.Row) > maxRow {
			maxRow = int(sn.Row)
		}
	}

	nodes := make([]*node, maxRow+1)
	tombstones := bitset.New(uint(maxRow + 1))
	alive, dead := 0, 0

	for _, sn := range snap.Nodes {
		if len(sn.Vector) != snap.Dimension {
			return nil, &ErrDimensionMismatch{Expected: snap.Dimension, Actual: len(sn.Vector)}
		}
		if nodes[sn.Row] != nil {
			return nil, fmt.Errorf("duplicate row %d in snapshot", sn.Row)
		}

		conns := sn.Connections
		if len(conns) == 0 {
			conns = make([][]model.RowID, 1)
		}
		nodes[sn.Row] = &node{
			vector:      sn.Vector,
			connections: conns,
			layer:       len(conns) - 1,
		}

		if sn.Deleted {
			tombstones.Set(uint(sn.Row))
			dead++
		} else {
			alive++
		}
	}

	if len(snap.Nodes) > 0 {
		if int(snap.EntryPoint) >= len(nodes) || nodes[snap.EntryPoint] == nil {
			return nil, fmt.Errorf("snapshot entry point %d not held", snap.EntryPoint)
		}
		h.entryPoint = snap.EntryPoint
		h.maxLayer = snap.MaxLayer
	}

	h.nodes = nodes
	h.tombstones = tombstones
	h.tombstoneCount = dead
	h.aliveCount = alive
	return h, nil
}
