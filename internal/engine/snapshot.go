package engine

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/crc32"
	"path"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/knowgo/blobstore"
	"github.com/hupe1980/knowgo/codec"
	"github.com/hupe1980/knowgo/internal/compress"
	"github.com/hupe1980/knowgo/internal/graph"
	"github.com/hupe1980/knowgo/internal/hnsw"
	"github.com/hupe1980/knowgo/internal/metaindex"
	"github.com/hupe1980/knowgo/model"
)

// snapshotFormatVersion guards the blob layout. Bump on incompatible
// changes; Load rejects versions it does not know.
const snapshotFormatVersion = 1

const (
	sectionEntities      = "entities"
	sectionVectors       = "vectors"
	sectionRelationships = "relationships"
)

// manifest describes one committed snapshot. It is always encoded with
// encoding/json regardless of the section codec, so any build can read the
// manifest before deciding how to decode the sections.
type manifest struct {
	FormatVersion     int               `json:"format_version"`
	ID                string            `json:"id"`
	CreatedAtUnix     int64             `json:"created_at_unix"`
	Dimension         int               `json:"dimension"`
	Metric            string            `json:"metric"`
	Codec             string            `json:"codec"`
	Compression       string            `json:"compression"`
	EntityCount       int               `json:"entity_count"`
	RelationshipCount int               `json:"relationship_count"`
	LastTimestamp     int64             `json:"last_timestamp"`
	Sections          []manifestSection `json:"sections"`
}

type manifestSection struct {
	Name     string `json:"name"`
	Key      string `json:"key"`
	Size     int    `json:"size"`
	Checksum uint32 `json:"checksum"`
}

// entityRecord pins an entity to its row so the vector graph section, which
// is keyed by row, stays joined to the catalog across a round trip.
type entityRecord struct {
	Row    model.RowID   `json:"row"`
	Entity *model.Entity `json:"entity"`
}

type snapshotState struct {
	records []entityRecord
	vectors *hnsw.Snapshot
	rels    []*model.Relationship
	lastTS  int64
}

// Save writes a full snapshot to the blob store and flips the commit
// pointer to it. It returns the snapshot id.
//
// Sections are uploaded in parallel; the commit pointer is written last, so
// a crashed save never becomes current.
func (e *Engine) Save(ctx context.Context) (string, error) {
	if e.closed.Load() {
		return "", ErrClosed
	}
	if e.cfg.Blob == nil {
		return "", ErrNoBlobStore
	}

	state := e.captureState()

	id := uuid.NewString()
	m := &manifest{
		FormatVersion:     snapshotFormatVersion,
		ID:                id,
		CreatedAtUnix:     time.Now().Unix(),
		Dimension:         e.cfg.Dimension,
		Metric:            e.cfg.Metric.String(),
		Codec:             e.cfg.Codec.Name(),
		Compression:       string(e.cfg.Compression),
		EntityCount:       len(state.records),
		RelationshipCount: len(state.rels),
		LastTimestamp:     state.lastTS,
	}

	sections := []struct {
		name    string
		payload any
	}{
		{sectionEntities, state.records},
		{sectionVectors, state.vectors},
		{sectionRelationships, state.rels},
	}

	m.Sections = make([]manifestSection, len(sections))

	g, gctx := errgroup.WithContext(ctx)
	for i, s := range sections {
		g.Go(func() error {
			blob, err := e.encodeSection(s.payload)
			if err != nil {
				return fmt.Errorf("encode %s section: %w", s.name, err)
			}

			key := path.Join("sections", id, s.name)

			if err := e.res.AcquireIO(gctx, len(blob)); err != nil {
				return err
			}
			if err := e.cfg.Blob.Put(gctx, key, blob); err != nil {
				return fmt.Errorf("put %s section: %w", s.name, err)
			}

			m.Sections[i] = manifestSection{
				Name:     s.name,
				Key:      key,
				Size:     len(blob),
				Checksum: crc32.ChecksumIEEE(blob),
			}

			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", err
	}

	manifestBlob, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("encode manifest: %w", err)
	}

	manifestKey := path.Join("manifests", id)
	if err := e.cfg.Blob.Put(ctx, manifestKey, manifestBlob); err != nil {
		return "", fmt.Errorf("put manifest: %w", err)
	}
	if err := e.cfg.Blob.Put(ctx, blobstore.CurrentKey, []byte(manifestKey)); err != nil {
		return "", fmt.Errorf("commit snapshot: %w", err)
	}

	e.log.Info("snapshot saved", "id", id, "entities", m.EntityCount, "relationships", m.RelationshipCount)
	return id, nil
}

// captureState copies the store under read locks. Holding the catalog lock
// across the vector export blocks writers, which all lock the catalog
// first, so the sections describe one instant.
func (e *Engine) captureState() *snapshotState {
	e.catMu.RLock()
	defer e.catMu.RUnlock()

	records := make([]entityRecord, 0, len(e.rows))
	for row, ent := range e.entities {
		if ent != nil {
			records = append(records, entityRecord{Row: model.RowID(row), Entity: ent})
		}
	}

	vectors := e.idx().Export()

	e.graphMu.RLock()
	rels := e.graph.All()
	e.graphMu.RUnlock()

	return &snapshotState{
		records: records,
		vectors: vectors,
		rels:    rels,
		lastTS:  e.lastTS.Load(),
	}
}

func (e *Engine) encodeSection(v any) ([]byte, error) {
	raw, err := e.cfg.Codec.Marshal(v)
	if err != nil {
		return nil, err
	}

	return e.cfg.Compression.Compress(raw)
}

func decodeSection(data []byte, comp compress.Compression, c codec.Codec, v any) error {
	raw, err := comp.Decompress(data)
	if err != nil {
		return err
	}

	return c.Unmarshal(raw, v)
}

// Load replaces the store content with the latest committed snapshot. The
// manifest names the codec and compression it was written with, so a store
// configured differently can still read it.
func (e *Engine) Load(ctx context.Context) error {
	if e.closed.Load() {
		return ErrClosed
	}
	if e.cfg.Blob == nil {
		return ErrNoBlobStore
	}

	cur, err := e.cfg.Blob.Get(ctx, blobstore.CurrentKey)
	if errors.Is(err, blobstore.ErrNotFound) {
		return ErrNoSnapshot
	}
	if err != nil {
		return fmt.Errorf("read commit pointer: %w", err)
	}

	manifestBlob, err := e.cfg.Blob.Get(ctx, string(cur))
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m manifest
	if err := json.Unmarshal(manifestBlob, &m); err != nil {
		return fmt.Errorf("decode manifest: %w", err)
	}

	if m.FormatVersion != snapshotFormatVersion {
		return fmt.Errorf("unsupported snapshot format %d", m.FormatVersion)
	}
	if m.Dimension != e.cfg.Dimension {
		return &hnsw.ErrDimensionMismatch{Expected: e.cfg.Dimension, Actual: m.Dimension}
	}
	if m.Metric != e.cfg.Metric.String() {
		return fmt.Errorf("snapshot metric %q does not match store metric %q", m.Metric, e.cfg.Metric)
	}

	c, ok := codec.ByName(m.Codec)
	if !ok {
		return fmt.Errorf("unknown snapshot codec %q", m.Codec)
	}
	comp, err := compress.ByName(m.Compression)
	if err != nil {
		return err
	}

	var (
		records []entityRecord
		vecSnap hnsw.Snapshot
		rels    []*model.Relationship
	)

	g, gctx := errgroup.WithContext(ctx)
	for _, s := range m.Sections {
		g.Go(func() error {
			blob, err := e.cfg.Blob.Get(gctx, s.Key)
			if err != nil {
				return fmt.Errorf("get %s section: %w", s.Name, err)
			}
			if err := e.res.AcquireIO(gctx, len(blob)); err != nil {
				return err
			}
			if len(blob) != s.Size || crc32.ChecksumIEEE(blob) != s.Checksum {
				return fmt.Errorf("%s section: %w", s.Name, ErrChecksum)
			}

			switch s.Name {
			case sectionEntities:
				return decodeSection(blob, comp, c, &records)
			case sectionVectors:
				return decodeSection(blob, comp, c, &vecSnap)
			case sectionRelationships:
				return decodeSection(blob, comp, c, &rels)
			default:
				// Sections from a newer minor layout are skippable.
				return nil
			}
		})
	}
	if err := g.Wait(); err != nil {
		return err
	}

	idx, err := hnsw.Restore(&vecSnap, e.indexOptions())
	if err != nil {
		return fmt.Errorf("restore vector index: %w", err)
	}

	rows := make(map[model.EntityID]model.RowID, len(records))
	for _, r := range records {
		if r.Entity == nil || r.Entity.ID == "" {
			return errors.New("snapshot: entity record without an id")
		}
		// Has also bounds the row: the vector index holds every valid one.
		if !idx.Has(r.Row) {
			return fmt.Errorf("snapshot: entity %q has no vector at row %d", string(r.Entity.ID), uint32(r.Row))
		}
	}

	// The catalog spans every held vector slot, tombstones included. Row
	// allocation appends past the end, so it must never land on a held slot.
	maxRow := -1
	for _, n := range vecSnap.Nodes {
		if int(n.Row) > maxRow {
			maxRow = int(n.Row)
		}
	}

	entities := make([]*model.Entity, maxRow+1)
	alive := roaring.New()
	meta := metaindex.New()

	for _, r := range records {
		if _, dup := rows[r.Entity.ID]; dup {
			return fmt.Errorf("snapshot: duplicate entity id %q", string(r.Entity.ID))
		}
		if entities[r.Row] != nil {
			return fmt.Errorf("snapshot: duplicate row %d", uint32(r.Row))
		}

		rows[r.Entity.ID] = r.Row
		entities[r.Row] = r.Entity
		alive.Add(uint32(r.Row))
		meta.Add(r.Row, r.Entity.Meta)
	}

	for _, rel := range rels {
		if _, ok := rows[rel.From]; !ok {
			return fmt.Errorf("snapshot: relationship %q references unknown entity %q", string(rel.ID), string(rel.From))
		}
		if _, ok := rows[rel.To]; !ok {
			return fmt.Errorf("snapshot: relationship %q references unknown entity %q", string(rel.ID), string(rel.To))
		}
	}

	gr := graph.New()
	gr.Restore(rels)

	var free []model.RowID
	for row := range entities {
		if entities[row] == nil && !idx.Occupied(model.RowID(row)) {
			free = append(free, model.RowID(row))
		}
	}

	e.catMu.Lock()
	e.metaMu.Lock()
	e.graphMu.Lock()

	e.rows = rows
	e.entities = entities
	e.alive = alive
	e.free = free
	e.meta = meta
	e.graph = gr
	e.vectors.Store(idx)

	for {
		last := e.lastTS.Load()
		if m.LastTimestamp <= last || e.lastTS.CompareAndSwap(last, m.LastTimestamp) {
			break
		}
	}

	e.graphMu.Unlock()
	e.metaMu.Unlock()
	e.catMu.Unlock()

	e.log.Info("snapshot loaded", "id", m.ID, "entities", m.EntityCount, "relationships", m.RelationshipCount)
	return nil
}
