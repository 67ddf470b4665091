package world

import (
	"errors"

	"github.com/df-mc/goleveldb/leveldb"
	"github.com/dragonkeep/server/errs"
	"github.com/dragonkeep/server/world/chunk"
)

// Provider persists and retrieves generated chunks. The streamer consults
// it before falling back to generation, exactly as the teacher's
// World.loadChunk consults its Provider before generating a column.
type Provider interface {
	LoadChunk(coord chunk.Coord) (*chunk.Chunk, error)
	SaveChunk(c *chunk.Chunk) error
	Close() error
}

// LevelDBProvider persists chunks in a LevelDB database, keyed by their
// coordinate, grounded on the teacher's use of
// github.com/df-mc/goleveldb/leveldb for column storage (server/world/world.go).
type LevelDBProvider struct {
	db *leveldb.DB
}

// OpenLevelDBProvider opens (creating if absent) a LevelDB database at dir.
func OpenLevelDBProvider(dir string) (*LevelDBProvider, error) {
	db, err := leveldb.OpenFile(dir, nil)
	if err != nil {
		return nil, errs.Wrap("world.OpenLevelDBProvider", errs.IoFailure, err)
	}
	return &LevelDBProvider{db: db}, nil
}

func chunkKey(coord chunk.Coord) []byte {
	key := make([]byte, 8)
	putUint32(key[0:4], uint32(coord.X))
	putUint32(key[4:8], uint32(coord.Z))
	return key
}

func putUint32(b []byte, v uint32) {
	b[0], b[1], b[2], b[3] = byte(v>>24), byte(v>>16), byte(v>>8), byte(v)
}

// LoadChunk returns errs.NotFound (wrapping leveldb.ErrNotFound) when coord
// has never been persisted, so the streamer can distinguish "not yet
// generated" from a genuine I/O failure, matching the teacher's
// errors.Is(err, leveldb.ErrNotFound) branch in loadChunk.
func (p *LevelDBProvider) LoadChunk(coord chunk.Coord) (*chunk.Chunk, error) {
	data, err := p.db.Get(chunkKey(coord), nil)
	switch {
	case err == nil:
		c, derr := chunk.Decode(coord, data)
		if derr != nil {
			return nil, derr
		}
		return c, nil
	case errors.Is(err, leveldb.ErrNotFound):
		return nil, errs.Wrap("world.LevelDBProvider.LoadChunk", errs.NotFound, err)
	default:
		return nil, errs.Wrap("world.LevelDBProvider.LoadChunk", errs.IoFailure, err)
	}
}

// SaveChunk persists c, overwriting any previously stored chunk at the
// same coordinate.
func (p *LevelDBProvider) SaveChunk(c *chunk.Chunk) error {
	if err := p.db.Put(chunkKey(c.Coord), c.Encode(), nil); err != nil {
		return errs.Wrap("world.LevelDBProvider.SaveChunk", errs.IoFailure, err)
	}
	return nil
}

// Close releases the underlying database handle.
func (p *LevelDBProvider) Close() error {
	if err := p.db.Close(); err != nil {
		return errs.Wrap("world.LevelDBProvider.Close", errs.IoFailure, err)
	}
	return nil
}

// memProvider is an in-memory Provider used by tests and by servers that
// opt out of persistence entirely.
type memProvider struct {
	chunks map[chunk.Coord][]byte
}

// NewMemProvider creates a Provider backed by process memory instead of
// LevelDB, for tests that should not touch disk.
func NewMemProvider() Provider {
	return &memProvider{chunks: make(map[chunk.Coord][]byte)}
}

func (m *memProvider) LoadChunk(coord chunk.Coord) (*chunk.Chunk, error) {
	data, ok := m.chunks[coord]
	if !ok {
		return nil, errs.New("world.memProvider.LoadChunk", errs.NotFound)
	}
	return chunk.Decode(coord, data)
}

func (m *memProvider) SaveChunk(c *chunk.Chunk) error {
	m.chunks[c.Coord] = c.Encode()
	return nil
}

func (m *memProvider) Close() error { return nil }
