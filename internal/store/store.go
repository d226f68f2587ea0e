// Package store persists the application state in a cosmos-db database.
//
// The latest state is kept as one JSON blob; each committed height also
// records its app hash so a restarted node can report it back to CometBFT.
package store

import (
	"bytes"
	"encoding/binary"
	"fmt"

	dbm "github.com/cosmos/cosmos-db"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

const dbName = "parallax"

var (
	keyLatestState = []byte("state/latest")
	prefixAppHash  = []byte("apphash/")
)

type Store struct {
	db dbm.DB
}

// Open opens (or creates) the goleveldb database under dir.
func Open(dir string) (*Store, error) {
	db, err := dbm.NewDB(dbName, dbm.GoLevelDBBackend, dir)
	if err != nil {
		return nil, fmt.Errorf("open %s db in %s: %w", dbName, dir, err)
	}
	return &Store{db: db}, nil
}

func NewMemStore() *Store {
	return &Store{db: dbm.NewMemDB()}
}

func appHashKey(height int64) []byte {
	k := make([]byte, 0, len(prefixAppHash)+8)
	k = append(k, prefixAppHash...)
	return binary.BigEndian.AppendUint64(k, uint64(height))
}

// Load returns the last saved state, or nil if nothing has been saved yet.
// The decoded state must reproduce the app hash recorded at its height.
func (s *Store) Load() (*state.State, error) {
	b, err := s.db.Get(keyLatestState)
	if err != nil {
		return nil, fmt.Errorf("read state: %w", err)
	}
	if b == nil {
		return nil, nil
	}
	st, err := state.Decode(b)
	if err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	want, err := s.AppHashAt(st.Height)
	if err != nil {
		return nil, err
	}
	if want == nil {
		return nil, fmt.Errorf("no app hash recorded at height %d", st.Height)
	}
	if got := st.AppHash(); !bytes.Equal(got, want) {
		return nil, fmt.Errorf("app hash mismatch at height %d: state=%X recorded=%X", st.Height, got, want)
	}
	return st, nil
}

// Save writes st and its app hash at st.Height in one synced batch.
func (s *Store) Save(st *state.State) error {
	if st == nil {
		return fmt.Errorf("state is nil")
	}
	b, err := st.Encode()
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(keyLatestState, b); err != nil {
		return fmt.Errorf("stage state: %w", err)
	}
	if err := batch.Set(appHashKey(st.Height), st.AppHash()); err != nil {
		return fmt.Errorf("stage app hash: %w", err)
	}
	if err := batch.WriteSync(); err != nil {
		return fmt.Errorf("write state at height %d: %w", st.Height, err)
	}
	return nil
}

// AppHashAt returns the app hash committed at height, or nil if unknown.
func (s *Store) AppHashAt(height int64) ([]byte, error) {
	b, err := s.db.Get(appHashKey(height))
	if err != nil {
		return nil, fmt.Errorf("read app hash at height %d: %w", height, err)
	}
	return b, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}
