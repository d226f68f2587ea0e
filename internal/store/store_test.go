package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/polluterofminds/parallax-contract/internal/state"
)

func sampleState(t *testing.T) *state.State {
	t.Helper()
	st := state.NewState()
	st.Operator = "operator"
	st.Height = 7
	require.NoError(t, st.Credit(st.Params.Denom, "alice", 25))
	st.Cases[1].Status = state.CaseActive
	st.Cases[1].CrimeInfoRef = "QmCase1"
	return st
}

func TestMemStore_EmptyLoad(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	st, err := s.Load()
	require.NoError(t, err)
	require.Nil(t, st)

	h, err := s.AppHashAt(1)
	require.NoError(t, err)
	require.Nil(t, h)
}

func TestMemStore_SaveLoad(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	st := sampleState(t)
	require.NoError(t, s.Save(st))

	got, err := s.Load()
	require.NoError(t, err)
	require.NotNil(t, got)
	require.Equal(t, st.AppHash(), got.AppHash())
	require.Equal(t, int64(7), got.Height)
	require.Equal(t, "QmCase1", got.CurrentCase().CrimeInfoRef)
	require.Equal(t, uint64(25), got.Balance(st.Params.Denom, "alice"))

	h, err := s.AppHashAt(7)
	require.NoError(t, err)
	require.Equal(t, st.AppHash(), h)
}

func TestMemStore_KeepsHashPerHeight(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	st := sampleState(t)
	require.NoError(t, s.Save(st))
	first := st.AppHash()

	st.Height = 8
	require.NoError(t, st.Credit(st.Params.Denom, "bob", 1))
	require.NoError(t, s.Save(st))

	h7, err := s.AppHashAt(7)
	require.NoError(t, err)
	h8, err := s.AppHashAt(8)
	require.NoError(t, err)
	require.Equal(t, first, h7)
	require.NotEqual(t, h7, h8)

	latest, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, int64(8), latest.Height)
}

func TestLoad_RejectsHashMismatch(t *testing.T) {
	s := NewMemStore()
	defer s.Close()

	st := sampleState(t)
	require.NoError(t, s.Save(st))
	require.NoError(t, s.db.Set(appHashKey(st.Height), []byte("not the hash")))

	_, err := s.Load()
	require.ErrorContains(t, err, "app hash mismatch at height 7")

	require.NoError(t, s.db.Delete(appHashKey(st.Height)))
	_, err = s.Load()
	require.ErrorContains(t, err, "no app hash recorded at height 7")
}

func TestSave_NilState(t *testing.T) {
	s := NewMemStore()
	defer s.Close()
	require.Error(t, s.Save(nil))
}

func TestOpen_GoLevelDBReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(dir)
	require.NoError(t, err)
	st := sampleState(t)
	require.NoError(t, s.Save(st))
	require.NoError(t, s.Close())

	s, err = Open(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Load()
	require.NoError(t, err)
	require.Equal(t, st.AppHash(), got.AppHash())
}
