package store

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "credentials.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func testCredential(id string, serial uint64, createdAt time.Time) *Credential {
	return &Credential{
		ID:         id,
		Kind:       KindCertificate,
		Host:       "web-1",
		Principal:  "deploy",
		Serial:     serial,
		Status:     StatusActive,
		CreatedAt:  createdAt,
		ExpiresAt:  createdAt.Add(time.Hour),
		TTLSeconds: 3600,
	}
}

func grantRecord(id string) AuditRecord {
	return AuditRecord{Action: ActionGrant, CredentialID: id, Details: "test grant"}
}

func TestAllocateSerial_StrictlyIncreasing(t *testing.T) {
	s := newTestStore(t)

	var prev uint64
	for i := 0; i < 10; i++ {
		serial, err := s.AllocateSerial()
		require.NoError(t, err)
		assert.Greater(t, serial, prev)
		prev = serial
	}
}

func TestAllocateSerial_Concurrent(t *testing.T) {
	s := newTestStore(t)

	const workers = 16
	const perWorker = 8

	var mu sync.Mutex
	seen := make(map[uint64]bool)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWorker; j++ {
				serial, err := s.AllocateSerial()
				assert.NoError(t, err)
				mu.Lock()
				assert.False(t, seen[serial], "serial %d allocated twice", serial)
				seen[serial] = true
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, workers*perWorker)
}

func TestInsertGet(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC().Truncate(time.Second)

	cred := testCredential("abc12345", 1, now)
	require.NoError(t, s.Insert(cred, grantRecord(cred.ID)))

	got, err := s.Get("abc12345")
	require.NoError(t, err)
	assert.Equal(t, cred, got)

	_, err = s.Get("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestInsert_DuplicateID(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Insert(testCredential("dup", 1, now), grantRecord("dup")))
	err := s.Insert(testCredential("dup", 2, now), grantRecord("dup"))
	assert.ErrorIs(t, err, ErrDuplicateID)
}

func TestInsert_AuditCommitsWithCredential(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	require.NoError(t, s.Insert(testCredential("a1", 1, now), grantRecord("a1")))

	entries, err := s.AuditLog(AuditFilter{CredentialID: "a1"})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ActionGrant, entries[0].Action)
	assert.Equal(t, now.Truncate(time.Second), entries[0].Timestamp.Truncate(time.Second))
}

func TestTransition(t *testing.T) {
	s := newTestStore(t)
	created := time.Now().UTC().Add(-time.Hour)
	now := time.Now().UTC().Truncate(time.Second)

	require.NoError(t, s.Insert(testCredential("r1", 1, created), grantRecord("r1")))

	updated, err := s.Transition("r1", StatusRevoked, now,
		AuditRecord{Action: ActionRevoke, CredentialID: "r1", Details: "revoked"})
	require.NoError(t, err)
	assert.Equal(t, StatusRevoked, updated.Status)
	require.NotNil(t, updated.RevokedAt)
	assert.Equal(t, now, *updated.RevokedAt)

	// Terminal states reject any further transition, and the terminal
	// timestamp never changes.
	_, err = s.Transition("r1", StatusExpired, now.Add(time.Minute),
		AuditRecord{Action: ActionCleanup, CredentialID: "r1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	_, err = s.Transition("r1", StatusRevoked, now.Add(time.Minute),
		AuditRecord{Action: ActionRevoke, CredentialID: "r1"})
	assert.ErrorIs(t, err, ErrInvalidTransition)

	got, err := s.Get("r1")
	require.NoError(t, err)
	assert.Equal(t, now, *got.RevokedAt)
}

func TestTransition_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.Transition("nope", StatusExpired, time.Now(),
		AuditRecord{Action: ActionCleanup})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestTransition_ExpiredHasNoRevokedAt(t *testing.T) {
	s := newTestStore(t)
	created := time.Now().UTC().Add(-2 * time.Hour)

	require.NoError(t, s.Insert(testCredential("e1", 1, created), grantRecord("e1")))

	updated, err := s.Transition("e1", StatusExpired, time.Now().UTC(),
		AuditRecord{Action: ActionCleanup, CredentialID: "e1"})
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, updated.Status)
	assert.Nil(t, updated.RevokedAt)
}

func TestList_DefaultExcludesTerminal(t *testing.T) {
	s := newTestStore(t)
	base := time.Now().UTC().Add(-time.Hour)

	for i, id := range []string{"c1", "c2", "c3"} {
		cred := testCredential(id, uint64(i+1), base.Add(time.Duration(i)*time.Minute))
		require.NoError(t, s.Insert(cred, grantRecord(id)))
	}
	_, err := s.Transition("c2", StatusRevoked, time.Now().UTC(),
		AuditRecord{Action: ActionRevoke, CredentialID: "c2"})
	require.NoError(t, err)

	active, err := s.List(Filter{})
	require.NoError(t, err)
	require.Len(t, active, 2)
	// Newest first.
	assert.Equal(t, "c3", active[0].ID)
	assert.Equal(t, "c1", active[1].ID)

	all, err := s.List(Filter{IncludeTerminal: true})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	revoked, err := s.List(Filter{Status: StatusRevoked})
	require.NoError(t, err)
	require.Len(t, revoked, 1)
	assert.Equal(t, "c2", revoked[0].ID)
}

func TestList_FilterByKindAndHost(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	cert := testCredential("cert1", 1, now)
	require.NoError(t, s.Insert(cert, grantRecord("cert1")))

	pw := &Credential{
		ID:           "pw1",
		Kind:         KindPassword,
		Label:        "db-admin",
		Status:       StatusActive,
		CreatedAt:    now,
		ExpiresAt:    now.Add(time.Hour),
		TTLSeconds:   3600,
		PasswordHash: "deadbeef",
	}
	require.NoError(t, s.Insert(pw, AuditRecord{Action: ActionPassword, CredentialID: "pw1"}))

	certs, err := s.List(Filter{Kind: KindCertificate})
	require.NoError(t, err)
	require.Len(t, certs, 1)
	assert.Equal(t, "cert1", certs[0].ID)

	byHost, err := s.List(Filter{Host: "web-1"})
	require.NoError(t, err)
	require.Len(t, byHost, 1)
	assert.Equal(t, "cert1", byHost[0].ID)

	none, err := s.List(Filter{Host: "web-2"})
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestExpiredActiveAsOf(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	expired := testCredential("old", 1, now.Add(-2*time.Hour))
	expired.ExpiresAt = now.Add(-time.Hour)
	require.NoError(t, s.Insert(expired, grantRecord("old")))

	fresh := testCredential("fresh", 2, now)
	require.NoError(t, s.Insert(fresh, grantRecord("fresh")))

	alreadyRevoked := testCredential("gone", 3, now.Add(-3*time.Hour))
	alreadyRevoked.ExpiresAt = now.Add(-2 * time.Hour)
	require.NoError(t, s.Insert(alreadyRevoked, grantRecord("gone")))
	_, err := s.Transition("gone", StatusRevoked, now,
		AuditRecord{Action: ActionRevoke, CredentialID: "gone"})
	require.NoError(t, err)

	due, err := s.ExpiredActiveAsOf(now)
	require.NoError(t, err)
	require.Len(t, due, 1)
	assert.Equal(t, "old", due[0].ID)
}

func TestRevokedSerials(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, s.Insert(testCredential(id, uint64(i+1), now), grantRecord(id)))
	}
	for _, id := range []string{"s3", "s1"} {
		_, err := s.Transition(id, StatusRevoked, now,
			AuditRecord{Action: ActionRevoke, CredentialID: id})
		require.NoError(t, err)
	}

	serials, err := s.RevokedSerials()
	require.NoError(t, err)
	assert.Equal(t, []uint64{1, 3}, serials)
}

func TestCounts(t *testing.T) {
	s := newTestStore(t)
	now := time.Now().UTC()

	for i, id := range []string{"a", "b", "c"} {
		require.NoError(t, s.Insert(testCredential(id, uint64(i+1), now), grantRecord(id)))
	}
	_, err := s.Transition("a", StatusRevoked, now, AuditRecord{Action: ActionRevoke, CredentialID: "a"})
	require.NoError(t, err)
	_, err = s.Transition("b", StatusExpired, now, AuditRecord{Action: ActionCleanup, CredentialID: "b"})
	require.NoError(t, err)

	counts, err := s.Counts()
	require.NoError(t, err)
	assert.Equal(t, map[Status]int{StatusActive: 1, StatusExpired: 1, StatusRevoked: 1}, counts)
}

func TestAuditLog_FiltersAndOrder(t *testing.T) {
	s := newTestStore(t)

	require.NoError(t, s.Append(AuditRecord{Action: ActionInit, Details: "CA initialized"}))
	now := time.Now().UTC()
	require.NoError(t, s.Insert(testCredential("x1", 1, now), grantRecord("x1")))
	_, err := s.Transition("x1", StatusRevoked, now, AuditRecord{Action: ActionRevoke, CredentialID: "x1"})
	require.NoError(t, err)

	all, err := s.AuditLog(AuditFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	// Most recent first, sequences strictly decreasing.
	assert.Equal(t, ActionRevoke, all[0].Action)
	assert.Equal(t, ActionGrant, all[1].Action)
	assert.Equal(t, ActionInit, all[2].Action)
	assert.Greater(t, all[0].Sequence, all[1].Sequence)
	assert.Greater(t, all[1].Sequence, all[2].Sequence)

	limited, err := s.AuditLog(AuditFilter{Limit: 1})
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, ActionRevoke, limited[0].Action)

	byAction, err := s.AuditLog(AuditFilter{Action: ActionGrant})
	require.NoError(t, err)
	require.Len(t, byAction, 1)

	byCred, err := s.AuditLog(AuditFilter{CredentialID: "x1"})
	require.NoError(t, err)
	assert.Len(t, byCred, 2)
}

func TestPersistenceAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.db")

	s, err := Open(path)
	require.NoError(t, err)
	now := time.Now().UTC().Truncate(time.Second)
	require.NoError(t, s.Insert(testCredential("p1", 7, now), grantRecord("p1")))
	serial, err := s.AllocateSerial()
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s2, err := Open(path)
	require.NoError(t, err)
	defer s2.Close()

	got, err := s2.Get("p1")
	require.NoError(t, err)
	assert.Equal(t, uint64(7), got.Serial)

	next, err := s2.AllocateSerial()
	require.NoError(t, err)
	assert.Greater(t, next, serial)

	entries, err := s2.AuditLog(AuditFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 1)
}

func TestStatus_TransitionMatrix(t *testing.T) {
	tests := []struct {
		from, to Status
		ok       bool
	}{
		{StatusActive, StatusExpired, true},
		{StatusActive, StatusRevoked, true},
		{StatusActive, StatusActive, false},
		{StatusExpired, StatusRevoked, false},
		{StatusExpired, StatusActive, false},
		{StatusRevoked, StatusExpired, false},
		{StatusRevoked, StatusActive, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.ok, tt.from.CanTransition(tt.to), "%s -> %s", tt.from, tt.to)
	}
}
