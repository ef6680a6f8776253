package store

import (
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/dukerupert/quorum/internal/model"
)

func setupVoteStore(t *testing.T) (*VoteStore, *BallotStore, *AuditStore, *sql.DB) {
	t.Helper()
	db := setupTestDB(t)
	audit := NewAuditStore(db)
	return NewVoteStore(db, audit), NewBallotStore(db), audit, db
}

func TestVoteCast(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 2)
	voterID := createTestVoter(t, db, "alice@example.com")

	v, remaining, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 2)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if v.ID == "" {
		t.Error("expected non-empty vote id")
	}
	if remaining != 1 {
		t.Errorf("remaining = %d, want 1", remaining)
	}
}

func TestVoteCastDuplicateOption(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 3)
	voterID := createTestVoter(t, db, "alice@example.com")

	if _, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 3); err != nil {
		t.Fatalf("first cast: %v", err)
	}
	_, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 3)
	if !errors.Is(err, ErrDuplicateVote) {
		t.Errorf("duplicate cast: err = %v, want ErrDuplicateVote", err)
	}
}

func TestVoteCastLimit(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 2)
	voterID := createTestVoter(t, db, "alice@example.com")

	if _, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 2); err != nil {
		t.Fatalf("first cast: %v", err)
	}
	if _, _, err := votes.Cast(b.ID, voterID, b.Options[1].ID, 2); err != nil {
		t.Fatalf("second cast: %v", err)
	}

	_, _, err := votes.Cast(b.ID, voterID, b.Options[2].ID, 2)
	if !errors.Is(err, ErrVoteLimitExceeded) {
		t.Errorf("third cast: err = %v, want ErrVoteLimitExceeded", err)
	}
}

// TestVoteCastConcurrentLimit issues more concurrent casts than the cap
// allows and checks that the cap holds: the transaction around
// count-check-insert is what stops a race from jointly exceeding it.
func TestVoteCastConcurrentLimit(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	const maxVotes = 2
	b := createTestBallot(t, ballots, maxVotes)
	voterID := createTestVoter(t, db, "alice@example.com")

	var succeeded atomic.Int32
	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(1)
		go func(optionIdx int) {
			defer wg.Done()
			if _, _, err := votes.Cast(b.ID, voterID, b.Options[optionIdx].ID, maxVotes); err == nil {
				succeeded.Add(1)
			}
		}(i)
	}
	wg.Wait()

	if succeeded.Load() != maxVotes {
		t.Errorf("successful casts = %d, want %d", succeeded.Load(), maxVotes)
	}
	count, err := votes.CountForVoter(b.ID, voterID)
	if err != nil {
		t.Fatalf("count votes: %v", err)
	}
	if count != maxVotes {
		t.Errorf("persisted votes = %d, want %d", count, maxVotes)
	}
}

func TestVoteCastWritesAuditInSameCommit(t *testing.T) {
	votes, ballots, audit, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 1)
	voterID := createTestVoter(t, db, "alice@example.com")

	v, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 1)
	if err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	entries, total, err := audit.Query(AuditFilter{Action: model.ActionVoteCast}, 10, 0)
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if total != 1 {
		t.Fatalf("VOTE_CAST entries = %d, want 1", total)
	}
	if entries[0].Metadata["vote_id"] != v.ID {
		t.Errorf("audit vote_id = %q, want %q", entries[0].Metadata["vote_id"], v.ID)
	}
	if entries[0].BallotID == nil || *entries[0].BallotID != b.ID {
		t.Errorf("audit ballot_id = %v, want %d", entries[0].BallotID, b.ID)
	}
}

func TestVoteRejectedCastLeavesNoAudit(t *testing.T) {
	votes, ballots, audit, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 1)
	voterID := createTestVoter(t, db, "alice@example.com")

	if _, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 1); err != nil {
		t.Fatalf("cast vote: %v", err)
	}
	if _, _, err := votes.Cast(b.ID, voterID, b.Options[1].ID, 1); !errors.Is(err, ErrVoteLimitExceeded) {
		t.Fatalf("over-limit cast: err = %v, want ErrVoteLimitExceeded", err)
	}

	// Only the successful cast is audited as VOTE_CAST.
	_, total, err := audit.Query(AuditFilter{Action: model.ActionVoteCast}, 10, 0)
	if err != nil {
		t.Fatalf("query audit: %v", err)
	}
	if total != 1 {
		t.Errorf("VOTE_CAST entries = %d, want 1", total)
	}
}

func TestVoteResults(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	b := createTestBallot(t, ballots, 1)
	alice := createTestVoter(t, db, "alice@example.com")
	bob := createTestVoter(t, db, "bob@example.com")
	carol := createTestVoter(t, db, "carol@example.com")

	for _, vote := range []struct {
		voter  int64
		option int64
	}{
		{alice, b.Options[0].ID},
		{bob, b.Options[0].ID},
		{carol, b.Options[1].ID},
	} {
		if _, _, err := votes.Cast(b.ID, vote.voter, vote.option, 1); err != nil {
			t.Fatalf("cast vote: %v", err)
		}
	}

	tallies, err := votes.Results(b.ID)
	if err != nil {
		t.Fatalf("results: %v", err)
	}
	if len(tallies) != 3 {
		t.Fatalf("tallies = %d, want 3 (zero-vote options included)", len(tallies))
	}
	if tallies[0].Votes != 2 || tallies[1].Votes != 1 || tallies[2].Votes != 0 {
		t.Errorf("tally counts = [%d %d %d], want [2 1 0]", tallies[0].Votes, tallies[1].Votes, tallies[2].Votes)
	}
}

func TestVoteAny(t *testing.T) {
	votes, ballots, _, db := setupVoteStore(t)

	any, err := votes.Any()
	if err != nil {
		t.Fatalf("any: %v", err)
	}
	if any {
		t.Error("fresh database should have no votes")
	}

	b := createTestBallot(t, ballots, 1)
	voterID := createTestVoter(t, db, "alice@example.com")
	if _, _, err := votes.Cast(b.ID, voterID, b.Options[0].ID, 1); err != nil {
		t.Fatalf("cast vote: %v", err)
	}

	any, err = votes.Any()
	if err != nil {
		t.Fatalf("any: %v", err)
	}
	if !any {
		t.Error("expected votes to exist")
	}
}
