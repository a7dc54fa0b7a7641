package engine

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xforce-bot/backend/internal/policy"
	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/internal/vector/milvus"
)

type fakeDirectory struct {
	emp *models.Employee
	err error
}

func (f *fakeDirectory) FindActiveEmployee(_ context.Context, _ int64, _ string) (*models.Employee, error) {
	return f.emp, f.err
}

type fakeAttendance struct {
	appends []models.LogEntry
	err     error
}

func (f *fakeAttendance) AppendLog(_ context.Context, employeeID, companyID string, day time.Time, entry models.LogEntry) (*models.AttendanceRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	f.appends = append(f.appends, entry)
	return &models.AttendanceRecord{
		EmployeeID: employeeID,
		CompanyID:  companyID,
		Day:        day,
		Status:     models.StatusAbsent,
		Logs:       f.appends,
	}, nil
}

type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) GenerateEmbedding(_ context.Context, _ string) ([]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return f.vec, nil
}

// fakeMemory records the order of reads and writes so tests can assert
// the query-before-upsert invariant.
type fakeMemory struct {
	matches   []milvus.Match
	queryErr  error
	upsertErr error
	upserts   []milvus.EntryMetadata
	events    []string
}

func (f *fakeMemory) Query(_ context.Context, _ []float32, employeeID string, _ int) ([]milvus.Match, error) {
	f.events = append(f.events, "query")
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	var out []milvus.Match
	for _, m := range f.matches {
		if m.Metadata.EmployeeID == employeeID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMemory) Upsert(_ context.Context, _ []float32, meta milvus.EntryMetadata) (string, error) {
	f.events = append(f.events, "upsert")
	if f.upsertErr != nil {
		return "", f.upsertErr
	}
	f.upserts = append(f.upserts, meta)
	return "entry-1", nil
}

type fakeTickets struct {
	opened []string
	err    error
	next   int
}

func (f *fakeTickets) OpenTicket(_ context.Context, _, _, issueType, remark string) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	f.opened = append(f.opened, issueType+"|"+remark)
	f.next++
	return 10000 + f.next, nil
}

func similarMatches(employeeID string, n int, score float32) []milvus.Match {
	matches := make([]milvus.Match, 0, n)
	for i := 0; i < n; i++ {
		matches = append(matches, milvus.Match{
			Score: score,
			Metadata: milvus.EntryMetadata{
				EmployeeID: employeeID,
				RawText:    "my train was late",
				EntryType:  milvus.EntryTypeAttendanceLog,
			},
		})
	}
	return matches
}

func testEngine(dir *fakeDirectory, att *fakeAttendance, emb *fakeEmbedder, mem MemoryStore, tix *fakeTickets) *Engine {
	return New(dir, att, emb, mem, tix, Config{SimilarityThreshold: 0.82, TopK: 10})
}

func activeEmployee() *models.Employee {
	return &models.Employee{
		ID:             "emp-1",
		EmployeeNumber: 6598000001,
		CompanyID:      "acme",
		IsActive:       true,
	}
}

func baseRequest() Request {
	return Request{
		Message:        "my train was late",
		EmployeeNumber: 6598000001,
		CompanyID:      "acme",
		Day:            time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC),
	}
}

func TestDecideNovelMessage(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1, 0.2}}
	mem := &fakeMemory{}
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, policy.ActionReply, resp.Action)
	assert.Equal(t, policy.TierNovel, resp.Tier)
	assert.Zero(t, resp.TicketNumber)
	assert.Empty(t, tix.opened)
	assert.Len(t, att.appends, 1)
	assert.Len(t, mem.upserts, 1)
}

func TestDecideRepeatedMessageStillReplies(t *testing.T) {
	for _, n := range []int{1, 2} {
		dir := &fakeDirectory{emp: activeEmployee()}
		att := &fakeAttendance{}
		emb := &fakeEmbedder{vec: []float32{0.1}}
		mem := &fakeMemory{matches: similarMatches("emp-1", n, 0.9)}
		tix := &fakeTickets{}

		resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
		require.NoError(t, err)

		assert.Equal(t, policy.ActionReply, resp.Action, "n=%d", n)
		assert.Equal(t, policy.TierRepeated, resp.Tier, "n=%d", n)
		assert.Equal(t, n, resp.SimilarCount, "n=%d", n)
		assert.Empty(t, tix.opened, "n=%d", n)
	}
}

func TestDecideFrequentEscalatesToLead(t *testing.T) {
	for _, n := range []int{3, 4} {
		dir := &fakeDirectory{emp: activeEmployee()}
		att := &fakeAttendance{}
		emb := &fakeEmbedder{vec: []float32{0.1}}
		mem := &fakeMemory{matches: similarMatches("emp-1", n, 0.9)}
		tix := &fakeTickets{}

		resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
		require.NoError(t, err)

		assert.Equal(t, policy.ActionEscalateLead, resp.Action, "n=%d", n)
		assert.NotZero(t, resp.TicketNumber, "n=%d", n)
		require.Len(t, tix.opened, 1, "n=%d", n)
		assert.Contains(t, tix.opened[0], models.IssueTypeTeamLead)
		assert.Contains(t, tix.opened[0], "my train was late")
	}
}

func TestDecidePersistentEscalatesToManager(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{matches: similarMatches("emp-1", 6, 0.9)}
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, policy.ActionEscalateManager, resp.Action)
	assert.Equal(t, policy.TierPersistent, resp.Tier)
	require.Len(t, tix.opened, 1)
	assert.Contains(t, tix.opened[0], models.IssueTypeManager)
	assert.Contains(t, tix.opened[0], "Similar to 6 past messages")
}

func TestDecideFiltersBelowThreshold(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{}
	mem.matches = append(mem.matches, similarMatches("emp-1", 2, 0.83)...)
	mem.matches = append(mem.matches, similarMatches("emp-1", 5, 0.80)...)
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 2, resp.SimilarCount)
	assert.Equal(t, policy.TierRepeated, resp.Tier)
}

func TestDecideEmployeeIsolation(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{matches: similarMatches("emp-other", 8, 0.99)}
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.NoError(t, err)

	assert.Equal(t, 0, resp.SimilarCount)
	assert.Equal(t, policy.TierNovel, resp.Tier)
	assert.Empty(t, tix.opened)
}

func TestDecideUpsertsOnlyAfterQuery(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{}
	tix := &fakeTickets{}

	_, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.NoError(t, err)

	require.Equal(t, []string{"query", "upsert"}, mem.events)

	require.Len(t, mem.upserts, 1)
	meta := mem.upserts[0]
	assert.Equal(t, "emp-1", meta.EmployeeID)
	assert.Equal(t, "my train was late", meta.RawText)
	assert.Equal(t, milvus.EntryTypeAttendanceLog, meta.EntryType)
	assert.False(t, meta.LoggedAt.IsZero())
}

func TestDecideEmployeeNotFound(t *testing.T) {
	dir := &fakeDirectory{}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{}
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrEmployeeNotFound)
	assert.Nil(t, resp)

	assert.Empty(t, att.appends, "no log append on unknown employee")
	assert.Zero(t, emb.calls, "no embedding call on unknown employee")
	assert.Empty(t, mem.events)
}

func TestDecideEmptyMessage(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	req := baseRequest()
	req.Message = ""

	_, err := testEngine(dir, &fakeAttendance{}, &fakeEmbedder{}, &fakeMemory{}, &fakeTickets{}).Decide(context.Background(), req)
	require.ErrorIs(t, err, ErrEmptyMessage)
}

func TestDecideEmbeddingFailureKeepsLogCommitted(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{err: errors.New("provider down")}
	mem := &fakeMemory{}
	tix := &fakeTickets{}

	_, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrEmbedding)

	assert.Len(t, att.appends, 1, "log append survives embedding failure")
	assert.Empty(t, mem.events, "no memory access after embedding failure")
}

func TestDecideVectorQueryFailureIsNotZeroMatches(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{queryErr: errors.New("store unreachable")}
	tix := &fakeTickets{}

	resp, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrVectorQuery)
	assert.Nil(t, resp, "a failed query must not classify as novel")
	assert.Empty(t, mem.upserts)
	assert.Empty(t, tix.opened)
}

func TestDecideTicketFailureSurfaced(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{matches: similarMatches("emp-1", 4, 0.9)}
	tix := &fakeTickets{err: errors.New("tickets table locked")}

	_, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrTicketCreate)
	assert.Empty(t, mem.upserts, "no memory write after ticket failure")
}

func TestDecideUpsertFailurePropagates(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &fakeMemory{upsertErr: errors.New("write rejected")}
	tix := &fakeTickets{}

	_, err := testEngine(dir, att, emb, mem, tix).Decide(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrVectorUpsert)
}

// statefulMemory behaves like the real store: each upsert becomes a
// high-similarity neighbor for later queries but never for the query of
// the call that wrote it.
type statefulMemory struct {
	entries []milvus.EntryMetadata
}

func (s *statefulMemory) Query(_ context.Context, _ []float32, employeeID string, topK int) ([]milvus.Match, error) {
	var out []milvus.Match
	for _, e := range s.entries {
		if e.EmployeeID == employeeID && len(out) < topK {
			out = append(out, milvus.Match{Score: 0.95, Metadata: e})
		}
	}
	return out, nil
}

func (s *statefulMemory) Upsert(_ context.Context, _ []float32, meta milvus.EntryMetadata) (string, error) {
	s.entries = append(s.entries, meta)
	return "entry", nil
}

func TestDecideRepeatedExcuseOverThreeDays(t *testing.T) {
	dir := &fakeDirectory{emp: activeEmployee()}
	att := &fakeAttendance{}
	emb := &fakeEmbedder{vec: []float32{0.1}}
	mem := &statefulMemory{}
	tix := &fakeTickets{}

	eng := testEngine(dir, att, emb, mem, tix)

	expected := []policy.Tier{policy.TierNovel, policy.TierRepeated, policy.TierRepeated}
	for i, tier := range expected {
		resp, err := eng.Decide(context.Background(), baseRequest())
		require.NoError(t, err, "call %d", i+1)
		assert.Equal(t, tier, resp.Tier, "call %d", i+1)
		assert.Equal(t, policy.ActionReply, resp.Action, "call %d", i+1)
	}
	assert.Empty(t, tix.opened)

	// Three more of the same excuse push the count past the persistent
	// boundary.
	var last *Response
	for i := 0; i < 3; i++ {
		var err error
		last, err = eng.Decide(context.Background(), baseRequest())
		require.NoError(t, err)
	}
	assert.Equal(t, policy.TierPersistent, last.Tier)
	assert.Equal(t, policy.ActionEscalateManager, last.Action)
}
