package archive

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-git/go-git/v5/plumbing"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ChuLiYu/atcoder-archive/internal/metrics"
	"github.com/ChuLiYu/atcoder-archive/internal/storage/history"
)

var errNoCode = errors.New("code not found")

// fakeFetcher 回傳固定程式碼，可指定特定提交失敗
type fakeFetcher struct {
	code  map[int64]string
	fail  map[int64]error
	calls []int64
}

func (f *fakeFetcher) FetchCode(ctx context.Context, contestID string, submissionID int64) (string, error) {
	f.calls = append(f.calls, submissionID)
	if err, ok := f.fail[submissionID]; ok {
		return "", err
	}
	if code, ok := f.code[submissionID]; ok {
		return code, nil
	}
	return "// submission " + contestID, nil
}

// retimeFailStore 包裝真正的 store，讓 Retime 回傳指定錯誤
type retimeFailStore struct {
	*history.Store
	err error
}

func (s *retimeFailStore) Retime(hash plumbing.Hash, when time.Time) (plumbing.Hash, error) {
	return plumbing.ZeroHash, s.err
}

func newMemoryStore(t *testing.T) *history.Store {
	t.Helper()
	store, err := history.NewMemory()
	require.NoError(t, err)
	return store
}

func entries(t *testing.T, store *history.Store) []history.Entry {
	t.Helper()
	var out []history.Entry
	require.NoError(t, store.Walk(context.Background(), func(e history.Entry) error {
		out = append(out, e)
		return nil
	}))
	return out
}

func TestArchive_WritesContentAndMetadata(t *testing.T) {
	store := newMemoryStore(t)
	s := sampleSubmission()
	fetcher := &fakeFetcher{code: map[int64]string{s.ID: "int main() {}\n"}}

	fetchTime := time.Unix(1900000000, 0)
	writer := NewWriter(store, fetcher, WithClock(func() time.Time { return fetchTime }))

	require.NoError(t, writer.Archive(context.Background(), s))

	data, err := store.ReadFile("C++ 20 (gcc 12.2)/abc300/abc300_a.cpp")
	require.NoError(t, err)
	assert.Equal(t, "int main() {}\n", string(data))

	got := entries(t, store)
	require.Len(t, got, 1)

	decoded, err := DecodeMessage(got[0].Message)
	require.NoError(t, err)
	assert.Equal(t, s, decoded)

	// commit 時間必須是提交時間，而不是抓取時間
	assert.Equal(t, s.EpochSecond, got[0].When.Unix())
}

func TestArchive_CausalOrder(t *testing.T) {
	store := newMemoryStore(t)
	writer := NewWriter(store, &fakeFetcher{})

	for i, epoch := range []int64{100, 150, 200} {
		s := sampleSubmission()
		s.ID = int64(i + 1)
		s.EpochSecond = epoch
		s.ProblemID = []string{"abc300_a", "abc300_b", "abc300_c"}[i]
		require.NoError(t, writer.Archive(context.Background(), s))
	}

	var whens []int64
	for _, e := range entries(t, store) {
		whens = append(whens, e.When.Unix())
	}
	assert.Equal(t, []int64{200, 150, 100}, whens)
}

func TestArchive_OverwritesExistingPath(t *testing.T) {
	store := newMemoryStore(t)
	first := sampleSubmission()
	second := sampleSubmission()
	second.ID++
	second.EpochSecond += 60

	fetcher := &fakeFetcher{code: map[int64]string{first.ID: "v1", second.ID: "v2"}}
	writer := NewWriter(store, fetcher)

	require.NoError(t, writer.Archive(context.Background(), first))
	require.NoError(t, writer.Archive(context.Background(), second))

	data, err := store.ReadFile(Path(second))
	require.NoError(t, err)
	assert.Equal(t, "v2", string(data))
	assert.Len(t, entries(t, store), 2)
}

func TestArchive_SameSubmissionTwice(t *testing.T) {
	store := newMemoryStore(t)
	writer := NewWriter(store, &fakeFetcher{})
	s := sampleSubmission()

	require.NoError(t, writer.Archive(context.Background(), s))
	require.NoError(t, writer.Archive(context.Background(), s))

	got := entries(t, store)
	require.Len(t, got, 2, "a duplicate entry is allowed when the driver guard is bypassed")
	for _, e := range got {
		decoded, err := DecodeMessage(e.Message)
		require.NoError(t, err)
		assert.Equal(t, s, decoded)
	}
}

func TestArchive_ContentNotFound(t *testing.T) {
	store := newMemoryStore(t)
	s := sampleSubmission()
	writer := NewWriter(store, &fakeFetcher{fail: map[int64]error{s.ID: errNoCode}})

	err := writer.Archive(context.Background(), s)
	assert.ErrorIs(t, err, errNoCode)
	assert.Empty(t, entries(t, store), "nothing should be committed")
}

func TestArchive_RetimeNoOpIsSwallowed(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := metrics.NewCollector()

	store := &retimeFailStore{Store: newMemoryStore(t), err: history.ErrNothingToRetime}
	writer := NewWriter(store, &fakeFetcher{}, WithMetrics(collector))

	require.NoError(t, writer.Archive(context.Background(), sampleSubmission()))
	assert.Len(t, entries(t, store.Store), 1)
}

func TestArchive_RetimeFailureKeepsEntry(t *testing.T) {
	prometheus.DefaultRegisterer = prometheus.NewRegistry()
	collector := metrics.NewCollector()

	fetchTime := time.Unix(1900000000, 0)
	store := &retimeFailStore{Store: newMemoryStore(t), err: errors.New("disk full")}
	writer := NewWriter(store, &fakeFetcher{},
		WithMetrics(collector),
		WithClock(func() time.Time { return fetchTime }))

	require.NoError(t, writer.Archive(context.Background(), sampleSubmission()))

	got := entries(t, store.Store)
	require.Len(t, got, 1)
	assert.Equal(t, fetchTime.Unix(), got[0].When.Unix(), "entry keeps its provisional time")

	_, err := DecodeMessage(got[0].Message)
	assert.NoError(t, err, "entry must stay decodable")
}

func TestWriterOptions(t *testing.T) {
	store := newMemoryStore(t)
	writer := NewWriter(store, &fakeFetcher{})

	assert.NotNil(t, writer.now)
	assert.NotNil(t, writer.logger)
	assert.Nil(t, writer.metrics)

	var _ Store = store
	var _ CodeFetcher = &fakeFetcher{}
}
