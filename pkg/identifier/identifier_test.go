package identifier

import (
	"regexp"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var formats = map[Prefix]*regexp.Regexp{
	PrefixSchoolRequest: regexp.MustCompile(`^AE\d{13}[0-9A-F]{8}$`),
	PrefixAuthorization: regexp.MustCompile(`^AUTH\d{13}[0-9A-F]{8}$`),
	PrefixLicense:       regexp.MustCompile(`^LIC\d{13}[0-9A-F]{8}$`),
	PrefixEvaluation:    regexp.MustCompile(`^EVAL\d{13}[0-9A-F]{8}$`),
	PrefixExam:          regexp.MustCompile(`^EXAM\d{13}[0-9A-F]{8}$`),
}

func TestFormat(t *testing.T) {
	g := New()
	for prefix, re := range formats {
		t.Run(string(prefix), func(t *testing.T) {
			got := g.Next(prefix)
			assert.Regexp(t, re, got)
			assert.True(t, HasPrefix(got, prefix))
		})
	}

	assert.Regexp(t, formats[PrefixSchoolRequest], g.RequestNumber())
	assert.Regexp(t, formats[PrefixAuthorization], g.AuthorizationCode())
	assert.Regexp(t, formats[PrefixLicense], g.LicenseNumber())
	assert.Regexp(t, formats[PrefixEvaluation], g.EvaluationNumber())
	assert.Regexp(t, formats[PrefixExam], g.ExamNumber())
}

func TestDeterministicWithInjectedSources(t *testing.T) {
	at := time.UnixMilli(1700000000123)
	g := New(
		WithClock(func() time.Time { return at }),
		WithRandomSource(func() string { return "abcdef12-3456" }),
	)
	assert.Equal(t, "LIC1700000000123ABCDEF12", g.LicenseNumber())
}

func TestHasPrefixRejectsForeignValues(t *testing.T) {
	assert.False(t, HasPrefix("AUTH1700000000123ABCDEF12", PrefixSchoolRequest))
	assert.False(t, HasPrefix("AE123", PrefixSchoolRequest))
}

func TestConcurrentCallersDoNotCollide(t *testing.T) {
	g := New()
	const workers, perWorker = 16, 500

	var (
		mu   sync.Mutex
		seen = make(map[string]struct{}, workers*perWorker)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			local := make([]string, 0, perWorker)
			for i := 0; i < perWorker; i++ {
				local = append(local, g.ExamNumber())
			}
			mu.Lock()
			defer mu.Unlock()
			for _, v := range local {
				seen[v] = struct{}{}
			}
		}()
	}
	wg.Wait()
	require.Len(t, seen, workers*perWorker)
}

func TestSortableIsOrderedWithinMillisecond(t *testing.T) {
	at := time.UnixMilli(1700000000000)
	first := Sortable(at)
	second := Sortable(at)
	assert.Len(t, first, 26)
	assert.Less(t, first, second)
}
