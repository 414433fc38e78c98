package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"eventmix/internal/mixer"
	"eventmix/internal/shower"
)

var (
	_ mixer.Recorder  = (*Recorder)(nil)
	_ shower.Recorder = (*Recorder)(nil)
)

func TestMixerCounters(t *testing.T) {
	r := New("eventmix")
	r.SourceRead(0)
	r.SourceRead(1)
	r.SourceRead(1)
	r.Merged(6, 3)
	r.Merged(4, 2)
	if got := testutil.ToFloat64(r.sourceReads.WithLabelValues("1")); got != 2 {
		t.Fatalf("source 1 reads %v", got)
	}
	if got := testutil.ToFloat64(r.mergedEvents); got != 2 {
		t.Fatalf("merged events %v", got)
	}
	if got := testutil.ToFloat64(r.mergedParticles); got != 10 {
		t.Fatalf("merged particles %v", got)
	}
	if got := testutil.ToFloat64(r.mergedVertices); got != 5 {
		t.Fatalf("merged vertices %v", got)
	}
}

func TestShowerCounters(t *testing.T) {
	r := New("shower")
	r.Pulled()
	r.Attempts("rejected", 3)
	r.Attempts("accepted", 1)
	r.Attempts("failed", 0)
	r.Outcome("accepted")
	r.GenerationFailure()
	r.Efficiency(50)
	if got := testutil.ToFloat64(r.attempts.WithLabelValues("rejected")); got != 3 {
		t.Fatalf("rejected attempts %v", got)
	}
	if got := testutil.CollectAndCount(r.attempts); got != 2 {
		t.Fatalf("attempt series %d", got)
	}
	if got := testutil.ToFloat64(r.efficiency); got != 50 {
		t.Fatalf("efficiency %v", got)
	}
	expected := `
# HELP eventmix_shower_generation_failures_total Transient event generation failures.
# TYPE eventmix_shower_generation_failures_total counter
eventmix_shower_generation_failures_total{tool="shower"} 1
`
	if err := testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "eventmix_shower_generation_failures_total"); err != nil {
		t.Fatalf("gather: %v", err)
	}
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.SourceRead(0)
	r.Merged(1, 1)
	r.Pulled()
	r.Attempts("accepted", 1)
	r.Outcome("accepted")
	r.GenerationFailure()
	r.Efficiency(1)
	if r.Registry() != nil {
		t.Fatalf("nil recorder registry")
	}
	if err := r.WriteTextfile("/nonexistent/x.prom"); err != nil {
		t.Fatalf("nil write: %v", err)
	}
}

func TestWriteTextfile(t *testing.T) {
	r := New("eventmix")
	r.Merged(2, 1)
	path := filepath.Join(t.TempDir(), "eventmix.prom")
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("write: %v", err)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if !strings.Contains(string(b), `eventmix_mixer_merged_events_total{tool="eventmix"} 1`) {
		t.Fatalf("textfile:\n%s", b)
	}
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), "missing", "x.prom")); err == nil {
		t.Fatalf("write into missing dir succeeded")
	}
}
