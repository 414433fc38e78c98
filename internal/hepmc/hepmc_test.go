package hepmc

import (
	"bytes"
	"errors"
	"io"
	"reflect"
	"strings"
	"testing"

	"eventmix/internal/mixer"
	"eventmix/pkg/genevent"
)

const sample = `HepMC::Version 3.02.06
HepMC::Asciiv3-START_EVENT_LISTING
W Default
T Pythia8@8.312
E 0 2 5
U GEV MM
W 0.5 2
A 0 signal_process_id 1
P 1 0 2212 0 0 6800 6800 0.938272 4
P 2 0 2212 0 0 -6800 6800 0.938272 4
V -1 0 [1,2] @ 0 0 0.1 0
P 3 -1 443 1 2 3 6 3.0969 2
P 4 3 13 0.5 1 1.5 2 0.105658 1
P 5 3 -13 0.5 1 1.5 2 0.105658 1
E 1 0 1
U GEV MM
P 1 0 22 0 0 1 1 0 1
HepMC::Asciiv3-END_EVENT_LISTING

`

func TestReaderParsesEvents(t *testing.T) {
	r := NewReader(strings.NewReader(sample))
	ev, err := r.Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if ev.Number != 0 || ev.NumParticles() != 5 || ev.NumVertices() != 2 {
		t.Fatalf("event %d with %d/%d", ev.Number, ev.NumParticles(), ev.NumVertices())
	}
	if !reflect.DeepEqual(ev.Weights, []float64{0.5, 2}) {
		t.Fatalf("weights %v", ev.Weights)
	}
	hard, _ := ev.Vertex(-1)
	if !reflect.DeepEqual(hard.In, []int{1, 2}) || !reflect.DeepEqual(hard.Out, []int{3}) || hard.Position.Z != 0.1 {
		t.Fatalf("hard vertex %+v", hard)
	}
	jpsi, _ := ev.Particle(3)
	if jpsi.EndVertex != -2 || jpsi.Daughter1 != 4 || jpsi.Daughter2 != 5 || jpsi.Mass != 3.0969 {
		t.Fatalf("implicit decay vertex not built: %+v", jpsi)
	}
	mu, _ := ev.Particle(5)
	if !mu.Final || mu.PID != -13 || mu.ProductionVertex != -2 {
		t.Fatalf("muon %+v", mu)
	}

	second, err := r.Read()
	if err != nil || second.Number != 1 || second.NumParticles() != 1 || second.Weight() != 1 {
		t.Fatalf("second event %+v err %v", second, err)
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("EOF must be sticky, got %v", err)
	}
}

func TestReaderWithoutEndMarker(t *testing.T) {
	r := NewReader(strings.NewReader("E 4 0 1\nP 1 0 22 0 0 1 1 0 1\n"))
	ev, err := r.Read()
	if err != nil || ev.Number != 4 {
		t.Fatalf("read: %v", err)
	}
	if _, err := r.Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderEmptyInput(t *testing.T) {
	if _, err := NewReader(strings.NewReader("")).Read(); !errors.Is(err, io.EOF) {
		t.Fatalf("expected EOF, got %v", err)
	}
}

func TestReaderRejectsMalformedLines(t *testing.T) {
	cases := map[string]string{
		"bad weight":      "E 0 0 0\nW x\n",
		"short particle":  "E 0 0 0\nP 1 0 22\n",
		"unknown vertex":  "E 0 0 1\nP 1 -4 22 0 0 1 1 0 1\n",
		"unknown parent":  "E 0 0 1\nP 1 7 22 0 0 1 1 0 1\n",
		"positive vertex": "E 0 1 0\nV 3 0 []\n",
		"no list":         "E 0 1 0\nV -1 0\n",
		"bad position":    "E 0 1 0\nV -1 0 [] @ 1 2\n",
		"unknown type":    "E 0 0 0\nQ 1\n",
		"duplicate":       "E 0 0 2\nP 1 0 22 0 0 1 1 0 1\nP 1 0 22 0 0 1 1 0 1\n",
	}
	for name, body := range cases {
		if _, err := NewReader(strings.NewReader(body)).Read(); !errors.Is(err, ErrMalformed) {
			t.Fatalf("%s: expected ErrMalformed, got %v", name, err)
		}
	}
}

func TestWriter3RoundTrip(t *testing.T) {
	src, err := NewReader(strings.NewReader(sample)).Read()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var buf bytes.Buffer
	w := NewWriter3(&buf)
	if err := w.Write(src); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := buf.String()
	if !strings.HasPrefix(out, "HepMC::Version 3.02.06\nHepMC::Asciiv3-START_EVENT_LISTING\nE 0 2 5\nU GEV MM\nW 0.5 2\n") {
		t.Fatalf("unexpected header:\n%s", out)
	}
	if !strings.HasSuffix(out, "HepMC::Asciiv3-END_EVENT_LISTING\n\n") {
		t.Fatalf("missing footer:\n%s", out)
	}
	back, err := NewReader(strings.NewReader(out)).Read()
	if err != nil {
		t.Fatalf("reread: %v", err)
	}
	if back.NumParticles() != 5 || back.NumVertices() != 2 {
		t.Fatalf("round trip counts %d/%d", back.NumParticles(), back.NumVertices())
	}
	jpsi, _ := back.Particle(3)
	if jpsi.PID != 443 || jpsi.Daughter1 != 4 || jpsi.Daughter2 != 5 {
		t.Fatalf("round trip decay %+v", jpsi)
	}
	v, _ := back.Vertex(-1)
	if v.Position.Z != 0.1 {
		t.Fatalf("vertex position lost %+v", v)
	}
}

func TestWriter3RenumbersSparseIDs(t *testing.T) {
	ev := genevent.New(3)
	for _, p := range []genevent.Particle{
		{ID: 100001, PID: 2212, Status: -12},
		{ID: 100007, PID: 443, Status: -91, Mass: 3.1},
		{ID: 100009, PID: 13, Status: 91, Final: true},
	} {
		_ = ev.AddParticle(p)
	}
	_ = ev.AddVertex(genevent.Vertex{ID: -100005, Out: []int{100009}, In: []int{100007}})
	_ = ev.AddVertex(genevent.Vertex{ID: -100001, In: []int{100001}, Out: []int{100007}})
	var buf bytes.Buffer
	w := NewWriter3(&buf)
	if err := w.Write(ev); err != nil {
		t.Fatalf("write: %v", err)
	}
	want := []string{
		"E 3 2 3",
		"U GEV MM",
		"W 1",
		"P 1 0 2212 0 0 0 0 0 4",
		"V -1 0 [1]",
		"P 2 -1 443 0 0 0 0 3.1 2",
		"V -2 0 [2]",
		"P 3 -2 13 0 0 0 0 0 1",
	}
	got := strings.Split(strings.TrimSpace(buf.String()), "\n")[2:]
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("got\n%s\nwant\n%s", strings.Join(got, "\n"), strings.Join(want, "\n"))
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := w.Write(ev); err == nil {
		t.Fatalf("write after close must fail")
	}
}

func TestRecordStatus(t *testing.T) {
	cases := []struct {
		p    genevent.Particle
		want int
	}{
		{genevent.Particle{Status: 91, Final: true}, 1},
		{genevent.Particle{Status: -91}, 2},
		{genevent.Particle{Status: -83}, 2},
		{genevent.Particle{Status: -12}, 4},
		{genevent.Particle{Status: -23}, 23},
		{genevent.Particle{Status: 62}, 62},
	}
	for _, c := range cases {
		if got := RecordStatus(c.p); got != c.want {
			t.Fatalf("RecordStatus(%+v)=%d want %d", c.p, got, c.want)
		}
	}
}

func TestWriter2Layout(t *testing.T) {
	ev := genevent.New(12)
	ev.Weights = []float64{0.25}
	for _, p := range []genevent.Particle{
		{ID: 1, PID: 2212, Status: 4, Momentum: genevent.FourVector{Pz: 7, E: 7}, Mass: 0.938},
		{ID: 2, PID: 443, Status: 2, Mass: 3.1},
		{ID: 3, PID: 13, Status: 1},
		{ID: 9, PID: 22, Status: 1},
	} {
		_ = ev.AddParticle(p)
	}
	_ = ev.AddVertex(genevent.Vertex{ID: -1, Position: genevent.Position{Z: 0.5}, In: []int{1}, Out: []int{2}})
	_ = ev.AddVertex(genevent.Vertex{ID: -2, In: []int{2}, Out: []int{3}})
	var buf bytes.Buffer
	w := NewWriter2(&buf)
	if err := w.Write(ev); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	want := strings.Join([]string{
		"HepMC::Version 2.06.09",
		"HepMC::IO_GenEvent-START_EVENT_LISTING",
		"E 12 -1 -1 -1 -1 0 0 2 0 0 0 1 0.25",
		"U GEV MM",
		"V -1 0 0 0 0.5 0 1 1 0",
		"P 1 2212 0 0 7 7 0.938 4 0 0 -1 0",
		"P 2 443 0 0 0 0 3.1 2 0 0 -2 0",
		"V -2 0 0 0 0 0 0 1 0",
		"P 3 13 0 0 0 0 0 1 0 0 0 0",
		"HepMC::IO_GenEvent-END_EVENT_LISTING",
		"",
	}, "\n")
	if buf.String() != want {
		t.Fatalf("got\n%s\nwant\n%s", buf.String(), want)
	}
}

// vertexZeroSource produces a J/psi at vertex 0 that decays at vertex -1.
func vertexZeroSource(t *testing.T) *genevent.Event {
	t.Helper()
	ev := genevent.New(0)
	ev.Weights = []float64{1}
	for _, p := range []genevent.Particle{
		{ID: 0, PID: genevent.PIDJpsi, Status: 2, Mass: 3.1},
		{ID: 1, PID: genevent.PIDMuon, Status: 1},
	} {
		if err := ev.AddParticle(p); err != nil {
			t.Fatalf("add particle: %v", err)
		}
	}
	if err := ev.AddVertex(genevent.Vertex{ID: 0, Out: []int{0}}); err != nil {
		t.Fatalf("add vertex: %v", err)
	}
	if err := ev.AddVertex(genevent.Vertex{ID: -1, In: []int{0}, Out: []int{1}}); err != nil {
		t.Fatalf("add vertex: %v", err)
	}
	return ev
}

func particleLines(out string) map[string]int {
	seen := make(map[string]int)
	for _, line := range strings.Split(out, "\n") {
		if fields := strings.Fields(line); len(fields) > 1 && fields[0] == "P" {
			seen[fields[1]]++
		}
	}
	return seen
}

func TestWriter2WritesMergedVertexZeroParticlesOnce(t *testing.T) {
	m, err := mixer.NewMerger(mixer.DefaultStep)
	if err != nil {
		t.Fatalf("merger: %v", err)
	}
	src := vertexZeroSource(t)
	merged := m.Merge([]*genevent.Event{src, src, src}, 5)
	var buf bytes.Buffer
	w := NewWriter2(&buf)
	if err := w.Write(merged); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	seen := particleLines(buf.String())
	for _, id := range []string{"0", "1", "100000", "100001", "200000", "200001"} {
		if seen[id] != 1 {
			t.Fatalf("particle %s written %d times:\n%s", id, seen[id], buf.String())
		}
	}
	if len(seen) != 6 {
		t.Fatalf("unexpected particles %v", seen)
	}
	if !strings.Contains(buf.String(), "V 0 0 0 0 0 0 0 1 0\n") {
		t.Fatalf("vertex 0 must have no orphan inputs:\n%s", buf.String())
	}
}

func TestWriter3PlacesVertexZeroParticlesAfterTheirVertex(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter3(&buf)
	if err := w.Write(vertexZeroSource(t)); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "E 0 2 2\n") || !strings.Contains(out, "V -1 0 []\nP 1 -1 443 ") || !strings.Contains(out, "V -2 0 [1]\nP 2 -2 13 ") {
		t.Fatalf("unexpected topology:\n%s", out)
	}
}

func TestCloseWithoutEventsWritesEmptyListing(t *testing.T) {
	var buf bytes.Buffer
	if err := NewWriter2(&buf).Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !strings.Contains(buf.String(), startListing2) || !strings.Contains(buf.String(), endListing2) {
		t.Fatalf("empty listing %q", buf.String())
	}
}
