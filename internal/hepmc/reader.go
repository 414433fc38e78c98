// Package hepmc reads and writes generator event records in the HepMC3
// Asciiv3 format and writes the legacy HepMC2 IO_GenEvent format.
package hepmc

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"eventmix/pkg/genevent"
)

const (
	version3     = "3.02.06"
	startListing = "HepMC::Asciiv3-START_EVENT_LISTING"
	endListing   = "HepMC::Asciiv3-END_EVENT_LISTING"
	maxLineBytes = 16 << 20
)

// ErrMalformed wraps every parse error returned by Reader.
var ErrMalformed = errors.New("hepmc: malformed record")

// Reader decodes Asciiv3 events one at a time.
type Reader struct {
	sc      *bufio.Scanner
	line    int
	pending string
	done    bool
}

// NewReader returns a Reader over r.
func NewReader(r io.Reader) *Reader {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	return &Reader{sc: sc}
}

// Read returns the next event, or io.EOF when the listing is exhausted.
func (r *Reader) Read() (*genevent.Event, error) {
	var (
		ev  *genevent.Event
		err error
	)
	for {
		text, ok := r.next()
		if !ok {
			if serr := r.sc.Err(); serr != nil {
				return nil, fmt.Errorf("hepmc: read: %w", serr)
			}
			break
		}
		if text == "" || strings.HasPrefix(text, "HepMC::") {
			if text == endListing {
				r.done = true
				break
			}
			continue
		}
		if text[0] == 'E' && ev != nil {
			r.pending = text
			break
		}
		if ev == nil && text[0] != 'E' {
			// run-level W, T and A lines before the first event
			continue
		}
		if ev, err = r.apply(ev, text); err != nil {
			return nil, err
		}
	}
	if ev == nil {
		return nil, io.EOF
	}
	deriveDaughters(ev)
	return ev, nil
}

func (r *Reader) next() (string, bool) {
	if r.pending != "" {
		text := r.pending
		r.pending = ""
		return text, true
	}
	if r.done || !r.sc.Scan() {
		return "", false
	}
	r.line++
	return strings.TrimSpace(r.sc.Text()), true
}

func (r *Reader) malformed(format string, args ...any) error {
	return fmt.Errorf("%w: line %d: %s", ErrMalformed, r.line, fmt.Sprintf(format, args...))
}

func (r *Reader) apply(ev *genevent.Event, text string) (*genevent.Event, error) {
	fields := strings.Fields(text)
	switch fields[0] {
	case "E":
		if len(fields) < 2 {
			return nil, r.malformed("short event line")
		}
		num, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, r.malformed("event number %q", fields[1])
		}
		return genevent.New(num), nil
	case "W":
		ws := make([]float64, 0, len(fields)-1)
		for _, f := range fields[1:] {
			w, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, r.malformed("weight %q", f)
			}
			ws = append(ws, w)
		}
		ev.Weights = ws
	case "V":
		if err := r.vertex(ev, text); err != nil {
			return nil, err
		}
	case "P":
		if err := r.particle(ev, fields); err != nil {
			return nil, err
		}
	case "U", "A", "T", "C", "F":
		// units, attributes, tool info, cross section and pdf info carry
		// nothing the event graph models
	default:
		return nil, r.malformed("unknown line type %q", fields[0])
	}
	return ev, nil
}

// vertex parses "V id status [in,...] @ x y z t"; the position is optional.
func (r *Reader) vertex(ev *genevent.Event, text string) error {
	open := strings.IndexByte(text, '[')
	closing := strings.IndexByte(text, ']')
	if open < 0 || closing < open {
		return r.malformed("vertex without incoming list")
	}
	head := strings.Fields(text[:open])
	if len(head) < 2 {
		return r.malformed("short vertex line")
	}
	id, err := strconv.Atoi(head[1])
	if err != nil || id >= 0 {
		return r.malformed("vertex id %q", head[1])
	}
	v := genevent.Vertex{ID: id}
	for _, s := range strings.Split(text[open+1:closing], ",") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		in, err := strconv.Atoi(s)
		if err != nil {
			return r.malformed("incoming id %q", s)
		}
		v.In = append(v.In, in)
	}
	if tail := strings.Fields(text[closing+1:]); len(tail) > 0 {
		if tail[0] != "@" || len(tail) < 5 {
			return r.malformed("vertex position")
		}
		vals, err := floats(tail[1:5])
		if err != nil {
			return r.malformed("vertex position: %v", err)
		}
		v.Position = genevent.Position{X: vals[0], Y: vals[1], Z: vals[2], T: vals[3]}
	}
	if err := ev.AddVertex(v); err != nil {
		return r.malformed("%v", err)
	}
	return nil
}

// particle parses "P id parent pid px py pz e m status". A positive parent
// is a particle id whose end vertex is implicit.
func (r *Reader) particle(ev *genevent.Event, fields []string) error {
	if len(fields) < 10 {
		return r.malformed("short particle line")
	}
	ints := make([]int, 3)
	for i, f := range fields[1:4] {
		v, err := strconv.Atoi(f)
		if err != nil {
			return r.malformed("particle field %q", f)
		}
		ints[i] = v
	}
	kin, err := floats(fields[4:9])
	if err != nil {
		return r.malformed("particle momentum: %v", err)
	}
	status, err := strconv.Atoi(fields[9])
	if err != nil {
		return r.malformed("particle status %q", fields[9])
	}
	p := genevent.Particle{
		ID:       ints[0],
		PID:      ints[2],
		Momentum: genevent.FourVector{Px: kin[0], Py: kin[1], Pz: kin[2], E: kin[3]},
		Mass:     kin[4],
		Status:   status,
		Final:    status == 1,
	}
	if err := ev.AddParticle(p); err != nil {
		return r.malformed("%v", err)
	}
	parent := ints[1]
	switch {
	case parent < 0:
		if !ev.AttachOut(parent, p.ID) {
			return r.malformed("particle %d references unknown vertex %d", p.ID, parent)
		}
	case parent > 0:
		mother, ok := ev.Particle(parent)
		if !ok {
			return r.malformed("particle %d references unknown parent %d", p.ID, parent)
		}
		end, ok := mother.EndsAt()
		if !ok {
			end = nextVertexID(ev)
			if err := ev.AddVertex(genevent.Vertex{ID: end, In: []int{parent}}); err != nil {
				return r.malformed("%v", err)
			}
		}
		ev.AttachOut(end, p.ID)
	}
	return nil
}

// nextVertexID follows the writer's numbering: vertices are -1, -2, ... in
// order of appearance.
func nextVertexID(ev *genevent.Event) int {
	id := -(ev.NumVertices() + 1)
	if _, taken := ev.Vertex(id); taken {
		id = ev.MinVertexID() - 1
	}
	return id
}

// deriveDaughters sets Daughter1..Daughter2 for particles whose decay
// products occupy a contiguous id range.
func deriveDaughters(ev *genevent.Event) {
	for _, p := range ev.Particles() {
		end, ok := p.EndsAt()
		if !ok {
			continue
		}
		v, _ := ev.Vertex(end)
		if len(v.Out) == 0 {
			continue
		}
		lo, hi := v.Out[0], v.Out[0]
		for _, id := range v.Out[1:] {
			lo, hi = min(lo, id), max(hi, id)
		}
		if hi-lo+1 != len(v.Out) {
			continue
		}
		p.Daughter1, p.Daughter2 = lo, hi
		ev.SetParticle(p)
	}
}

func floats(fields []string) ([]float64, error) {
	out := make([]float64, len(fields))
	for i, f := range fields {
		v, err := strconv.ParseFloat(f, 64)
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}
