package influxdb

import (
	"errors"
	"testing"
	"time"
)

func TestSweepPoint(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	p := sweepPoint("lanregistry", SweepStats{
		At:           at,
		Online:       7,
		Offline:      2,
		Transitioned: 1,
		Duration:     1500 * time.Microsecond,
	})

	if p.Name() != measurementSweep {
		t.Errorf("Name() = %q, want %q", p.Name(), measurementSweep)
	}
	if !p.Time().Equal(at) {
		t.Errorf("Time() = %v, want %v", p.Time(), at)
	}

	tags := map[string]string{}
	for _, tag := range p.TagList() {
		tags[tag.Key] = tag.Value
	}
	if tags["service"] != "lanregistry" {
		t.Errorf("service tag = %q, want lanregistry", tags["service"])
	}

	fields := map[string]interface{}{}
	for _, f := range p.FieldList() {
		fields[f.Key] = f.Value
	}
	want := map[string]interface{}{
		"online":       int64(7),
		"offline":      int64(2),
		"transitioned": int64(1),
		"duration_ms":  1.5,
	}
	for k, v := range want {
		if fields[k] != v {
			t.Errorf("field %s = %v (%T), want %v (%T)", k, fields[k], fields[k], v, v)
		}
	}
}

func TestSweepPoint_NoServiceTag(t *testing.T) {
	p := sweepPoint("", SweepStats{})
	if len(p.TagList()) != 0 {
		t.Errorf("TagList() = %v, want none", p.TagList())
	}
	if p.Time().IsZero() {
		t.Error("zero At should be stamped with the current time")
	}
}

func TestHandleWriteErrors_WrapsWriteFailed(t *testing.T) {
	c := &Client{}
	got := make(chan error, 1)
	c.SetOnError(func(err error) { got <- err })

	cause := errors.New("bucket not found")
	errorsCh := make(chan error, 1)
	errorsCh <- cause
	close(errorsCh)

	c.handleWriteErrors(errorsCh)

	select {
	case err := <-got:
		if !errors.Is(err, ErrWriteFailed) || !errors.Is(err, cause) {
			t.Errorf("callback error = %v, want ErrWriteFailed wrapping the cause", err)
		}
	default:
		t.Fatal("callback not invoked")
	}
}
