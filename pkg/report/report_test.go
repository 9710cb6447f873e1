package report

import (
	"bytes"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"gitlab.com/gomidi/midi/v2"
	gosmf "gitlab.com/gomidi/midi/v2/smf"

	"github.com/zurustar/smfdecode/pkg/smf"
)

// parsedSong builds a two-track file with gomidi and parses it.
// Track 0 switches to 60 BPM at tick 480; track 1 holds four channel messages.
func parsedSong(t *testing.T) *smf.Parser {
	t.Helper()

	var conductor gosmf.Track
	conductor.Add(0, gosmf.MetaTrackSequenceName("Conductor"))
	conductor.Add(480, gosmf.MetaTempo(60))
	conductor.Close(0)

	var piano gosmf.Track
	piano.Add(0, gosmf.MetaTrackSequenceName("Piano"))
	piano.Add(0, midi.ProgramChange(0, 5))
	piano.Add(0, midi.NoteOn(0, 60, 100))
	piano.Add(480, midi.NoteOff(0, 60))
	piano.Add(480, midi.NoteOn(0, 64, 90))
	piano.Close(0)

	s := gosmf.New()
	s.TimeFormat = gosmf.MetricTicks(480)
	if err := s.Add(conductor); err != nil {
		t.Fatal(err)
	}
	if err := s.Add(piano); err != nil {
		t.Fatal(err)
	}

	var buf bytes.Buffer
	if _, err := s.WriteTo(&buf); err != nil {
		t.Fatalf("Failed to write SMF: %v", err)
	}

	p := smf.NewParser(smf.WithWorkers(2))
	if err := p.Parse(&buf); err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return p
}

func TestWrite_Text(t *testing.T) {
	p := parsedSong(t)

	var out bytes.Buffer
	if err := Write(&out, p, Options{Title: "song.mid", Tracks: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	text := out.String()

	for _, want := range []string{
		"song.mid",
		"format 1 · 2 tracks · 480 ppqn",
		"4 events · 1.5s",
		"500,000 µs/qn",
		"1,000,000 µs/qn",
		"60.00 bpm",
		"ProgramChange",
		"NoteOn",
		"1,500,000,000 ns",
		"Conductor",
		"Piano",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("text report missing %q:\n%s", want, text)
		}
	}
}

func TestWrite_Limit(t *testing.T) {
	p := parsedSong(t)

	var out bytes.Buffer
	if err := Write(&out, p, Options{Limit: 1}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}
	text := out.String()
	if !strings.Contains(text, "... 3 more events") {
		t.Errorf("expected omitted count in report:\n%s", text)
	}
	if strings.Contains(text, "NoteOn") {
		t.Error("events past the limit should not be listed")
	}
	if strings.Contains(text, "Tracks") {
		t.Error("track summary should be off by default")
	}
}

func TestWrite_JSON(t *testing.T) {
	p := parsedSong(t)

	var out bytes.Buffer
	if err := Write(&out, p, Options{Format: FormatJSON, Tracks: true}); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	var doc document
	if err := json.Unmarshal(out.Bytes(), &doc); err != nil {
		t.Fatalf("report is not valid JSON: %v\n%s", err, out.String())
	}

	if doc.Format != 1 || doc.Tracks != 2 || doc.PPQN != 480 {
		t.Errorf("unexpected header fields: %+v", doc)
	}
	if doc.EventCount != 4 || len(doc.Events) != 4 {
		t.Fatalf("expected 4 events, got count=%d listed=%d", doc.EventCount, len(doc.Events))
	}
	if doc.DurationNs != 1_500_000_000 {
		t.Errorf("expected duration 1.5s, got %d", doc.DurationNs)
	}
	if len(doc.Tempo) != 2 || doc.Tempo[1].Tick != 480 || doc.Tempo[1].Ns != 500_000_000 {
		t.Errorf("unexpected tempo map: %+v", doc.Tempo)
	}

	last := doc.Events[3]
	if last.Index != 3 || last.Ns != 1_500_000_000 || last.Status != 0x90 || last.Data1 != 64 {
		t.Errorf("unexpected last event: %+v", last)
	}
	if !strings.Contains(last.Message, "NoteOn") {
		t.Errorf("unexpected message %q", last.Message)
	}
	for _, e := range doc.Events {
		if e.SysEx != "" {
			t.Errorf("non-sysex event %d should omit the payload", e.Index)
		}
	}

	if len(doc.TrackInfo) != 2 || doc.TrackInfo[0].Events != 0 || doc.TrackInfo[1].Events != 4 {
		t.Errorf("unexpected track summary: %+v", doc.TrackInfo)
	}
	if doc.TrackInfo[1].Name != "Piano" {
		t.Errorf("expected track name Piano, got %q", doc.TrackInfo[1].Name)
	}
}

func TestWrite_NotParsed(t *testing.T) {
	var out bytes.Buffer
	err := Write(&out, smf.NewParser(), Options{})
	if !errors.Is(err, smf.ErrNotParsed) {
		t.Errorf("expected ErrNotParsed, got %v", err)
	}
	if out.Len() != 0 {
		t.Error("nothing should be written for an unparsed source")
	}
}

func TestWrite_UnknownFormat(t *testing.T) {
	if err := Write(&bytes.Buffer{}, parsedSong(t), Options{Format: "xml"}); err == nil {
		t.Error("expected error for unknown format")
	}
}

func TestDescribe(t *testing.T) {
	tests := []struct {
		name  string
		event smf.Event
		want  string
	}{
		{"note on", smf.Event{Status: 0x90, Data1: 60, Data2: 100}, "NoteOn"},
		{"program change", smf.Event{Status: 0xC3, Data1: 7}, "ProgramChange"},
		{"sysex", smf.Event{Status: 0xF0, SysEx: []byte{0x01, 0xF7}}, "SysEx len: 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := describe(tt.event); !strings.Contains(got, tt.want) {
				t.Errorf("describe = %q, want it to contain %q", got, tt.want)
			}
		})
	}
}
