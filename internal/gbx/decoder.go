package gbx

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"strconv"
	"time"
)

// headerDecoder implements Decoder over the uncompressed header chunks.
// The game always stores the XML chunk uncompressed, so decoding it never
// requires the body codec.
type headerDecoder struct{}

// NewDecoder returns the header-based Decoder implementation.
func NewDecoder() Decoder {
	return headerDecoder{}
}

// unlimiterChunkSig is the chunk class of TMUnlimiter's custom block
// data, little-endian as it appears in the container.
var unlimiterChunkSig = []byte{0x00, 0x10, 0x00, 0x3f}

var unlimiterMarker = []byte("TMUnlimiter")

type xmlIdent struct {
	UID    string `xml:"uid,attr"`
	Name   string `xml:"name,attr"`
	Author string `xml:"author,attr"`
}

type xmlDesc struct {
	Envir  string `xml:"envir,attr"`
	Car    string `xml:"car,attr"`
	Mood   string `xml:"mood,attr"`
	Type   string `xml:"type,attr"`
	NbLaps string `xml:"nblaps,attr"`
	SizeX  string `xml:"sizex,attr"`
	SizeY  string `xml:"sizey,attr"`
	SizeZ  string `xml:"sizez,attr"`
}

type xmlTimes struct {
	Bronze      string `xml:"bronze,attr"`
	Silver      string `xml:"silver,attr"`
	Gold        string `xml:"gold,attr"`
	AuthorTime  string `xml:"authortime,attr"`
	AuthorScore string `xml:"authorscore,attr"`

	// Replay-side attributes.
	Best       string `xml:"best,attr"`
	Respawns   string `xml:"respawns,attr"`
	StuntScore string `xml:"stuntscore,attr"`
}

type xmlHeader struct {
	Type      string    `xml:"type,attr"`
	Ident     *xmlIdent `xml:"ident"`
	Challenge *xmlIdent `xml:"challenge"`
	Desc      *xmlDesc  `xml:"desc"`
	Times     *xmlTimes `xml:"times"`
}

// extractHeaderXML locates the embedded XML chunk. It returns the XML
// bytes and the offset just past the closing tag, which marks where the
// body scan should start.
func extractHeaderXML(data []byte) ([]byte, int, error) {
	start := bytes.Index(data, []byte("<header "))
	if start < 0 {
		return nil, 0, fmt.Errorf("gbx: no XML header chunk found")
	}
	rel := bytes.Index(data[start:], []byte("</header>"))
	if rel < 0 {
		return nil, 0, fmt.Errorf("gbx: XML header chunk is truncated")
	}
	end := start + rel + len("</header>")
	return data[start:end], end, nil
}

func parseHeader(data []byte) (*xmlHeader, int, error) {
	if err := checkMagic(data); err != nil {
		return nil, 0, err
	}
	raw, bodyStart, err := extractHeaderXML(data)
	if err != nil {
		return nil, 0, err
	}
	var h xmlHeader
	if err := xml.Unmarshal(raw, &h); err != nil {
		return nil, 0, fmt.Errorf("gbx: malformed XML header: %w", err)
	}
	return &h, bodyStart, nil
}

func (headerDecoder) DecodeTrack(data []byte) (*TrackRecord, error) {
	h, bodyStart, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Type != "challenge" && h.Type != "map" {
		return nil, fmt.Errorf("gbx: expected challenge header, got %q", h.Type)
	}
	if h.Ident == nil || h.Ident.UID == "" {
		return nil, fmt.Errorf("gbx: challenge header has no ident")
	}

	rec := &TrackRecord{
		UID:    h.Ident.UID,
		Name:   h.Ident.Name,
		Author: h.Ident.Author,
	}
	if h.Desc != nil {
		rec.Environment = h.Desc.Envir
		rec.Mood = h.Desc.Mood
		rec.Mode = parsePlayMode(h.Desc.Type)
		rec.Laps = atoiOr(h.Desc.NbLaps, 0)
		rec.Vehicle = h.Desc.Car
		if rec.Vehicle == "" && rec.Environment != "" {
			rec.Vehicle = rec.Environment + "Car"
		}
		rec.Size = parseSize(h.Desc)
	}
	if h.Times != nil {
		rec.Medals = parseMedals(h.Times)
	}

	body := data[bodyStart:]
	rec.HasUnlimiter = bytes.Contains(body, unlimiterChunkSig) ||
		bytes.Contains(data, unlimiterMarker)
	rec.Blocks = scanBlockNames(body)

	return rec, nil
}

func (headerDecoder) DecodeReplayHeader(data []byte) (*ReplayRecord, error) {
	h, _, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Type != "replay" {
		return nil, fmt.Errorf("gbx: expected replay header, got %q", h.Type)
	}
	if h.Challenge == nil || h.Challenge.UID == "" {
		return nil, fmt.Errorf("gbx: replay header has no challenge reference")
	}

	rec := &ReplayRecord{
		MapUID:  h.Challenge.UID,
		MapName: h.Challenge.Name,
	}
	if h.Desc != nil {
		rec.Mode = parsePlayMode(h.Desc.Type)
		rec.Environment = h.Desc.Envir
		rec.Vehicle = h.Desc.Car
		if rec.Vehicle == "" && rec.Environment != "" {
			rec.Vehicle = rec.Environment + "Car"
		}
	}
	if h.Times != nil {
		rec.Medals = parseMedals(h.Times)
	}
	return rec, nil
}

func (d headerDecoder) DecodeReplay(data []byte) (*ReplayRecord, error) {
	rec, err := d.DecodeReplayHeader(data)
	if err != nil {
		return nil, err
	}
	h, _, err := parseHeader(data)
	if err != nil {
		return nil, err
	}
	if h.Times == nil || h.Times.Best == "" {
		return nil, fmt.Errorf("gbx: replay header has no ghost times")
	}
	rec.Ghost = Ghost{
		Time:       msOr(h.Times.Best, 0),
		Respawns:   atoiOr(h.Times.Respawns, 0),
		StuntScore: atoiOr(h.Times.StuntScore, 0),
	}
	return rec, nil
}

func parseMedals(t *xmlTimes) Medals {
	m := Medals{
		Bronze:      msOr(t.Bronze, 0),
		Silver:      msOr(t.Silver, 0),
		Gold:        msOr(t.Gold, 0),
		AuthorScore: atoiOr(t.AuthorScore, 0),
	}
	if at, ok := optionalMs(t.AuthorTime); ok {
		m.AuthorTime = &at
	}
	return m
}

func parseSize(d *xmlDesc) *Size {
	if d.SizeX == "" || d.SizeY == "" || d.SizeZ == "" {
		return nil
	}
	return &Size{
		X: atoiOr(d.SizeX, 0),
		Y: atoiOr(d.SizeY, 0),
		Z: atoiOr(d.SizeZ, 0),
	}
}

func atoiOr(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

func msOr(s string, def time.Duration) time.Duration {
	return time.Duration(atoiOr(s, int(def))) * time.Millisecond
}

// optionalMs parses a millisecond attribute that may be absent or the
// game's "-1" sentinel for "not set".
func optionalMs(s string) (time.Duration, bool) {
	if s == "" || s == "-1" {
		return 0, false
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < 0 {
		return 0, false
	}
	return time.Duration(v) * time.Millisecond, true
}

// scanBlockNames pulls block identifiers out of the body's lookback
// string table. Block names are stored as literal ASCII runs; the body
// codec keeps them intact, so a raw scan recovers them without decoding
// the surrounding chunks. First occurrence wins; order is preserved.
func scanBlockNames(body []byte) []string {
	const minLen, maxLen = 6, 64

	var (
		names []string
		seen  = map[string]bool{}
		run   []byte
	)
	flush := func() {
		if len(run) >= minLen && len(run) <= maxLen && looksLikeBlockName(run) {
			name := string(run)
			if !seen[name] {
				seen[name] = true
				names = append(names, name)
			}
		}
		run = run[:0]
	}
	for _, b := range body {
		if b >= 'A' && b <= 'Z' || b >= 'a' && b <= 'z' || b >= '0' && b <= '9' {
			run = append(run, b)
			continue
		}
		flush()
	}
	flush()
	return names
}

// looksLikeBlockName filters the scan to identifiers shaped like game
// block names: leading uppercase letter and at least one lowercase letter.
func looksLikeBlockName(run []byte) bool {
	if run[0] < 'A' || run[0] > 'Z' {
		return false
	}
	for _, b := range run {
		if b >= 'a' && b <= 'z' {
			return true
		}
	}
	return false
}
