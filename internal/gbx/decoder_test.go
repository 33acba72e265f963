package gbx

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildTrackBytes(headerXML string, body []byte) []byte {
	data := []byte("GBX\x06\x00BU")
	data = append(data, []byte(headerXML)...)
	data = append(data, body...)
	return data
}

const challengeXML = `<header type="challenge" version="TMc.6" exever="2.11.26">` +
	`<ident uid="pT6HVwKRnRzHmhMBGUJ6vWJab5e" name="A01-Race" author="Nadeo"/>` +
	`<desc envir="Stadium" mood="Day" type="Race" nblaps="0" sizex="32" sizey="32" sizez="32"/>` +
	`<times bronze="60000" silver="45000" gold="40000" authortime="38290" authorscore="0"/>` +
	`<deps/></header>`

const replayXML = `<header type="replay" version="TMc.6" exever="2.11.26">` +
	`<challenge uid="pT6HVwKRnRzHmhMBGUJ6vWJab5e" name="A01-Race"/>` +
	`<desc envir="Stadium" mood="Day" type="Race"/>` +
	`<times best="35120" respawns="2" stuntscore="0" validable="1"` +
	` bronze="60000" silver="45000" gold="40000" authortime="38290" authorscore="0"/>` +
	`</header>`

func TestDecodeTrack(t *testing.T) {
	body := []byte("\x01\x02StadiumRoadMain\x00\x00StadiumPlatformToRoadMain\x09xx")
	rec, err := NewDecoder().DecodeTrack(buildTrackBytes(challengeXML, body))
	require.NoError(t, err)

	assert.Equal(t, "pT6HVwKRnRzHmhMBGUJ6vWJab5e", rec.UID)
	assert.Equal(t, "A01-Race", rec.Name)
	assert.Equal(t, "Stadium", rec.Environment)
	assert.Equal(t, "StadiumCar", rec.Vehicle)
	assert.Equal(t, ModeRace, rec.Mode)
	require.NotNil(t, rec.Size)
	assert.Equal(t, Size{32, 32, 32}, *rec.Size)

	assert.Equal(t, 40*time.Second, rec.Medals.Gold)
	require.NotNil(t, rec.Medals.AuthorTime)
	assert.Equal(t, 38290*time.Millisecond, *rec.Medals.AuthorTime)

	assert.False(t, rec.HasUnlimiter)
	assert.Equal(t, []string{"StadiumRoadMain", "StadiumPlatformToRoadMain"}, rec.Blocks)
}

func TestDecodeTrack_UnlimiterSignature(t *testing.T) {
	body := append([]byte("junk"), unlimiterChunkSig...)
	rec, err := NewDecoder().DecodeTrack(buildTrackBytes(challengeXML, body))
	require.NoError(t, err)
	assert.True(t, rec.HasUnlimiter)
}

func TestDecodeTrack_MissingAuthorTime(t *testing.T) {
	xmlNoAuthor := `<header type="challenge"><ident uid="x" name="y" author="z"/>` +
		`<desc envir="Stadium" type="Race"/>` +
		`<times bronze="1" silver="2" gold="3" authortime="-1"/></header>`
	rec, err := NewDecoder().DecodeTrack(buildTrackBytes(xmlNoAuthor, nil))
	require.NoError(t, err)
	assert.Nil(t, rec.Medals.AuthorTime)
}

func TestDecodeTrack_NoSizeAttributes(t *testing.T) {
	xmlNoSize := `<header type="challenge"><ident uid="x"/>` +
		`<desc envir="Speed" type="Race"/></header>`
	rec, err := NewDecoder().DecodeTrack(buildTrackBytes(xmlNoSize, nil))
	require.NoError(t, err)
	assert.Nil(t, rec.Size)
	assert.Equal(t, "SpeedCar", rec.Vehicle)
}

func TestDecodeReplay(t *testing.T) {
	rec, err := NewDecoder().DecodeReplay(buildTrackBytes(replayXML, nil))
	require.NoError(t, err)

	assert.Equal(t, "pT6HVwKRnRzHmhMBGUJ6vWJab5e", rec.MapUID)
	assert.Equal(t, "Stadium", rec.Environment)
	assert.Equal(t, "StadiumCar", rec.Vehicle)
	assert.Equal(t, ModeRace, rec.Mode)
	assert.Equal(t, 35120*time.Millisecond, rec.Ghost.Time)
	assert.Equal(t, 2, rec.Ghost.Respawns)
	assert.Equal(t, 0, rec.Ghost.StuntScore)

	assert.Equal(t, 40*time.Second, rec.Medals.Gold)
	require.NotNil(t, rec.Medals.AuthorTime)
	assert.Equal(t, 38290*time.Millisecond, *rec.Medals.AuthorTime)
}

func TestDecodeReplayHeader_SkipsGhost(t *testing.T) {
	rec, err := NewDecoder().DecodeReplayHeader(buildTrackBytes(replayXML, nil))
	require.NoError(t, err)
	assert.Equal(t, "pT6HVwKRnRzHmhMBGUJ6vWJab5e", rec.MapUID)
	assert.Zero(t, rec.Ghost)
}

func TestDecode_RejectsWrongHeaderType(t *testing.T) {
	_, err := NewDecoder().DecodeTrack(buildTrackBytes(replayXML, nil))
	assert.Error(t, err)

	_, err = NewDecoder().DecodeReplay(buildTrackBytes(challengeXML, nil))
	assert.Error(t, err)
}

func TestDecode_RejectsNonGBX(t *testing.T) {
	_, err := NewDecoder().DecodeTrack([]byte("PK\x03\x04 not a gbx"))
	assert.ErrorIs(t, err, ErrNotGBX)
}

func TestDecode_TruncatedHeader(t *testing.T) {
	_, err := NewDecoder().DecodeTrack([]byte("GBX\x06<header type=\"challenge\">"))
	assert.Error(t, err)
}
