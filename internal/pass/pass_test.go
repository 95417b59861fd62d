package pass

import (
	"bytes"
	"encoding/hex"
	"encoding/json"
	"image/png"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var asha = Attendee{Name: "Asha", School: "XYZ School", Email: "a@x.com", Phone: "9999999999"}

func TestNewID(t *testing.T) {
	seen := map[string]bool{}
	for i := 0; i < 1000; i++ {
		id, err := NewID()
		require.NoError(t, err)
		require.Len(t, id, 32)

		_, err = hex.DecodeString(id)
		require.NoError(t, err)

		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
}

func TestGenerate(t *testing.T) {
	fixed := time.Date(2025, 12, 1, 10, 30, 0, 123456789, time.FixedZone("IST", 5*3600+1800))
	g := NewGenerator(DefaultStyle)
	g.now = func() time.Time { return fixed }

	issued, err := g.Generate(asha)
	require.NoError(t, err)

	assert.Len(t, issued.ID, 32)
	assert.Equal(t, issued.ID, issued.Payload.ID)
	assert.Equal(t, "Asha", issued.Payload.Name)
	assert.Equal(t, "XYZ School", issued.Payload.School)
	assert.Equal(t, "a@x.com", issued.Payload.Email)
	assert.Equal(t, "9999999999", issued.Payload.Phone)
	assert.Equal(t, fixed.UTC().Truncate(time.Millisecond), issued.Payload.Timestamp)

	img, err := png.Decode(bytes.NewReader(issued.PNG))
	require.NoError(t, err)
	assert.Equal(t, 400, img.Bounds().Dx())
	assert.Equal(t, 400, img.Bounds().Dy())

	r, gr, b, _ := img.At(0, 0).RGBA()
	assert.Equal(t, []uint32{0xffff, 0xffff, 0xffff}, []uint32{r, gr, b}, "margin should be light")

	assert.True(t, strings.HasPrefix(issued.DataURL(), "data:image/png;base64,"))
}

func TestGenerateUniqueIDs(t *testing.T) {
	g := NewGenerator(DefaultStyle)

	first, err := g.Generate(asha)
	require.NoError(t, err)
	second, err := g.Generate(asha)
	require.NoError(t, err)

	assert.NotEqual(t, first.ID, second.ID)
}

func TestGenerateIDFailure(t *testing.T) {
	g := NewGenerator(DefaultStyle)
	g.newID = func() (string, error) { return "", assert.AnError }

	_, err := g.Generate(asha)
	assert.ErrorIs(t, err, assert.AnError)
}

func TestParsePayload(t *testing.T) {
	t.Run("generated payload", func(t *testing.T) {
		issued, err := NewGenerator(DefaultStyle).Generate(asha)
		require.NoError(t, err)

		data, err := json.Marshal(issued.Payload)
		require.NoError(t, err)

		parsed, err := ParsePayload(string(data))
		require.NoError(t, err)
		assert.Equal(t, issued.Payload.ID, parsed.ID)
		assert.True(t, issued.Payload.Timestamp.Equal(parsed.Timestamp))
	})

	t.Run("javascript timestamp", func(t *testing.T) {
		parsed, err := ParsePayload(`{"id":"abc","name":"Asha","timestamp":"2025-12-20T04:00:00.000Z"}`)
		require.NoError(t, err)
		assert.Equal(t, "abc", parsed.ID)
		assert.Equal(t, 2025, parsed.Timestamp.Year())
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParsePayload("hello")
		assert.Error(t, err)
	})

	t.Run("empty", func(t *testing.T) {
		_, err := ParsePayload("  ")
		assert.Error(t, err)
	})

	t.Run("json without an id", func(t *testing.T) {
		for _, data := range []string{"null", "{}", `{"id":""}`, `{"name":"Asha"}`} {
			_, err := ParsePayload(data)
			assert.Error(t, err, data)
		}
	})
}

func TestRecordJSON(t *testing.T) {
	rec := NewRecord(Payload{ID: "abc", Name: "Asha"})

	data, err := json.Marshal(rec)
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(data, &out))
	assert.Equal(t, "abc", out["id"])
	assert.Equal(t, false, out["checkedIn"])
	assert.Nil(t, out["checkInTime"])
	assert.Contains(t, out, "timestamp")
}

func TestAttendeeMissing(t *testing.T) {
	assert.Empty(t, asha.Missing())
	assert.Equal(t, []string{"name", "phone"}, Attendee{Email: "a@x.com", School: "S"}.Missing())
}
