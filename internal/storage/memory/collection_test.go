package memory

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xenking/salon-pos/internal/domain/ledger"
)

type record struct {
	ID    string
	Group string
	At    time.Time
}

func newRecords() *Collection[record] {
	return NewCollection(
		func(r *record) string { return r.ID },
		func(r *record) *record {
			c := *r
			return &c
		},
	).
		WithIndex("group", func(r *record) string { return r.Group }).
		WithRange("at", func(r *record) time.Time { return r.At })
}

func TestCollection_AddDuplicate(t *testing.T) {
	c := newRecords()

	require.NoError(t, c.Add(&record{ID: "a"}))
	err := c.Add(&record{ID: "a"})
	require.ErrorIs(t, err, ledger.ErrDuplicateKey)
	assert.Equal(t, 1, c.Len())
}

func TestCollection_PutReplacesInPlace(t *testing.T) {
	c := newRecords()
	c.Put(&record{ID: "a", Group: "x"})
	c.Put(&record{ID: "b", Group: "x"})
	c.Put(&record{ID: "a", Group: "y"})

	all := c.GetAll()
	require.Len(t, all, 2)
	assert.Equal(t, "a", all[0].ID)
	assert.Equal(t, "y", all[0].Group)
}

func TestCollection_GetReturnsCopy(t *testing.T) {
	c := newRecords()
	c.Put(&record{ID: "a", Group: "x"})

	r, ok := c.Get("a")
	require.True(t, ok)
	r.Group = "mutated"

	again, _ := c.Get("a")
	assert.Equal(t, "x", again.Group)

	_, ok = c.Get("missing")
	assert.False(t, ok)
}

func TestCollection_Index(t *testing.T) {
	c := newRecords()
	c.Put(&record{ID: "a", Group: "x"})
	c.Put(&record{ID: "b", Group: "y"})
	c.Put(&record{ID: "c", Group: "x"})

	got, err := c.GetAllByIndex("group", "x")
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "a", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	_, err = c.GetAllByIndex("nope", "x")
	require.Error(t, err)
}

func TestCollection_RangeInclusive(t *testing.T) {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	c := newRecords()
	for i, id := range []string{"a", "b", "c", "d"} {
		c.Put(&record{ID: id, At: base.Add(time.Duration(i) * time.Hour)})
	}

	got, err := c.GetAllByRange("at", base.Add(time.Hour), base.Add(2*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "b", got[0].ID)
	assert.Equal(t, "c", got[1].ID)

	_, err = c.GetAllByRange("nope", base, base)
	require.Error(t, err)
}

func TestCollection_Delete(t *testing.T) {
	c := newRecords()
	c.Put(&record{ID: "a"})
	c.Put(&record{ID: "b"})

	assert.True(t, c.Delete("a"))
	assert.False(t, c.Delete("a"))

	all := c.GetAll()
	require.Len(t, all, 1)
	assert.Equal(t, "b", all[0].ID)
}
