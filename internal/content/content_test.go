package content

import (
	"strings"
	"testing"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCapList(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"nil", nil, []string{}},
		{"empty", []string{}, []string{}},
		{"under limit", []string{"a", "b"}, []string{"a", "b"}},
		{"truncates to three", []string{"a", "b", "c", "d"}, []string{"a", "b", "c"}},
		{"skips blanks before counting", []string{"", "a", "  ", "b", "\t\n", "c", "d"}, []string{"a", "b", "c"}},
		{"keeps entry verbatim", []string{" a "}, []string{" a "}},
		{"all blank", []string{" ", ""}, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CapList(tt.in)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestCapList_DoesNotAliasInput(t *testing.T) {
	in := []string{"a", "b"}
	out := CapList(in)
	out[0] = "changed"
	assert.Equal(t, "a", in[0])
}

func TestCapList_Properties(t *testing.T) {
	properties := gopter.NewProperties(nil)

	entry := gen.OneGenOf(gen.AlphaString(), gen.Const(""), gen.Const("   "), gen.Const("\t"))

	properties.Property("never more than three entries", prop.ForAll(
		func(list []string) bool {
			return len(CapList(list)) <= MaxItems
		},
		gen.SliceOf(entry),
	))

	properties.Property("never contains blank entries", prop.ForAll(
		func(list []string) bool {
			for _, s := range CapList(list) {
				if strings.TrimSpace(s) == "" {
					return false
				}
			}
			return true
		},
		gen.SliceOf(entry),
	))

	properties.Property("is a prefix of the non-blank entries", prop.ForAll(
		func(list []string) bool {
			var kept []string
			for _, s := range list {
				if strings.TrimSpace(s) != "" {
					kept = append(kept, s)
				}
			}
			got := CapList(list)
			for i := range got {
				if got[i] != kept[i] {
					return false
				}
			}
			return len(got) == min(len(kept), MaxItems)
		},
		gen.SliceOf(entry),
	))

	properties.TestingRun(t)
}

func TestTable_Select(t *testing.T) {
	table := NewTable(map[string]Bundle{
		"eye": {Texts: []string{"a", "b", "c", "d"}},
		"foot": {
			Texts:  []string{"", "walk"},
			Images: []string{"i1", "i2", "i3", "i4"},
			Videos: []string{"https://youtu.be/XERplfomyFs"},
		},
	})

	eye := table.Select("eye")
	assert.Equal(t, []string{"a", "b", "c"}, eye.Texts)
	assert.Equal(t, []string{}, eye.Images)
	assert.Equal(t, []string{}, eye.Videos)
	assert.False(t, eye.Empty())

	foot := table.Select("foot")
	assert.Equal(t, []string{"walk"}, foot.Texts)
	assert.Equal(t, []string{"i1", "i2", "i3"}, foot.Images)
	assert.Len(t, foot.Videos, 1)
}

func TestTable_SelectUnknownLabel(t *testing.T) {
	table := NewTable(map[string]Bundle{"eye": {Texts: []string{"a"}}})

	for _, label := range []string{"hand", "", "EYE"} {
		b := table.Select(label)
		assert.True(t, b.Empty(), label)
		assert.NotNil(t, b.Texts)
		assert.NotNil(t, b.Images)
		assert.NotNil(t, b.Videos)
	}

	var nilTable *Table
	assert.True(t, nilTable.Select("eye").Empty())
	assert.False(t, nilTable.Has("eye"))
	assert.Zero(t, nilTable.Len())
}

func TestNewTable_CopiesInput(t *testing.T) {
	texts := []string{"a"}
	table := NewTable(map[string]Bundle{"eye": {Texts: texts}})
	texts[0] = "mutated"

	assert.Equal(t, []string{"a"}, table.Select("eye").Texts)

	got := table.Select("eye")
	got.Texts[0] = "also mutated"
	assert.Equal(t, []string{"a"}, table.Select("eye").Texts)
}

func TestTable_Labels(t *testing.T) {
	table := NewTable(map[string]Bundle{"hand": {}, "eye": {}, "foot": {}})
	assert.Equal(t, []string{"eye", "foot", "hand"}, table.Labels())
	assert.True(t, table.Has("hand"))
	assert.Equal(t, 3, table.Len())
}
