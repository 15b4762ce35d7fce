package exiftool

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTagSet_Normalize(t *testing.T) {
	// Decomposed e + combining acute must normalize to the composed form.
	ts := TagSet{Identity: "ide\u0301e", Signature: "sig"}
	normalized := ts.Normalize()

	assert.Equal(t, "idée", normalized.Identity)
	assert.Equal(t, "sig", normalized.Signature)
}

func TestTagSet_Equal(t *testing.T) {
	tests := []struct {
		name string
		a, b TagSet
		want bool
	}{
		{
			name: "identical",
			a:    TagSet{Identity: "id-1", Signature: "dummySig"},
			b:    TagSet{Identity: "id-1", Signature: "dummySig"},
			want: true,
		},
		{
			name: "different identity",
			a:    TagSet{Identity: "id-1", Signature: "dummySig"},
			b:    TagSet{Identity: "id-2", Signature: "dummySig"},
			want: false,
		},
		{
			name: "different signature",
			a:    TagSet{Identity: "id-1", Signature: "dummySig-1"},
			b:    TagSet{Identity: "id-1", Signature: "dummySig-2"},
			want: false,
		},
		{
			name: "unicode forms compare equal",
			a:    TagSet{Identity: "idée"},
			b:    TagSet{Identity: "ide\u0301e"},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Equal(tt.b))
		})
	}
}

func TestTagSet_Empty(t *testing.T) {
	assert.True(t, TagSet{}.Empty())
	assert.False(t, TagSet{Identity: "x"}.Empty())
	assert.False(t, TagSet{Signature: "x"}.Empty())
}

func TestMetadata_Tag(t *testing.T) {
	meta := &Metadata{Raw: map[string]string{FieldIdentity: "id-1"}}

	v, ok := meta.Tag(FieldIdentity)
	assert.True(t, ok)
	assert.Equal(t, "id-1", v)

	// Removed fields are absent, not empty.
	_, ok = meta.Tag(FieldSignature)
	assert.False(t, ok)
}

func TestBackupPath(t *testing.T) {
	assert.Equal(t, "/tmp/SAMPLE_PNG.png_original", BackupPath("/tmp/SAMPLE_PNG.png"))
}
