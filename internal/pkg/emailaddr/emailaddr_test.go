package emailaddr

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/ManuelReschke/BookfoldAR/internal/pkg/apperrors"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "a@x.com", want: "a@x.com"},
		{in: "  Reader@Example.ORG ", want: "reader@example.org"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "no-at-sign", wantErr: true},
		{in: "a@", wantErr: true},
		{in: strings.Repeat("a", 250) + "@x.com", wantErr: true},
	}

	for _, tt := range tests {
		got, err := Normalize(tt.in)
		if tt.wantErr {
			assert.Error(t, err, "input %q", tt.in)
			assert.True(t, apperrors.IsKind(err, apperrors.KindValidation))
			continue
		}
		assert.NoError(t, err, "input %q", tt.in)
		assert.Equal(t, tt.want, got)
	}
}
