package isbn_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/AntonStoeckl/library-lending-go/lending/isbn"
)

func Test_Valid(t *testing.T) {
	testCases := []struct {
		name  string
		input string
		want  bool
	}{
		{name: "isbn13 plain", input: "9780441013593", want: true},
		{name: "isbn13 hyphenated", input: "978-0-441-01359-3", want: true},
		{name: "isbn13 wrong check digit", input: "9780441013594", want: false},
		{name: "isbn10 plain", input: "0441013597", want: true},
		{name: "isbn10 with spaces", input: "0 441 01359 7", want: true},
		{name: "isbn10 with X check digit", input: "080442957X", want: true},
		{name: "isbn10 with lowercase x", input: "080442957x", want: true},
		{name: "isbn10 wrong check digit", input: "0441013598", want: false},
		{name: "isbn10 with X inside", input: "04410X3597", want: false},
		{name: "isbn13 with letter", input: "978044101359A", want: false},
		{name: "wrong length", input: "12345", want: false},
		{name: "empty", input: "", want: false},
		{name: "blank", input: "   ", want: false},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isbn.Valid(tc.input), "Should judge %q correctly", tc.input)
		})
	}
}

func Test_Normalize(t *testing.T) {
	assert.Equal(t, "9780441013593", isbn.Normalize(" 978-0 441-01359-3 "), "Should strip hyphens and spaces")
}
