package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSnapshot(t *testing.T) {
	assert.Nil(t, Snapshot(NewResult()))

	r := NewResult()
	r.Statements = []string{"<a> <b> <c> .", `<a> <b> "d" .`}
	assert.Equal(t, "<a> <b> <c> .\n<a> <b> \"d\" .\n", string(Snapshot(r)))
}

func TestAssertGolden_ExistingFile(t *testing.T) {
	r := NewResult()
	r.Statements = []string{
		`<http://example.com/1> <http://www.w3.org/2000/01/rdf-schema#label> "one" .`,
	}
	AssertGolden(t, "abort", r)
}
