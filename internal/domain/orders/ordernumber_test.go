package orders

import (
	"regexp"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerate_Format(t *testing.T) {
	gen := NewOrderNumberGenerator("secret")

	number := gen.Generate("buyer-1")
	assert.Regexp(t, regexp.MustCompile(`^MER-[A-Z0-9]{4}-[A-Z0-9]{4}$`), number)
}

func TestGenerate_NonRepeating(t *testing.T) {
	gen := NewOrderNumberGenerator("secret")

	seen := make(map[string]bool)
	for i := 0; i < 500; i++ {
		n := gen.Generate("buyer-1")
		assert.False(t, seen[n], "order number %s repeated", n)
		seen[n] = true
	}
}
