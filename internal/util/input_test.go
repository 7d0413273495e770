package util

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "vendor@example.com", NormalizeEmail("  Vendor@Example.COM "))
}

func TestValidEmail(t *testing.T) {
	assert.True(t, ValidEmail("v@x.com"))
	assert.False(t, ValidEmail("Vendor <v@x.com>"))
	assert.False(t, ValidEmail("not-an-email"))
}

func TestContainsSuspicious(t *testing.T) {
	assert.True(t, ContainsSuspicious("<script>alert(1)</script>"))
	assert.True(t, ContainsSuspicious("{{ .Secret }}"))
	assert.False(t, ContainsSuspicious("Acme Payments Ltd."))
	assert.False(t, ContainsSuspicious("Manuscript & Scripts Co"))
}
