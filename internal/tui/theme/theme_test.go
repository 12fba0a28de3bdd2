package theme

import (
	"testing"

	catppuccin "github.com/catppuccin/go"
	"github.com/stretchr/testify/assert"
)

func TestNew(t *testing.T) {
	th := New("Frappe")
	assert.Equal(t, "frappe", th.Name)
	assert.Equal(t, catppuccin.Frappe.Mauve().Hex, th.Primary.Dark)
	assert.Equal(t, catppuccin.Latte.Mauve().Hex, th.Primary.Light)

	for _, name := range Flavours {
		assert.Equal(t, name, New(name).Name)
	}
	assert.Equal(t, "mocha", New("solarized").Name)
	assert.Equal(t, "mocha", New("").Name)
}
