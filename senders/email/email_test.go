package email

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNotificationEmailFormat(t *testing.T) {
	ef := &NotificationEmailFormat{Text: "Found stock for Widget\nPrice: $10.00\n\nWidget <b> is gone"}

	assert.Equal(t, "Stockwatch: Found stock for Widget", ef.Subject())
	assert.Equal(t, [][]string{
		{"Found stock for Widget", "Price: $10.00"},
		{"Widget <b> is gone"},
	}, ef.Paragraphs())

	body := ef.Body()
	assert.Contains(t, body, "Found stock for Widget<br>Price: $10.00")
	assert.Contains(t, body, "Widget &lt;b&gt; is gone")
}

func TestNotificationEmailFormat_EmptySubject(t *testing.T) {
	ef := &NotificationEmailFormat{}
	assert.Equal(t, "Stockwatch: stock update", ef.Subject())
}
