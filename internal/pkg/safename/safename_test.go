package safename

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSanitize(t *testing.T) {
	assert.Equal(t, "r_sum_.pdf", Sanitize("résumé.pdf"))
	assert.Equal(t, "a-b.c_d", Sanitize("a-b.c d"))
	assert.Equal(t, "my_report__v2_.pdf", Sanitize("my report (v2).pdf"))
}

func TestBase(t *testing.T) {
	assert.Equal(t, "report.pdf", Base("report.pdf"))
	assert.Equal(t, "report.pdf", Base("../../etc/report.pdf"))
	assert.Equal(t, "report.pdf", Base(`C:\Users\me\report.pdf`))
	assert.Equal(t, "", Base(""))
	assert.Equal(t, "", Base("/"))
}
