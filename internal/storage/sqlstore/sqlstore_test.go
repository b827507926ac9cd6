package sqlstore

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStorage_Bind(t *testing.T) {
	q := `SELECT id FROM envoy_tokens WHERE id = ? AND tenant_id = ? LIMIT ?;`

	pg := &Storage{placeholder: Dollar}
	assert.Equal(t,
		`SELECT id FROM envoy_tokens WHERE id = $1 AND tenant_id = $2 LIMIT $3;`,
		pg.bind(q))

	lite := &Storage{placeholder: Question}
	assert.Equal(t, q, lite.bind(q))
}
