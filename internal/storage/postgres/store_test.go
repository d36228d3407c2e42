package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLikePrefix(t *testing.T) {
	assert.Equal(t, `bulletin\_board/posts/%`, likePrefix("bulletin_board/posts"))
	assert.Equal(t, `a\%b\\c/%`, likePrefix(`a%b\c`))
}
