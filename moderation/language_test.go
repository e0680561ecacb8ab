package moderation

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLanguage(t *testing.T) {
	req := require.New(t)

	req.Equal("en", Language("The weather is lovely today and we are going to the beach together"))
	req.Equal("fr", Language("Bonjour à tous, nous allons manger ensemble ce soir chez mes parents"))
	req.Empty(Language("   "))
}
