package main

import (
	"bytes"
	"chat-rooms/infrastructure/storage"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRender(t *testing.T) {
	req := require.New(t)
	var out bytes.Buffer

	render(&out, []storage.Record{
		{Key: "msg:1:00000000000000000001", Kind: "MSG", Created: "10:00:00", Detail: "#1 bob: hello", Size: 42},
	})

	req.Contains(out.String(), "msg:1:00000000000000000001")
	req.Contains(out.String(), "#1 bob: hello")
	req.Contains(out.String(), "42")
}

func TestTruncate(t *testing.T) {
	req := require.New(t)
	req.Equal("héllo", truncate("héllo", 5))
	req.Equal("hé…", truncate("héllo", 3))
}
