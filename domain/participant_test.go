package domain_test

import (
	"bytes"
	"chat-rooms/domain"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConnectionID_Logs_As_Uuid_String(t *testing.T) {
	req := require.New(t)
	id := domain.NewConnectionID()

	// Given a JSON logger
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, nil))

	// When a connection id is logged as an attribute
	log.Info("Connection opened", "conn_id", id)

	// Then it is written as its uuid string
	var line map[string]any
	req.NoError(json.Unmarshal(buf.Bytes(), &line))
	req.Equal(id.String(), line["conn_id"])
}

func TestConnectionID_Text_Form(t *testing.T) {
	req := require.New(t)
	id := domain.NewConnectionID()

	text, err := id.MarshalText()

	req.NoError(err)
	req.Equal(id.String(), string(text))
}
