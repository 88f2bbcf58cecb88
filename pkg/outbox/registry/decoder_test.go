package registry

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/angelmondragon/bintrack-backend/pkg/enums"
	"github.com/angelmondragon/bintrack-backend/pkg/outbox"
)

type statusChange struct {
	BinID  string `json:"binId"`
	Status string `json:"status"`
}

func TestDecodersRegisterJSON(t *testing.T) {
	reg := NewDecoders()
	require.NoError(t, RegisterJSON(reg, enums.EventBinStatusChanged, 1, func(c *statusChange) error {
		if c.BinID == "" {
			return errors.New("bin id missing")
		}
		return nil
	}))

	out, err := reg.Decode(enums.EventBinStatusChanged, outbox.PayloadEnvelope{
		Version: 1,
		Data:    json.RawMessage(`{"binId":"B1","status":"Damaged"}`),
	})
	require.NoError(t, err)
	assert.Equal(t, &statusChange{BinID: "B1", Status: "Damaged"}, out)

	_, err = reg.Decode(enums.EventBinStatusChanged, outbox.PayloadEnvelope{Version: 1, Data: json.RawMessage(`{"status":"Damaged"}`)})
	assert.EqualError(t, err, "bin id missing")

	_, err = reg.Decode(enums.EventBinStatusChanged, outbox.PayloadEnvelope{Version: 2, Data: json.RawMessage(`{}`)})
	assert.Error(t, err)
}

func TestDecodersRejectBadRegistrations(t *testing.T) {
	reg := NewDecoders()
	noop := func(json.RawMessage) (any, error) { return nil, nil }

	require.NoError(t, reg.Register(enums.EventLabelRequested, 1, noop))
	assert.Error(t, reg.Register(enums.EventLabelRequested, 1, noop))
	assert.Error(t, reg.Register(enums.EventLabelRequested, 0, noop))
	assert.Error(t, reg.Register(enums.OutboxEventType("bogus"), 1, noop))
	assert.Error(t, reg.Register(enums.EventLabelRequested, 2, nil))
}

func TestOpenEnvelope(t *testing.T) {
	id := uuid.New()
	body, err := json.Marshal(outbox.PayloadEnvelope{Version: 1, EventID: id.String(), Data: json.RawMessage(`{"binId":"B1"}`)})
	require.NoError(t, err)

	env, got, err := OpenEnvelope(body)
	require.NoError(t, err)
	assert.Equal(t, id, got)
	assert.Equal(t, 1, env.Version)

	_, _, err = OpenEnvelope([]byte(`{"eventId":"nope","data":{}}`))
	assert.Error(t, err)
	_, _, err = OpenEnvelope([]byte(`not json`))
	assert.Error(t, err)
	_, _, err = OpenEnvelope([]byte(`{"eventId":"` + id.String() + `"}`))
	assert.Error(t, err)
}
