package automod

import (
	"context"
	"testing"

	"github.com/mychatmanager/chatmod/automod/engine"

	"github.com/stretchr/testify/assert"
)

func TestEngineAlias(t *testing.T) {
	assert := assert.New(t)

	var eng *Engine
	eng, _ = engine.EngineTestFixture()
	v := eng.Evaluate(context.Background(), &MessageEvent{ChatID: 1, UserID: 2, MessageID: 3, Text: "join my channel"})
	assert.Equal(ActionWarn, v.Action)
	assert.Equal(ActionWarn, DefaultPolicy().Action)
}
