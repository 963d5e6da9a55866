package consumer

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mbras/feedpulse/pkg/broker"
	"github.com/mbras/feedpulse/pkg/models"
)

func TestProjectPayload_MessageReceived(t *testing.T) {
	payload, err := json.Marshal(map[string]any{
		"user_id":                "user_abc123",
		"sentiment_distribution": map[string]float64{"positive": 100, "negative": 0, "neutral": 0},
		"engagement_score":       9.42,
		"trending_topics":        []map[string]any{{"tag": "#produto", "weight": 1.5, "count": 1}},
		"anomaly_detected":       false,
		"flags":                  map[string]bool{"mbras_employee": false, "special_pattern": false, "candidate_awareness": false},
		"batch_id":               "11111111-1111-1111-1111-111111111111",
	})
	require.NoError(t, err)

	env := broker.Envelope{EventName: models.EventMessageReceived, Payload: payload}
	norm, err := projectPayload(env)
	require.NoError(t, err)

	assert.Equal(t, 100.0, norm.Sentiment.Positive)
	require.NotNil(t, norm.EngagementScore)
	assert.Equal(t, 9.42, *norm.EngagementScore)
	assert.Equal(t, []string{"#produto"}, norm.Topics)
	assert.False(t, norm.AnomalyDetected)
}

func TestProjectPayload_AnalyzeFeedCompleted(t *testing.T) {
	anomalyType := "burst"
	payload, err := json.Marshal(map[string]any{
		"analysis": map[string]any{
			"sentiment_distribution": map[string]float64{"positive": 0, "negative": 100, "neutral": 0},
			"engagement_score":       12.5,
			"trending_topics":        []map[string]any{{"tag": "#teste", "weight": 2, "count": 2}},
			"influence_ranking":      []map[string]any{},
			"anomaly_detected":       true,
			"anomaly_type":           anomalyType,
			"flags":                  map[string]bool{"mbras_employee": true, "special_pattern": false, "candidate_awareness": false},
		},
	})
	require.NoError(t, err)

	env := broker.Envelope{EventName: models.EventAnalyzeFeedCompleted, Payload: payload}
	norm, err := projectPayload(env)
	require.NoError(t, err)

	assert.Equal(t, 100.0, norm.Sentiment.Negative)
	assert.True(t, norm.AnomalyDetected)
	require.NotNil(t, norm.AnomalyType)
	assert.Equal(t, "burst", *norm.AnomalyType)
	assert.True(t, norm.Flags.MbrasEmployee)
}

func TestProjectPayload_UnsupportedEventErrors(t *testing.T) {
	env := broker.Envelope{EventName: "something_else", Payload: []byte(`{}`)}
	_, err := projectPayload(env)
	assert.Error(t, err)
}
