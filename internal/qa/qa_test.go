package qa

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/toursvc/conversion-pipeline/internal/render"
)

func TestEngine_MockDeterminism(t *testing.T) {
	eng := NewEngine(render.ModeMock)

	r1, err := eng.Run(context.Background(), "source.ply", "converted.sog", Options{})
	require.NoError(t, err)
	r2, err := eng.Run(context.Background(), "source.ply", "converted.sog", Options{})
	require.NoError(t, err)

	require.Equal(t, len(r1.Frames), len(r2.Frames))
	for i := range r1.Frames {
		assert.Equal(t, r1.Frames[i], r2.Frames[i])
	}
}

func TestEngine_MockPassesAgainstItself(t *testing.T) {
	eng := NewEngine(render.ModeMock)
	report, err := eng.Run(context.Background(), "source.ply", "converted.sog", Options{})
	require.NoError(t, err)

	assert.True(t, report.Passed)
	assert.GreaterOrEqual(t, report.Score, 0.85)
	assert.Equal(t, render.ModeMock, report.Mode)
	assert.Equal(t, 10, report.Metrics.FramesRendered)
	assert.NotEmpty(t, report.ConvertedHash)
	assert.Equal(t, report.Frames[0].ConvertedHash, report.ConvertedHash)
}
