package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEModelPerfectConditionsYieldsHighMOS(t *testing.T) {
	result := EModel(0, 20, ImpairmentPCMU)
	assert.Greater(t, result.MOS, 4.0)
	assert.Greater(t, result.RFactor, 80.0)
}

func TestEModelDegradesWithLossAndDelay(t *testing.T) {
	good := EModel(0, 20, ImpairmentOpus)
	bad := EModel(0.1, 300, ImpairmentOpus)

	assert.Less(t, bad.MOS, good.MOS)
	assert.Less(t, bad.RFactor, good.RFactor)
}

func TestEModelMOSStaysWithinDefinedRange(t *testing.T) {
	result := EModel(0.5, 1000, ImpairmentPCMU)
	assert.GreaterOrEqual(t, result.MOS, 1.0)
	assert.LessOrEqual(t, result.MOS, 4.5)
}

func TestEModelG711VsOpusUnderLoss(t *testing.T) {
	pcmu := EModel(0.05, 50, ImpairmentPCMU)
	opus := EModel(0.05, 50, ImpairmentOpus)

	// Opus's higher loss-robustness factor should degrade less than
	// G.711 at the same loss rate.
	assert.Greater(t, opus.MOS, pcmu.MOS)
}
