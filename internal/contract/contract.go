// Package contract freezes the wire-level constants the rest of the
// pipeline treats as immutable: the canonical camera path used for QA
// rendering, and the quality thresholds that gate conversion success.
// Baselines are indexed by pose position, so reordering the canonical
// path invalidates every stored baseline; callers get a defensive copy,
// never the backing array.
package contract

// CameraPose is a single camera position and orientation used to render
// a QA frame. Values are IEEE-754 doubles, matching the wire contract.
type CameraPose struct {
	X, Y, Z      float64
	Pitch, Yaw   float64
}

var canonicalCameraPath = [10]CameraPose{
	{X: 5, Y: 1.6, Z: 0, Pitch: 0, Yaw: 90},
	{X: 3.54, Y: 1.6, Z: 3.54, Pitch: 0, Yaw: 135},
	{X: 0, Y: 1.6, Z: 5, Pitch: 0, Yaw: 180},
	{X: -3.54, Y: 1.6, Z: 3.54, Pitch: 0, Yaw: 225},
	{X: -5, Y: 1.6, Z: 0, Pitch: 0, Yaw: 270},
	{X: -3.54, Y: 1.6, Z: -3.54, Pitch: 0, Yaw: 315},
	{X: 0, Y: 1.6, Z: -5, Pitch: 0, Yaw: 0},
	{X: 3.54, Y: 1.6, Z: -3.54, Pitch: 0, Yaw: 45},
	{X: 0, Y: 4, Z: 0.01, Pitch: -60, Yaw: 0},
	{X: 0, Y: 6, Z: 3, Pitch: -75, Yaw: 180},
}

// CanonicalCameraPath returns a copy of the frozen 10-pose QA camera
// path. Order is part of the external contract: baselines reference
// poses by index.
func CanonicalCameraPath() []CameraPose {
	out := make([]CameraPose, len(canonicalCameraPath))
	copy(out, canonicalCameraPath[:])
	return out
}

// QAThresholds are the module-level contract constants gating QA
// pass/fail, frozen per spec.
const (
	MinSSIM              = 0.85
	MaxPHashDistance     = 10
	MinFramesPassedRatio = 0.80
)

// Default tunables for the converter and job submission, overridable via
// config but pinned here as the documented defaults.
const (
	DefaultIterations       = uint32(30000)
	DefaultQualityThreshold = 0.85
	SplatSeedEnvVar         = "SPLAT_SEED"
	SplatSeedValue          = "42"
)

// SOGMagic is the four-byte signature ("SOG\0") every SOG output file
// must begin with; SOGVersion is the little-endian u32 that follows it.
// The pipeline never parses past these two fields — the rest of the
// header (gaussian count, reserved word) is the converter's to define.
var SOGMagic = [4]byte{0x53, 0x4F, 0x47, 0x00}

const SOGVersion = uint32(1)

// SOGHeaderSize is the size in bytes of the fixed SOG header: magic (4)
// + version (4) + gaussian count (4) + reserved (4).
const SOGHeaderSize = 16
