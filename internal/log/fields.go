package log

// Canonical field name constants for structured logging.
const (
	FieldService   = "service"
	FieldComponent = "component"
	FieldRunID     = "run_id"

	// Input / output
	FieldInput  = "input"
	FieldOutput = "output"
	FieldKey    = "key"
	FieldPath   = "path"

	// Media
	FieldFPS        = "fps"
	FieldResolution = "resolution"
	FieldFourCC     = "fourcc"
	FieldFrame      = "frame"
	FieldFrames     = "frames"

	// Sampling
	FieldSample     = "sample"
	FieldStartFrame = "start_frame"
	FieldEndFrame   = "end_frame"
	FieldReason     = "reason"

	// Enhancement
	FieldCause = "cause"
	FieldModel = "model"
	FieldScale = "scale"
)
