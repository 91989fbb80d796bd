package manifest

// Stage identifies one of the five fixed pipeline phases.
type Stage string

const (
	StageValidate Stage = "validate"
	StageAssemble Stage = "assemble"
	StageOCR      Stage = "ocr"
	StageOptimize Stage = "optimize"
	StageFinalize Stage = "finalize"
)

var stageOrder = []Stage{
	StageValidate,
	StageAssemble,
	StageOCR,
	StageOptimize,
	StageFinalize,
}

// Stages returns the fixed stage order.
func Stages() []Stage {
	cp := make([]Stage, len(stageOrder))
	copy(cp, stageOrder)
	return cp
}

// Index returns the position of the stage in the fixed order, or -1.
func (s Stage) Index() int {
	for i, stage := range stageOrder {
		if stage == s {
			return i
		}
	}
	return -1
}

// Valid reports whether s names a known stage.
func (s Stage) Valid() bool {
	return s.Index() >= 0
}

// Before reports whether s precedes other in the fixed stage order.
func (s Stage) Before(other Stage) bool {
	return s.Index() < other.Index()
}

// StageStatus is the checkpoint state of a single stage.
type StageStatus string

const (
	StatusPending StageStatus = "pending"
	StatusRunning StageStatus = "running"
	StatusDone    StageStatus = "done"
	StatusFailed  StageStatus = "failed"
)
