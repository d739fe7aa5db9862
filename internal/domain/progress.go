package domain

// Stage is one step of the transfer pipeline.
type Stage int

const (
	StageValidate Stage = iota
	StageBackup
	StageDump
	StageImport
	StageCleanup
)

func (s Stage) String() string {
	switch s {
	case StageValidate:
		return "validate"
	case StageBackup:
		return "backup"
	case StageDump:
		return "dump"
	case StageImport:
		return "import"
	case StageCleanup:
		return "cleanup"
	}

	return "unknown"
}

type ProgressEvent struct {
	Message string
	Percent int
}

// ProgressSink receives overall progress of a pull. Implementations must not block.
type ProgressSink interface {
	OnProgress(message string, percent int)
}

type ProgressFunc func(message string, percent int)

func (f ProgressFunc) OnProgress(message string, percent int) {
	f(message, percent)
}

// ChannelSink forwards events to ch, dropping them when ch is full.
func ChannelSink(ch chan<- ProgressEvent) ProgressSink {
	return ProgressFunc(func(message string, percent int) {
		select {
		case ch <- ProgressEvent{Message: message, Percent: percent}:
		default:
		}
	})
}
