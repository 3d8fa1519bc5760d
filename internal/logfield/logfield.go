package lf

import "go.uber.org/zap"

const (
	FieldComponent = "component"
	FieldRunID     = "run_id"
	FieldStage     = "stage"
	FieldPolicy    = "policy"
	FieldStatus    = "status"
	FieldOutcome   = "outcome"
	FieldService   = "service"
	FieldPid       = "pid"
	FieldImage     = "image"
	FieldTarget    = "target"
	FieldAttempt   = "attempt"
	FieldLogPath   = "log_path"
)

func Component(name string) zap.Field {
	return zap.String(FieldComponent, name)
}

func RunID(id string) zap.Field {
	return zap.String(FieldRunID, id)
}

func Stage(name string) zap.Field {
	return zap.String(FieldStage, name)
}

func Policy(policy string) zap.Field {
	return zap.String(FieldPolicy, policy)
}

func Status(status string) zap.Field {
	return zap.String(FieldStatus, status)
}

func Outcome(outcome string) zap.Field {
	return zap.String(FieldOutcome, outcome)
}

func Service(name string) zap.Field {
	return zap.String(FieldService, name)
}

func Pid(pid int) zap.Field {
	return zap.Int(FieldPid, pid)
}

func Image(ref string) zap.Field {
	return zap.String(FieldImage, ref)
}

func Target(name string) zap.Field {
	return zap.String(FieldTarget, name)
}

func Attempt(n int) zap.Field {
	return zap.Int(FieldAttempt, n)
}

func LogPath(path string) zap.Field {
	return zap.String(FieldLogPath, path)
}
