package cmd

import (
	"github.com/fatih/color"
	"github.com/viant/fluxgate/model/plan"
	"github.com/viant/fluxgate/service/approval"
)

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
	cyan   = color.New(color.FgCyan).SprintFunc()
	gray   = color.New(color.FgHiBlack).SprintFunc()
	bold   = color.New(color.Bold).SprintFunc()
)

func stepStatus(status plan.StepStatus) string {
	switch status {
	case plan.StepCompleted:
		return green(status)
	case plan.StepFailed:
		return red(status)
	case plan.StepAwaitingApproval, plan.StepInProgress:
		return yellow(status)
	case plan.StepSkipped:
		return gray(status)
	}
	return string(status)
}

func planStatus(status plan.Status) string {
	switch status {
	case plan.StatusCompleted:
		return green(status)
	case plan.StatusFailed:
		return red(status)
	case plan.StatusPaused:
		return yellow(status)
	}
	return string(status)
}

func requestStatus(status approval.Status) string {
	switch status {
	case approval.StatusApproved, approval.StatusExecuted:
		return green(status)
	case approval.StatusRejected:
		return red(status)
	case approval.StatusExpired:
		return gray(status)
	}
	return yellow(status)
}

func healthy(ok bool) string {
	if ok {
		return green("healthy")
	}
	return red("unhealthy")
}
