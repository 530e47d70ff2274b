package tasks

import (
	"fmt"
	"path/filepath"

	"github.com/desertthunder/mtpsync/internal/models"
	"github.com/desertthunder/mtpsync/internal/shared"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// TransferProgress is attached to [Transfer] updates while bytes are moving.
type TransferProgress struct {
	Destination string
	Sent        int64
	Total       int64
}

// Operation phase enumeration
type Phase int

const (
	Connect Phase = iota
	Index
	Compare
	Transcode
	Transfer
	Complete
)

func (p Phase) String() string {
	switch p {
	case Connect:
		return "connect"
	case Index:
		return "index"
	case Compare:
		return "compare"
	case Transcode:
		return "transcode"
	case Transfer:
		return "transfer"
	case Complete:
		return "complete"
	default:
		return ""
	}
}

func connectUpdate(area string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Connect,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Using storage area %s", area),
	}
}

func indexingUpdate(folder string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Index,
		Step:    0,
		Total:   1,
		Message: fmt.Sprintf("Reading device folder %s...", folder),
	}
}

func indexedUpdate(folder string, count int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Index,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Indexed %d item(s) in %s", count, folder),
	}
}

func compareUpdate(desired, missing int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Compare,
		Step:    desired - missing,
		Total:   desired,
		Message: fmt.Sprintf("%d of %d item(s) already on device, %d to transfer", desired-missing, desired, missing),
	}
}

func transcodeUpdate(step, total int, src string, err error) ProgressUpdate {
	if err != nil {
		return ProgressUpdate{
			Phase:   Transcode,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, filepath.Base(src), err),
		}
	}
	return ProgressUpdate{
		Phase:   Transcode,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Transcoded %s", step, total, filepath.Base(src)),
	}
}

func transferringUpdate(step, total int, dest string, sent, size int64) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Transfer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s (%s / %s)", step, total, dest, shared.FormatBytes(sent), shared.FormatBytes(size)),
		Data:    TransferProgress{Destination: dest, Sent: sent, Total: size},
	}
}

func transferredUpdate(step, total int, item models.RunItem) ProgressUpdate {
	if item.Failed() {
		return ProgressUpdate{
			Phase:   Transfer,
			Step:    step,
			Total:   total,
			Message: fmt.Sprintf("[%d/%d] ✗ %s: %s", step, total, item.Destination, item.Error),
			Data:    item,
		}
	}
	return ProgressUpdate{
		Phase:   Transfer,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s", step, total, item.Destination),
		Data:    item,
	}
}

func completeUpdate(report models.RunReport) ProgressUpdate {
	return ProgressUpdate{
		Phase:   Complete,
		Step:    report.Transferred,
		Total:   report.Missing,
		Message: fmt.Sprintf("Transferred %d of %d item(s), %d failed", report.Transferred, report.Missing, report.Failed),
		Data:    report,
	}
}
