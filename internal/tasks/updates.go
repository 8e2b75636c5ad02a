package tasks

import (
	"fmt"
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

// Operation phase enumeration
type Phase int

const (
	ReadSource Phase = iota
	ImportRows
	ExportSongs
	ExportPlaylists
	WriteManifest
	WatchChanges
)

func (p Phase) String() string {
	switch p {
	case ReadSource:
		return "read_source"
	case ImportRows:
		return "import_rows"
	case ExportSongs:
		return "export_songs"
	case ExportPlaylists:
		return "export_playlists"
	case WriteManifest:
		return "write_manifest"
	case WatchChanges:
		return "watch_changes"
	default:
		return ""
	}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

func readSourceUpdate(step, total int, name string, rows int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ReadSource,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Read %s (%d rows)", step, total, name, rows),
	}
}

func importRowUpdate(step, total int, title, action string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportRows,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s: %s", step, total, action, title),
	}
}

func importFailedUpdate(step, total int, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportRows,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ row %d: %v", step, total, step, err),
	}
}

func exportingUpdate(phase Phase, step, total int, name string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, name),
	}
}

func exportCompletedUpdate(phase Phase, step, total int, name string, songs int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d songs)", step, total, name, songs),
	}
}

func exportFailedUpdate(phase Phase, step, total int, name string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   phase,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, name, err),
	}
}

func manifestUpdate(location string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", location),
		Data:    location,
	}
}

func changeUpdate(processed int, result string, songID string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WatchChanges,
		Step:    processed,
		Message: fmt.Sprintf("%s change for song %s", result, songID),
	}
}
